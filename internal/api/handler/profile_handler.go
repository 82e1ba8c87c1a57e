package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type profileResponse struct {
	Role    string `json:"role"`
	Email   string `json:"email"`
	Profile any    `json:"profile"`
}

// ProfileHandler serves the role-scoped portal profile pages.
type ProfileHandler struct{}

func NewProfileHandler() *ProfileHandler {
	return &ProfileHandler{}
}

// Get returns the caller's profile. Mounted behind RBAC per portal.
//
// @Summary      Portal profile
// @Tags         portal
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  profileResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /patient/profile [get]
// @Router       /doctor/profile [get]
func (h *ProfileHandler) Get(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profileResponse{
		Role:    string(id.Role),
		Email:   id.Email,
		Profile: id.Profile,
	})
}
