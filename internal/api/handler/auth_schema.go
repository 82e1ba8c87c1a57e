package handler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/healthvault/auth-service/internal/core/domain"
)

// errorResponse is the envelope for guard and framework errors.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request / Response types ---

type registerRequest struct {
	Email    string          `json:"email"     validate:"required,email"`
	FullName string          `json:"full_name" validate:"required"`
	Role     string          `json:"role"      validate:"required,oneof=patient doctor"`
	Profile  json.RawMessage `json:"profile,omitempty" swaggertype:"object"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code"  validate:"required,len=6,numeric"`
}

// normalizer is implemented by requests that clean their fields before
// validation.
type normalizer interface {
	normalize()
}

func (r *registerRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
}

func (r *emailRequest) normalize()  { r.Email = strings.TrimSpace(r.Email) }
func (r *verifyRequest) normalize() { r.Email = strings.TrimSpace(r.Email) }

// flowResponse is the envelope for every auth flow, successful or not.
type flowResponse struct {
	Success     bool             `json:"success"`
	Message     string           `json:"message"`
	RequiresOTP bool             `json:"requires_otp,omitempty"`
	User        *domain.Identity `json:"user,omitempty"`
	Token       string           `json:"token,omitempty"`
}

// decodeProfile turns the optional registration profile into the shape
// matching role. An absent profile yields nil.
func decodeProfile(role domain.Role, raw json.RawMessage) (domain.Profile, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch role {
	case domain.RolePatient:
		var p domain.PatientProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, domain.Invalid("invalid patient profile: %v", err)
		}
		return p, nil
	case domain.RoleDoctor:
		var p domain.DoctorProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, domain.Invalid("invalid doctor profile: %v", err)
		}
		return p, nil
	}
	return nil, domain.Invalid("role must be patient or doctor")
}

// decodePatch reads a partial profile update for a user of the given role.
func decodePatch(role domain.Role, raw []byte) (domain.ProfilePatch, error) {
	switch role {
	case domain.RolePatient:
		var p domain.PatientPatch
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, domain.Invalid("invalid patient profile update: %v", err)
		}
		return p, nil
	case domain.RoleDoctor:
		var p domain.DoctorPatch
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, domain.Invalid("invalid doctor profile update: %v", err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unsupported role %q", role)
}
