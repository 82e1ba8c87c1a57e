package domain

// Profile is the role-specific part of a user record. The set of
// implementations is closed: PatientProfile and DoctorProfile.
type Profile interface {
	Role() Role
	DisplayName() string
	isProfile()
}

// PatientProfile holds the details a patient fills in at sign-up.
type PatientProfile struct {
	FullName         string   `json:"full_name" bson:"full_name"`
	Phone            string   `json:"phone" bson:"phone"`
	DateOfBirth      string   `json:"date_of_birth" bson:"date_of_birth"`
	Gender           string   `json:"gender" bson:"gender"`
	Address          string   `json:"address" bson:"address"`
	EmergencyContact string   `json:"emergency_contact" bson:"emergency_contact"`
	EmergencyPhone   string   `json:"emergency_phone" bson:"emergency_phone"`
	BloodGroup       string   `json:"blood_group,omitempty" bson:"blood_group,omitempty"`
	Allergies        []string `json:"allergies,omitempty" bson:"allergies,omitempty"`
	MedicalHistory   string   `json:"medical_history,omitempty" bson:"medical_history,omitempty"`
}

func (PatientProfile) Role() Role            { return RolePatient }
func (p PatientProfile) DisplayName() string { return p.FullName }
func (PatientProfile) isProfile()            {}

// DoctorProfile holds a practitioner's public and licensing details.
type DoctorProfile struct {
	FullName        string   `json:"full_name" bson:"full_name"`
	Phone           string   `json:"phone" bson:"phone"`
	Specialty       string   `json:"specialty" bson:"specialty"`
	LicenseNumber   string   `json:"license_number" bson:"license_number"`
	Experience      int      `json:"experience" bson:"experience"`
	Qualifications  []string `json:"qualifications" bson:"qualifications"`
	ClinicName      string   `json:"clinic_name" bson:"clinic_name"`
	ClinicAddress   string   `json:"clinic_address" bson:"clinic_address"`
	ConsultationFee float64  `json:"consultation_fee" bson:"consultation_fee"`
	Bio             string   `json:"bio,omitempty" bson:"bio,omitempty"`
	Languages       []string `json:"languages" bson:"languages"`
}

func (DoctorProfile) Role() Role            { return RoleDoctor }
func (d DoctorProfile) DisplayName() string { return d.FullName }
func (DoctorProfile) isProfile()            {}

// NewProfile returns an empty profile for role carrying only the full name.
func NewProfile(role Role, fullName string) (Profile, error) {
	switch role {
	case RolePatient:
		return PatientProfile{FullName: fullName}, nil
	case RoleDoctor:
		return DoctorProfile{FullName: fullName}, nil
	}
	return nil, Invalid("role must be patient or doctor, got %q", role)
}

// ProfilePatch is a partial profile update. Only fields that are set are
// applied; the rest of the stored profile is left untouched.
type ProfilePatch interface {
	Role() Role
	isPatch()
}

// PatientPatch carries optional patient fields.
type PatientPatch struct {
	FullName         *string   `json:"full_name,omitempty"`
	Phone            *string   `json:"phone,omitempty"`
	DateOfBirth      *string   `json:"date_of_birth,omitempty"`
	Gender           *string   `json:"gender,omitempty"`
	Address          *string   `json:"address,omitempty"`
	EmergencyContact *string   `json:"emergency_contact,omitempty"`
	EmergencyPhone   *string   `json:"emergency_phone,omitempty"`
	BloodGroup       *string   `json:"blood_group,omitempty"`
	Allergies        *[]string `json:"allergies,omitempty"`
	MedicalHistory   *string   `json:"medical_history,omitempty"`
}

func (PatientPatch) Role() Role { return RolePatient }
func (PatientPatch) isPatch()   {}

// DoctorPatch carries optional doctor fields.
type DoctorPatch struct {
	FullName        *string   `json:"full_name,omitempty"`
	Phone           *string   `json:"phone,omitempty"`
	Specialty       *string   `json:"specialty,omitempty"`
	LicenseNumber   *string   `json:"license_number,omitempty"`
	Experience      *int      `json:"experience,omitempty"`
	Qualifications  *[]string `json:"qualifications,omitempty"`
	ClinicName      *string   `json:"clinic_name,omitempty"`
	ClinicAddress   *string   `json:"clinic_address,omitempty"`
	ConsultationFee *float64  `json:"consultation_fee,omitempty"`
	Bio             *string   `json:"bio,omitempty"`
	Languages       *[]string `json:"languages,omitempty"`
}

func (DoctorPatch) Role() Role { return RoleDoctor }
func (DoctorPatch) isPatch()   {}

// MergeProfile applies patch on top of current (shallow merge).
func MergeProfile(current Profile, patch ProfilePatch) (Profile, error) {
	if patch == nil {
		return nil, Invalid("no profile fields to update")
	}
	switch p := current.(type) {
	case PatientProfile:
		pp, ok := patch.(PatientPatch)
		if !ok {
			return nil, Invalid("%s fields cannot update a patient profile", patch.Role())
		}
		return p.apply(pp), nil
	case DoctorProfile:
		dp, ok := patch.(DoctorPatch)
		if !ok {
			return nil, Invalid("%s fields cannot update a doctor profile", patch.Role())
		}
		return p.apply(dp), nil
	}
	return nil, Invalid("unsupported profile")
}

func (p PatientProfile) apply(patch PatientPatch) PatientProfile {
	setString(&p.FullName, patch.FullName)
	setString(&p.Phone, patch.Phone)
	setString(&p.DateOfBirth, patch.DateOfBirth)
	setString(&p.Gender, patch.Gender)
	setString(&p.Address, patch.Address)
	setString(&p.EmergencyContact, patch.EmergencyContact)
	setString(&p.EmergencyPhone, patch.EmergencyPhone)
	setString(&p.BloodGroup, patch.BloodGroup)
	setStrings(&p.Allergies, patch.Allergies)
	setString(&p.MedicalHistory, patch.MedicalHistory)
	return p
}

func (doc DoctorProfile) apply(patch DoctorPatch) DoctorProfile {
	setString(&doc.FullName, patch.FullName)
	setString(&doc.Phone, patch.Phone)
	setString(&doc.Specialty, patch.Specialty)
	setString(&doc.LicenseNumber, patch.LicenseNumber)
	if patch.Experience != nil {
		doc.Experience = *patch.Experience
	}
	setStrings(&doc.Qualifications, patch.Qualifications)
	setString(&doc.ClinicName, patch.ClinicName)
	setString(&doc.ClinicAddress, patch.ClinicAddress)
	if patch.ConsultationFee != nil {
		doc.ConsultationFee = *patch.ConsultationFee
	}
	setString(&doc.Bio, patch.Bio)
	setStrings(&doc.Languages, patch.Languages)
	return doc
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setStrings(dst *[]string, v *[]string) {
	if v != nil {
		*dst = append([]string(nil), (*v)...)
	}
}
