package domain

import "time"

// User is the identity provider's view of a signed-in person.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// UserProfile is the stored profile document keyed by uid.
type UserProfile struct {
	UID               string    `json:"uid"`
	Email             string    `json:"email"`
	DisplayName       string    `json:"displayName"`
	FirstName         string    `json:"firstName,omitempty"`
	LastName          string    `json:"lastName,omitempty"`
	PhoneNumber       string    `json:"phoneNumber,omitempty"`
	Address           string    `json:"address,omitempty"`
	City              string    `json:"city,omitempty"`
	State             string    `json:"state,omitempty"`
	PinCode           string    `json:"pinCode,omitempty"`
	MedicalConditions []string  `json:"medicalConditions,omitempty"`
	Allergies         []string  `json:"allergies,omitempty"`
	Medications       []string  `json:"medications,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// ProfileUpdate is a merge patch: only non-nil fields overwrite the stored profile.
// Names cannot be cleared; phone and PIN may be cleared with "".
type ProfileUpdate struct {
	DisplayName       *string  `json:"displayName,omitempty" validate:"omitnil,required"`
	FirstName         *string  `json:"firstName,omitempty" validate:"omitnil,required"`
	LastName          *string  `json:"lastName,omitempty" validate:"omitnil,required"`
	PhoneNumber       *string  `json:"phoneNumber,omitempty" validate:"omitempty,number,len=10"`
	Address           *string  `json:"address,omitempty"`
	City              *string  `json:"city,omitempty"`
	State             *string  `json:"state,omitempty"`
	PinCode           *string  `json:"pinCode,omitempty" validate:"omitempty,number,len=6"`
	MedicalConditions []string `json:"medicalConditions,omitempty"`
	Allergies         []string `json:"allergies,omitempty"`
	Medications       []string `json:"medications,omitempty"`
}

func (u ProfileUpdate) ApplyTo(p *UserProfile) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.DisplayName, u.DisplayName)
	set(&p.FirstName, u.FirstName)
	set(&p.LastName, u.LastName)
	set(&p.PhoneNumber, u.PhoneNumber)
	set(&p.Address, u.Address)
	set(&p.City, u.City)
	set(&p.State, u.State)
	set(&p.PinCode, u.PinCode)
	if u.MedicalConditions != nil {
		p.MedicalConditions = append([]string{}, u.MedicalConditions...)
	}
	if u.Allergies != nil {
		p.Allergies = append([]string{}, u.Allergies...)
	}
	if u.Medications != nil {
		p.Medications = append([]string{}, u.Medications...)
	}
}
