package service

import (
	"encoding/json"

	"lifelink-backend/internal/apperrors"
	"lifelink-backend/internal/models"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

var validate = validator.New()

// Per-kind schemas for the details payload. The freeform map coming off the
// wire is checked against one of these before anything reaches the ledger.
type bloodDetails struct {
	BloodGroup string `json:"blood_group" validate:"required,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Units      int    `json:"units" validate:"omitempty,min=1"`
	Urgency    string `json:"urgency" validate:"omitempty,oneof=normal urgent critical"`
}

type medicineDetails struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"omitempty,min=1"`
	Notes    string `json:"notes"`
}

type bedDetails struct {
	Ward  string `json:"ward" validate:"omitempty,oneof=general icu emergency"`
	Notes string `json:"notes"`
}

type doctorDetails struct {
	Specialty string `json:"specialty" validate:"required"`
	Notes     string `json:"notes"`
}

// ValidateDetails checks that the kind is permitted for the category and
// that the details payload satisfies the kind's schema.
func ValidateDetails(category, kind string, details datatypes.JSONMap) error {
	allowed := false
	for _, k := range models.KindsForCategory(category) {
		if k == kind {
			allowed = true
			break
		}
	}
	if !allowed {
		return apperrors.Validation("kind %q is not valid for %ss", kind, category)
	}

	var target interface{}
	switch kind {
	case models.KindBlood:
		target = &bloodDetails{}
	case models.KindMedicine:
		target = &medicineDetails{}
	case models.KindBed:
		target = &bedDetails{}
	case models.KindDoctor:
		target = &doctorDetails{}
	default:
		return apperrors.Validation("unknown kind %q", kind)
	}

	raw, err := json.Marshal(details)
	if err != nil {
		return apperrors.Validation("invalid details payload")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return apperrors.Validation("invalid %s details: %v", kind, err)
	}
	if err := validate.Struct(target); err != nil {
		return apperrors.Validation("invalid %s details: %v", kind, err)
	}
	return nil
}
