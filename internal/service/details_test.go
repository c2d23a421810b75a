package service_test

import (
	"testing"

	"lifelink-backend/internal/models"
	"lifelink-backend/internal/service"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestValidateDetails(t *testing.T) {
	tests := []struct {
		name     string
		category string
		kind     string
		details  datatypes.JSONMap
		wantErr  bool
	}{
		{
			name:     "valid blood donation",
			category: models.CategoryDonation,
			kind:     models.KindBlood,
			details:  datatypes.JSONMap{"blood_group": "AB-"},
			wantErr:  false,
		},
		{
			name:     "valid critical blood request",
			category: models.CategoryRequest,
			kind:     models.KindBlood,
			details:  datatypes.JSONMap{"blood_group": "O-", "units": float64(3), "urgency": "critical"},
			wantErr:  false,
		},
		{
			name:     "blood without group",
			category: models.CategoryRequest,
			kind:     models.KindBlood,
			details:  datatypes.JSONMap{"units": float64(1)},
			wantErr:  true,
		},
		{
			name:     "bogus blood group",
			category: models.CategoryRequest,
			kind:     models.KindBlood,
			details:  datatypes.JSONMap{"blood_group": "Z+"},
			wantErr:  true,
		},
		{
			name:     "bogus urgency",
			category: models.CategoryRequest,
			kind:     models.KindBlood,
			details:  datatypes.JSONMap{"blood_group": "A+", "urgency": "whenever"},
			wantErr:  true,
		},
		{
			name:     "valid medicine",
			category: models.CategoryDonation,
			kind:     models.KindMedicine,
			details:  datatypes.JSONMap{"name": "insulin", "quantity": float64(10)},
			wantErr:  false,
		},
		{
			name:     "medicine without name",
			category: models.CategoryDonation,
			kind:     models.KindMedicine,
			details:  datatypes.JSONMap{"quantity": float64(10)},
			wantErr:  true,
		},
		{
			name:     "bed request",
			category: models.CategoryRequest,
			kind:     models.KindBed,
			details:  datatypes.JSONMap{"ward": "icu"},
			wantErr:  false,
		},
		{
			name:     "bed is not a donation kind",
			category: models.CategoryDonation,
			kind:     models.KindBed,
			details:  datatypes.JSONMap{"ward": "icu"},
			wantErr:  true,
		},
		{
			name:     "doctor request needs a specialty",
			category: models.CategoryRequest,
			kind:     models.KindDoctor,
			details:  datatypes.JSONMap{},
			wantErr:  true,
		},
		{
			name:     "unknown kind",
			category: models.CategoryRequest,
			kind:     "organ",
			details:  datatypes.JSONMap{},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.ValidateDetails(tt.category, tt.kind, tt.details)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
