package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry categories. A donation is offered by a donor, a request is raised
// by a patient; both share the same table and lifecycle.
const (
	CategoryDonation = "donation"
	CategoryRequest  = "request"
)

// Entry statuses. An entry is created pending and moves through the
// approval workflow from there. Rejection by a single hospital does NOT
// change the global status - it only appends to the rejection set.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// Resource kinds
const (
	KindBlood    = "blood"
	KindMedicine = "medicine"
	KindBed      = "bed"
	KindDoctor   = "doctor"
)

// KindsForCategory returns the kinds a category accepts
func KindsForCategory(category string) []string {
	if category == CategoryDonation {
		return []string{KindBlood, KindMedicine}
	}
	return []string{KindBlood, KindMedicine, KindBed, KindDoctor}
}

// ResourceEntry represents the resource_entries table, the shared document
// shape for donations and requests. Owner contact fields are a snapshot
// taken at creation time and are never re-synced with the user profile.
type ResourceEntry struct {
	ID                   string            `gorm:"primaryKey;size:36" json:"id"`
	Category             string            `gorm:"type:enum('donation','request');not null;index" json:"category"`
	OwnerID              uint              `gorm:"not null;index" json:"owner_id"`
	OwnerName            string            `gorm:"size:100" json:"owner_name"`
	OwnerEmail           string            `gorm:"size:255" json:"owner_email"`
	OwnerPhone           string            `gorm:"size:30" json:"owner_phone"`
	Kind                 string            `gorm:"size:20;not null;index" json:"kind"`
	Details              datatypes.JSONMap `gorm:"type:json" json:"details"`
	Status               string            `gorm:"size:20;not null;default:'pending';index" json:"status"`
	AssignedHospitalID   *uint             `gorm:"index" json:"assigned_hospital_id,omitempty"`
	AssignedHospitalName string            `gorm:"size:100" json:"assigned_hospital_name,omitempty"`
	ApprovedBy           *uint             `json:"approved_by,omitempty"`
	ApprovedAt           *time.Time        `json:"approved_at,omitempty"`
	CompletedAt          *time.Time        `json:"completed_at,omitempty"`
	FulfilledPatientID   *uint             `json:"fulfilled_patient_id,omitempty"`
	Version              int               `gorm:"not null;default:0" json:"-"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
	Rejections           []Rejection       `gorm:"foreignKey:EntryID;constraint:OnDelete:CASCADE" json:"rejections,omitempty"`
}

// TableName specifies the table name for ResourceEntry model
func (ResourceEntry) TableName() string {
	return "resource_entries"
}

// BeforeCreate assigns the opaque entry identifier
func (e *ResourceEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// RejectedBy reports whether the given hospital already appears in the
// entry's rejection set
func (e *ResourceEntry) RejectedBy(hospitalID uint) bool {
	for _, r := range e.Rejections {
		if r.HospitalID == hospitalID {
			return true
		}
	}
	return false
}

// Rejection represents the entry_rejections table: one row per distinct
// hospital that declined an entry. Append-only; rows are never updated or
// removed while the entry exists.
type Rejection struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	EntryID      string    `gorm:"size:36;not null;uniqueIndex:idx_entry_hospital" json:"-"`
	HospitalID   uint      `gorm:"not null;uniqueIndex:idx_entry_hospital" json:"hospital_id"`
	HospitalName string    `gorm:"size:100" json:"hospital_name"`
	Reason       string    `gorm:"type:text" json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for Rejection model
func (Rejection) TableName() string {
	return "entry_rejections"
}
