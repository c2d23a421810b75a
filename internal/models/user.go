package models

import "time"

// Roles known to the platform. Hospitals are first-class users with role
// "hospital"; there is no separate hospital table.
const (
	RoleAdmin    = "admin"
	RoleDonor    = "donor"
	RolePatient  = "patient"
	RoleHospital = "hospital"
)

// User represents the users table
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"not null;size:100" json:"name"`
	Email        string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash string    `gorm:"not null;size:255" json:"-"`
	Role         string    `gorm:"type:enum('admin','donor','patient','hospital');default:'donor'" json:"role"`
	Phone        string    `gorm:"size:30" json:"phone,omitempty"`
	BloodGroup   string    `gorm:"size:5" json:"blood_group,omitempty"`
	Address      string    `gorm:"type:text" json:"address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// RefreshToken represents the refresh_tokens table
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	TokenHash string    `gorm:"not null;size:255;index" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	Revoked   bool      `gorm:"default:false" json:"revoked"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName specifies the table name for RefreshToken model
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}
