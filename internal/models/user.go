package models

// User model for API auth and as recipient identity on communication logs
type User struct {
	Base
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"` // Bcrypt Hash
	Role     string `gorm:"default:'ADMIN'" json:"role"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	// Per-user API throttle rate, e.g. "100/hour". Empty means the
	// deployment default applies.
	ThrottleRate string `gorm:"size:32" json:"throttle_rate"`
}
