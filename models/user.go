package models

// User represents an account that can own designs and join teams
type User struct {
	Model
	Username     string  `gorm:"unique;not null;size:100" json:"username"`
	Email        string  `gorm:"unique;not null;size:255" json:"email"`
	PasswordHash string  `gorm:"not null" json:"-"`
	AvatarURL    *string `gorm:"size:500" json:"avatar_url"`
}
