package models

import "time"

// User represents a registered club member.
type User struct {
	ID                 string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name               string    `json:"name" gorm:"type:varchar(100);not null"`
	Email              string    `json:"email" gorm:"uniqueIndex:idx_users_email;type:varchar(255);not null"`
	PasswordCredential string    `json:"-" gorm:"column:password_credential;type:varchar(255);not null"` // bcrypt hash, never serialized
	CreatedAt          time.Time `json:"created_at"`
}

// TableName pins the table name so it does not depend on GORM's pluralizer.
func (User) TableName() string {
	return "users"
}
