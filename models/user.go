package models

import "time"

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RolePlayer UserRole = "player"
)

// User is owned by the user-management collaborator; the engine only reads
// identities for validation, audit attribution and display names.
type User struct {
	ID          int64     `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	PlaydekName string    `json:"playdek_name,omitempty"`
	CountryCode *string   `json:"country_code,omitempty"`
	Role        UserRole  `json:"role"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
