package models

import "time"

// User is an account that can sign in. Email is the identity and primary key.
type User struct {
	Email             string
	PasswordHash      string
	IsAdmin           bool
	MustResetPassword bool
	CreatedAt         time.Time
}

// UserSummary is the admin-facing view of an account; it never carries the
// password hash.
type UserSummary struct {
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{Email: u.Email, IsAdmin: u.IsAdmin, CreatedAt: u.CreatedAt}
}
