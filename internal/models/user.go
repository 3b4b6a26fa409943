package models

import "time"

// User is a registered account. PasswordHash never leaves the service.
type User struct {
	ID           int       `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsOnline     bool      `db:"is_online" json:"is_online"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PublicUser is the API-safe view of a user.
type PublicUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsOnline bool   `json:"is_online"`
}

// Public strips credential fields.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Email: u.Email, IsOnline: u.IsOnline}
}
