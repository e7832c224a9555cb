package db

import (
	"database/sql"
	"time"
)

// User kinds.
const (
	// UserKindPassword accounts were created through signup and carry a usable
	// password hash.
	UserKindPassword = "password"
	// UserKindOAuth accounts were created from an external identity. Their
	// password hash is unusable, so password signin always fails.
	UserKindOAuth = "oauth"
)

// User is a row in the users table.
type User struct {
	ID           uint64
	Name         string
	Email        string
	PasswordHash []byte
	// FindHash is the current opaque session identifier. It is NULL until the
	// first token is issued for the user.
	FindHash   sql.NullString
	Kind       string
	CreateTime time.Time
}

// Place is a row in the places table.
type Place struct {
	ID          uint64
	User        uint64
	Name        string
	Description string
	CreateTime  time.Time
	UpdateTime  time.Time
}
