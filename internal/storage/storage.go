// Package storage provides the state management for users and places.
package storage

import (
	"context"

	"github.com/stolasapp/cfgram/internal/storage/db"
)

const (
	// ErrNotFound is returned when a place or user cannot be found.
	ErrNotFound Error = "not found"
	// ErrAlreadyExists is returned if a unique user attribute is already in use.
	ErrAlreadyExists Error = "already exists"
	// ErrInvalidUsername is returned when a username fails validation.
	ErrInvalidUsername Error = "username must be 1-64 characters without colons or whitespace"
	// ErrInternal is returned for any other type of error.
	ErrInternal Error = "internal error"
)

// Error is an error type returned by the storage implementation.
type Error string

// Error satisfies [error].
func (e Error) Error() string { return string(e) }

// UserField names a unique user attribute that can be used for lookups.
type UserField string

// Lookup fields accepted by [Users.FindUser].
const (
	UserByName     UserField = "name"
	UserByEmail    UserField = "email"
	UserByFindHash UserField = "find_hash"
)

// Users are the methods on a storage implementation that are responsible for
// accessing and modifying users.
type Users interface {
	// FindUser returns the single user whose field exactly equals value. An
	// [ErrNotFound] is returned if no user matches.
	FindUser(ctx context.Context, field UserField, value string) (db.User, error)
	// GetUser returns a single user with the specified ID. An [ErrNotFound] is
	// returned if the user ID does not exist.
	GetUser(ctx context.Context, userID uint64) (db.User, error)
	// SaveUser creates or updates the user. This is a full PUT-style upsert
	// keyed by ID; a zero ID creates a new user. An [ErrAlreadyExists] error is
	// returned if the username or email is already in use.
	SaveUser(ctx context.Context, user db.User) (db.User, error)
	// SetFindHash atomically replaces the find hash of a single user. An
	// [ErrNotFound] is returned if the user does not exist.
	SetFindHash(ctx context.Context, userID uint64, findHash string) error
	// DeleteUser removes a user and all their places. Note that this is a hard
	// delete; data is not recoverable.
	DeleteUser(ctx context.Context, userID uint64) error
}

// Places are the methods on a storage implementation that are responsible
// for accessing and modifying places. Every method is scoped to the owning
// user; places owned by someone else behave as if they do not exist.
type Places interface {
	// GetPlace returns a single place. An [ErrNotFound] is returned if the
	// user does not own a place with that ID.
	GetPlace(ctx context.Context, userID, placeID uint64) (db.Place, error)
	// ListPlaces returns up to limit places in ID order, starting after
	// afterID (zero for the first page).
	ListPlaces(ctx context.Context, userID, afterID uint64, limit int32) ([]db.Place, error)
	// SavePlace creates or updates the place. A zero ID creates a new place.
	// An [ErrNotFound] is returned when updating a place the user does not
	// own.
	SavePlace(ctx context.Context, place db.Place) (db.Place, error)
	// DeletePlace removes a place. An [ErrNotFound] is returned if the user
	// does not own a place with that ID.
	DeletePlace(ctx context.Context, userID, placeID uint64) error
}

// Store is the combination interface for [Users] and [Places].
type Store interface {
	Users
	Places
	// Close releases any resources held by the store. An error is returned if
	// the store cannot be cleanly closed.
	Close() error
}
