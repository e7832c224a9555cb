package sec

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"github.com/brianvoe/gofakeit/v7"

	"github.com/stolasapp/cfgram/internal/storage"
	"github.com/stolasapp/cfgram/internal/storage/db"
)

// maxUsernameAttempts bounds how many generated usernames are tried before
// giving up on creating an OAuth account.
const maxUsernameAttempts = 5

// Identity is an assertion about a user made by an external identity
// provider. Only Email is required.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// ResolveOrCreate returns the user whose email matches identity, creating one
// if none exists. New users get a generated username and an unusable password
// hash, marking them as [db.UserKindOAuth] accounts that cannot sign in with
// a password. An identity without an email is rejected as an invalid argument
// before any lookup.
func ResolveOrCreate(ctx context.Context, users storage.Users, identity Identity) (db.User, error) {
	email := NormalizeEmail(identity.Email)
	if email == "" {
		return db.User{}, connect.NewError(connect.CodeInvalidArgument, errors.New("missing login information"))
	}

	user, err := users.FindUser(ctx, storage.UserByEmail, email)
	if err == nil {
		return user, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return user, connect.NewError(connect.CodeInternal, err)
	}

	hash, err := UnusablePasswordHash()
	if err != nil {
		return db.User{}, err
	}

	for range maxUsernameAttempts {
		user, err = users.SaveUser(ctx, db.User{
			Name:         gofakeit.Username(),
			Email:        email,
			PasswordHash: hash,
			Kind:         db.UserKindOAuth,
		})
		if err == nil {
			return user, nil
		} else if !errors.Is(err, storage.ErrAlreadyExists) {
			return user, connect.NewError(connect.CodeInternal, err)
		}
		// the conflict may be a concurrent resolution claiming the email
		if existing, findErr := users.FindUser(ctx, storage.UserByEmail, email); findErr == nil {
			return existing, nil
		}
	}
	return db.User{}, connect.NewError(connect.CodeInternal,
		fmt.Errorf("failed to allocate a unique username after %d attempts: %w", maxUsernameAttempts, err))
}

// NormalizeEmail returns the form of an email address used for storage and
// lookups: surrounding whitespace removed and lower-cased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
