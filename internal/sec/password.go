package sec

import (
	"crypto/rand"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor.
const PasswordCost = 10

// ComparePassword returns [ErrUnauthorized] if the provided password does not
// resolve to the given hash. Any other failure, such as a malformed hash, is
// reported as an internal error.
func ComparePassword[T ~string | ~[]byte](password T, hash []byte) error {
	err := bcrypt.CompareHashAndPassword(hash, []byte(password))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrUnauthorized
	default:
		return connect.NewError(connect.CodeInternal, fmt.Errorf("failed to compare password hash: %w", err))
	}
}

// HashPassword generates the hash for a given password. It errors with an
// invalid argument if the password is longer than 72 bytes.
func HashPassword[T ~string | ~[]byte](password T) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	switch {
	case err == nil:
		return hash, nil
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	default:
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("failed to hash password: %w", err))
	}
}

// UnusablePasswordHash returns a well-formed hash of a random secret that is
// discarded immediately. No password will ever compare equal to it.
func UnusablePasswordHash() ([]byte, error) {
	secret := make([]byte, 32) //nolint:mnd // 256 bits
	if _, err := rand.Read(secret); err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return HashPassword(secret)
}
