package sec

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"github.com/golang-jwt/jwt/v5"

	"github.com/stolasapp/cfgram/internal/storage"
	"github.com/stolasapp/cfgram/internal/storage/db"
)

// findHashBytes is the entropy of a find hash: 256 bits.
const findHashBytes = 32

// Claims is the payload of a bearer token. Without a TTL it serializes to
// exactly {"token": "<find hash>"}.
type Claims struct {
	Token string `json:"token"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies bearer tokens. The secret is fixed at
// construction.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	users  storage.Users
	now    func() time.Time
}

// NewTokens creates a Tokens signing with secret. A non-zero ttl adds an
// expiry to every issued token.
func NewTokens(secret []byte, ttl time.Duration, users storage.Users) *Tokens {
	return &Tokens{
		secret: secret,
		ttl:    ttl,
		users:  users,
		now:    time.Now,
	}
}

// Issue mints a new bearer token for user, replacing the find hash stored on
// the user record. Tokens previously issued for the user no longer verify.
// The token is signed before the record is written, so an abandoned call
// leaves the user untouched.
func (t *Tokens) Issue(ctx context.Context, user db.User) (string, error) {
	findHash, err := newFindHash()
	if err != nil {
		return "", connect.NewError(connect.CodeInternal, err)
	}

	claims := Claims{Token: findHash}
	if t.ttl > 0 {
		now := t.now()
		claims.IssuedAt = jwt.NewNumericDate(now)
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", connect.NewError(connect.CodeInternal, fmt.Errorf("failed to sign token: %w", err))
	}

	if err = t.users.SetFindHash(ctx, user.ID, findHash); err != nil {
		return "", connect.NewError(connect.CodeInternal, fmt.Errorf("failed to store find hash: %w", err))
	}
	return signed, nil
}

// Verify checks the signature of a bearer token and resolves its find hash to
// the user currently holding it. Any signature, format, expiry or lookup
// failure returns [ErrUnauthorized]; storage failures are internal errors.
func (t *Tokens) Verify(ctx context.Context, signed string) (db.User, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(signed, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || claims.Token == "" {
		return db.User{}, ErrUnauthorized
	}

	user, err := t.users.FindUser(ctx, storage.UserByFindHash, claims.Token)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return db.User{}, ErrUnauthorized
	case err != nil:
		return db.User{}, connect.NewError(connect.CodeInternal, err)
	default:
		return user, nil
	}
}

func newFindHash() (string, error) {
	buf := make([]byte, findHashBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate find hash: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
