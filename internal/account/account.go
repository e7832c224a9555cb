// Package account implements user signup and signin, issuing a bearer token
// on success.
package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"connectrpc.com/connect"

	"github.com/stolasapp/cfgram/internal/sec"
	"github.com/stolasapp/cfgram/internal/storage"
	"github.com/stolasapp/cfgram/internal/storage/db"
)

// Validation errors returned by [Service.Signup], checked in this order.
var (
	ErrPasswordRequired = errors.New("password required")
	ErrUsernameRequired = errors.New("username required")
	ErrEmailRequired    = errors.New("email required")
)

// SignupRequest is the body of a signup call.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LogValue satisfies [slog.LogValuer], keeping the password out of logs.
func (r SignupRequest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", r.Username),
		slog.String("email", r.Email),
	)
}

// TokenIssuer mints a bearer token for a user.
type TokenIssuer interface {
	Issue(ctx context.Context, user db.User) (string, error)
}

// IdentityProvider exchanges an authorization code for the identity of the
// user who granted it.
type IdentityProvider interface {
	Identify(ctx context.Context, code string) (sec.Identity, error)
}

// Service signs users up and in.
type Service struct {
	logger *slog.Logger
	users  storage.Users
	tokens TokenIssuer
}

// NewService creates a Service.
func NewService(logger *slog.Logger, users storage.Users, tokens TokenIssuer) *Service {
	return &Service{
		logger: logger,
		users:  users,
		tokens: tokens,
	}
}

// Signup creates a password account and returns its first bearer token.
// The username and email are stored in normalized form, so addresses that
// differ only in case or surrounding whitespace name the same account.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (string, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = sec.NormalizeEmail(req.Email)
	switch {
	case req.Password == "":
		return "", connect.NewError(connect.CodeInvalidArgument, ErrPasswordRequired)
	case req.Username == "":
		return "", connect.NewError(connect.CodeInvalidArgument, ErrUsernameRequired)
	case req.Email == "":
		return "", connect.NewError(connect.CodeInvalidArgument, ErrEmailRequired)
	}

	hash, err := sec.HashPassword(req.Password)
	if err != nil {
		return "", err
	}

	user, err := s.users.SaveUser(ctx, db.User{
		Name:         req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Kind:         db.UserKindPassword,
	})
	switch {
	case errors.Is(err, storage.ErrInvalidUsername):
		return "", connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, storage.ErrAlreadyExists):
		return "", connect.NewError(connect.CodeAlreadyExists, errors.New("username or email already in use"))
	case err != nil:
		return "", connect.NewError(connect.CodeInternal, err)
	}

	s.logger.InfoContext(ctx, "user signed up",
		slog.Uint64("user_id", user.ID),
		slog.String("name", user.Name),
	)
	return s.tokens.Issue(ctx, user)
}

// Signin checks creds against the stored password hash and returns a new
// bearer token, invalidating any token issued earlier. Unknown users and
// wrong passwords both fail with [sec.ErrUnauthorized].
func (s *Service) Signin(ctx context.Context, creds sec.Credentials) (string, error) {
	user, err := s.users.FindUser(ctx, storage.UserByName, creds.Username)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// burn the same bcrypt time as a real comparison
		if hash, hashErr := dummyHash(); hashErr == nil {
			_ = sec.ComparePassword(creds.Password, hash)
		}
		return "", sec.ErrUnauthorized
	case err != nil:
		return "", connect.NewError(connect.CodeInternal, err)
	}

	if err = sec.ComparePassword(creds.Password, user.PasswordHash); err != nil {
		if connect.CodeOf(err) == connect.CodeUnauthenticated {
			s.logger.DebugContext(ctx, "password mismatch", slog.Any("credentials", creds))
		}
		return "", err
	}
	return s.tokens.Issue(ctx, user)
}

// SigninWithProvider exchanges an authorization code with provider, resolves
// the identity to a local user (creating one on first sign in) and returns a
// new bearer token for it.
func (s *Service) SigninWithProvider(ctx context.Context, provider IdentityProvider, code string) (string, error) {
	if code == "" {
		return "", connect.NewError(connect.CodeInvalidArgument, errors.New("authorization code required"))
	}

	identity, err := provider.Identify(ctx, code)
	if err != nil {
		return "", err
	}

	user, err := sec.ResolveOrCreate(ctx, s.users, identity)
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "user signed in with identity provider",
		slog.Uint64("user_id", user.ID),
		slog.String("subject", identity.Subject),
	)
	return s.tokens.Issue(ctx, user)
}

var dummyHash = sync.OnceValues(sec.UnusablePasswordHash)
