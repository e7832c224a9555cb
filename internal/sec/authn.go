package sec

import (
	"context"
	"log/slog"

	"connectrpc.com/authn"
	"connectrpc.com/connect"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/stolasapp/cfgram/internal/storage/db"
)

// Credentials is a decoded Basic Auth username/password pair. It has not been
// checked against the user store.
type Credentials struct {
	Username string
	Password string
}

// LogValue satisfies [slog.LogValuer], keeping the password out of logs.
func (c Credentials) LogValue() slog.Value { return slog.StringValue(c.Username) }

// TokenVerifier resolves a bearer token to the user it was issued for.
type TokenVerifier interface {
	Verify(ctx context.Context, signed string) (db.User, error)
}

// BasicAuth returns middleware that decodes the Basic Auth header and attaches
// the [Credentials] to the request context. A missing or malformed header is
// rejected with [ErrUnauthorized] before the handler runs. Verifying the
// credentials is left to the handler.
func BasicAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			username, password, ok := c.Request().BasicAuth()
			if !ok || username == "" {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="`+Realm+`"`)
				return ErrUnauthorized
			}
			ctx := authn.SetInfo(c.Request().Context(), Credentials{
				Username: username,
				Password: password,
			})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// BearerAuth returns middleware that verifies the bearer token in the
// Authorization header and attaches the resolved user to the request context.
// A missing, malformed or stale token is rejected with [ErrUnauthorized]
// before the handler runs.
func BearerAuth(tokens TokenVerifier) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		Validator: func(key string, c echo.Context) (bool, error) {
			user, err := tokens.Verify(c.Request().Context(), key)
			if err != nil {
				return false, err
			}
			c.SetRequest(c.Request().WithContext(SetAuthenticatedUser(c.Request().Context(), user)))
			return true, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			if connect.CodeOf(err) == connect.CodeInternal {
				return err
			}
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="`+Realm+`"`)
			return ErrUnauthorized
		},
	})
}

// GetCredentials returns the Basic Auth credentials attached by [BasicAuth].
// The boolean is false if the context carries none.
func GetCredentials(ctx context.Context) (Credentials, bool) {
	creds, ok := authn.GetInfo(ctx).(Credentials)
	return creds, ok
}

// GetAuthenticatedUser returns the user information for the authenticated user.
// Returns a zero-value User if the context has no authenticated user or if
// the stored value is not a User (should only happen if middleware is misconfigured).
func GetAuthenticatedUser(ctx context.Context) db.User {
	if user, ok := authn.GetInfo(ctx).(db.User); ok {
		return user
	}
	return db.User{}
}

// SetAuthenticatedUser sets the user information for an authenticated user. The
// [BearerAuth] middleware automatically injects this information; this function
// is provided as a convenience for testing.
func SetAuthenticatedUser(ctx context.Context, user db.User) context.Context {
	return authn.SetInfo(ctx, user)
}
