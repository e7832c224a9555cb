package account

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolasapp/cfgram/internal/config"
	"github.com/stolasapp/cfgram/internal/sec"
	"github.com/stolasapp/cfgram/internal/storage"
	"github.com/stolasapp/cfgram/internal/storage/db"
)

var testSecret = []byte("0123456789abcdef-test-secret")

func newTestService(t *testing.T) (*Service, *sec.Tokens, storage.Store) {
	t.Helper()
	cfg := &config.Config{
		DBFilepath: filepath.Join(t.TempDir(), "db.sqlite"),
	}
	logger := slog.New(slog.DiscardHandler)
	store, err := storage.NewDB(t.Context(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tokens := sec.NewTokens(testSecret, 0, store)
	return NewService(logger, store, tokens), tokens, store
}

func TestService_Signup(t *testing.T) {
	t.Parallel()

	svc, tokens, _ := newTestService(t)

	token, err := svc.Signup(t.Context(), SignupRequest{
		Username: "u1",
		Email:    "u1@example.com",
		Password: "p1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	user, err := tokens.Verify(t.Context(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.Name)
	assert.Equal(t, "u1@example.com", user.Email)
	assert.Equal(t, db.UserKindPassword, user.Kind)
	assert.NotEqual(t, []byte("p1"), user.PasswordHash)
	require.NoError(t, sec.ComparePassword("p1", user.PasswordHash))

	t.Run("duplicate username", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Signup(t.Context(), SignupRequest{
			Username: "u1",
			Email:    "other@example.com",
			Password: "p2",
		})
		require.Error(t, err)
		assert.Equal(t, connect.CodeAlreadyExists, connect.CodeOf(err))
	})

	t.Run("duplicate email", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Signup(t.Context(), SignupRequest{
			Username: "u2",
			Email:    "u1@example.com",
			Password: "p2",
		})
		require.Error(t, err)
		assert.Equal(t, connect.CodeAlreadyExists, connect.CodeOf(err))
	})

	t.Run("duplicate email differing in case and whitespace", func(t *testing.T) {
		t.Parallel()
		_, err := svc.Signup(t.Context(), SignupRequest{
			Username: "u3",
			Email:    "  U1@Example.com ",
			Password: "p3",
		})
		require.Error(t, err)
		assert.Equal(t, connect.CodeAlreadyExists, connect.CodeOf(err))
	})
}

func TestService_SignupNormalizes(t *testing.T) {
	t.Parallel()

	svc, tokens, _ := newTestService(t)

	token, err := svc.Signup(t.Context(), SignupRequest{
		Username: " padded ",
		Email:    " Padded@Example.COM\n",
		Password: "pw",
	})
	require.NoError(t, err)

	user, err := tokens.Verify(t.Context(), token)
	require.NoError(t, err)
	assert.Equal(t, "padded", user.Name)
	assert.Equal(t, "padded@example.com", user.Email)

	resolved, err := sec.ResolveOrCreate(t.Context(), svc.users, sec.Identity{Email: "PADDED@example.com"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID, "identity resolves to the signed up account")
}

func TestService_SignupValidation(t *testing.T) {
	t.Parallel()

	svc, _, store := newTestService(t)

	tests := []struct {
		name     string
		req      SignupRequest
		expected error
	}{
		{
			name:     "missing password",
			req:      SignupRequest{Username: "a", Email: "a@example.com"},
			expected: ErrPasswordRequired,
		},
		{
			name:     "missing username",
			req:      SignupRequest{Email: "b@example.com", Password: "pw"},
			expected: ErrUsernameRequired,
		},
		{
			name:     "missing email",
			req:      SignupRequest{Username: "c", Password: "pw"},
			expected: ErrEmailRequired,
		},
		{
			name:     "password checked first",
			req:      SignupRequest{},
			expected: ErrPasswordRequired,
		},
		{
			name:     "invalid username",
			req:      SignupRequest{Username: "has:colon", Email: "d@example.com", Password: "pw"},
			expected: storage.ErrInvalidUsername,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Signup(t.Context(), test.req)
			require.ErrorIs(t, err, test.expected)
			assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

			if test.req.Username != "" {
				_, err = store.FindUser(t.Context(), storage.UserByName, test.req.Username)
				require.ErrorIs(t, err, storage.ErrNotFound)
			}
		})
	}
}

func TestService_Signin(t *testing.T) {
	t.Parallel()

	svc, tokens, _ := newTestService(t)
	first, err := svc.Signup(t.Context(), SignupRequest{
		Username: "u1",
		Email:    "u1@example.com",
		Password: "p1",
	})
	require.NoError(t, err)

	second, err := svc.Signin(t.Context(), sec.Credentials{Username: "u1", Password: "p1"})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = tokens.Verify(t.Context(), second)
	require.NoError(t, err)
	_, err = tokens.Verify(t.Context(), first)
	require.ErrorIs(t, err, sec.ErrUnauthorized)

	tests := []struct {
		name  string
		creds sec.Credentials
	}{
		{name: "wrong password", creds: sec.Credentials{Username: "u1", Password: "wrong"}},
		{name: "unknown user", creds: sec.Credentials{Username: "nobody", Password: "p1"}},
		{name: "empty password", creds: sec.Credentials{Username: "u1"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Signin(t.Context(), test.creds)
			require.ErrorIs(t, err, sec.ErrUnauthorized)
			assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
		})
	}
}

type stubProvider struct {
	identity sec.Identity
	err      error
	codes    []string
}

func (p *stubProvider) Identify(_ context.Context, code string) (sec.Identity, error) {
	p.codes = append(p.codes, code)
	return p.identity, p.err
}

func TestService_SigninWithProvider(t *testing.T) {
	t.Parallel()

	svc, tokens, _ := newTestService(t)
	provider := &stubProvider{identity: sec.Identity{Subject: "123", Email: "oauth@example.com"}}

	token, err := svc.SigninWithProvider(t.Context(), provider, "code-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"code-1"}, provider.codes)

	user, err := tokens.Verify(t.Context(), token)
	require.NoError(t, err)
	assert.Equal(t, "oauth@example.com", user.Email)
	assert.Equal(t, db.UserKindOAuth, user.Kind)

	again, err := svc.SigninWithProvider(t.Context(), provider, "code-2")
	require.NoError(t, err)
	reused, err := tokens.Verify(t.Context(), again)
	require.NoError(t, err)
	assert.Equal(t, user.ID, reused.ID)

	_, err = svc.Signin(t.Context(), sec.Credentials{Username: user.Name, Password: ""})
	require.ErrorIs(t, err, sec.ErrUnauthorized)
}

func TestService_SigninWithProviderFailures(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)

	tests := []struct {
		name     string
		provider *stubProvider
		code     string
		expected connect.Code
	}{
		{
			name:     "missing code",
			provider: &stubProvider{},
			expected: connect.CodeInvalidArgument,
		},
		{
			name: "provider rejects code",
			provider: &stubProvider{
				err: connect.NewError(connect.CodeUnauthenticated, errors.New("bad code")),
			},
			code:     "code",
			expected: connect.CodeUnauthenticated,
		},
		{
			name:     "identity without email",
			provider: &stubProvider{identity: sec.Identity{Subject: "1"}},
			code:     "code",
			expected: connect.CodeInvalidArgument,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.SigninWithProvider(t.Context(), test.provider, test.code)
			require.Error(t, err)
			assert.Equal(t, test.expected, connect.CodeOf(err))
		})
	}
}
