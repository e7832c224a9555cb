package sec

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stolasapp/cfgram/internal/config"
	"github.com/stolasapp/cfgram/internal/storage"
	"github.com/stolasapp/cfgram/internal/storage/db"
)

var testSecret = []byte("0123456789abcdef-test-secret")

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	cfg := &config.Config{
		DBFilepath: filepath.Join(t.TempDir(), "db.sqlite"),
	}
	store, err := storage.NewDB(t.Context(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestUser(t *testing.T, users storage.Users, name, password string) db.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	user, err := users.SaveUser(t.Context(), db.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: hash,
	})
	require.NoError(t, err)
	return user
}

var errStorage = errors.New("storage unavailable")

// failingUsers fails every call with errStorage.
type failingUsers struct {
	storage.Users
}

func (failingUsers) FindUser(context.Context, storage.UserField, string) (db.User, error) {
	return db.User{}, errStorage
}

func (failingUsers) SaveUser(_ context.Context, user db.User) (db.User, error) {
	return user, errStorage
}

func (failingUsers) SetFindHash(context.Context, uint64, string) error {
	return errStorage
}
