package command

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolasapp/cfgram/internal/config"
	"github.com/stolasapp/cfgram/internal/sec"
	"github.com/stolasapp/cfgram/internal/storage"
	"github.com/stolasapp/cfgram/internal/storage/db"
)

// setEnv configures the environment for a single command run. Loading the
// config unsets the secrets, so it is called again before every run.
func setEnv(t *testing.T, dbPath string) {
	t.Helper()
	t.Setenv(config.Prefix+"APP_SECRET", "0123456789abcdef-test-secret")
	t.Setenv(config.Prefix+"CLIENT_URL", "http://client.test")
	t.Setenv(config.Prefix+"DB_FILEPATH", dbPath)
	t.Setenv(config.Prefix+"LOG_LEVEL", "ERROR")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := RootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestTokenCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db.sqlite")
	run := func(args ...string) (string, error) {
		t.Helper()
		setEnv(t, dbPath)
		return execute(t, args...)
	}

	store, err := storage.NewDB(t.Context(), &config.Config{DBFilepath: dbPath}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	_, err = store.SaveUser(t.Context(), db.User{
		Name:         "cli",
		Email:        "cli@example.com",
		PasswordHash: []byte("unused"),
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := run("token", "issue", "cli")
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	require.NotEmpty(t, token)

	out, err = run("token", "verify", token)
	require.NoError(t, err)
	assert.Equal(t, "cli\n", out)

	// issuing again supersedes the first token
	out, err = run("token", "issue", "cli")
	require.NoError(t, err)
	second := strings.TrimSpace(out)
	assert.NotEqual(t, token, second)

	_, err = run("token", "verify", token)
	require.ErrorIs(t, err, sec.ErrUnauthorized)

	out, err = run("token", "verify", second)
	require.NoError(t, err)
	assert.Equal(t, "cli\n", out)

	_, err = run("token", "issue", "nobody")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRootCommand_SecretUnsetAfterLoad(t *testing.T) {
	setEnv(t, filepath.Join(t.TempDir(), "db.sqlite"))

	_, err := execute(t, "token", "verify", "anything")
	require.Error(t, err)
	_, present := os.LookupEnv(config.Prefix + "APP_SECRET")
	assert.False(t, present)
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	setEnv(t, filepath.Join(t.TempDir(), "db.sqlite"))
	t.Setenv(config.Prefix+"APP_SECRET", "short")

	_, err := execute(t, "token", "verify", "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "APP_SECRET")
}

func TestUserCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db.sqlite")
	run := func(input string, args ...string) (string, error) {
		t.Helper()
		setEnv(t, dbPath)
		return executeWithInput(t, input, args...)
	}

	_, err := run("", "user", "create", "nopass", "nopass@example.com")
	require.EqualError(t, err, "password required")

	_, err = run("hunter2\n", "user", "create", "cli", " CLI@Example.com ")
	require.NoError(t, err)

	store, err := storage.NewDB(t.Context(), &config.Config{DBFilepath: dbPath}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	user, err := store.FindUser(t.Context(), storage.UserByName, "cli")
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.Equal(t, "cli@example.com", user.Email)
	assert.Equal(t, db.UserKindPassword, user.Kind)
	require.NoError(t, sec.ComparePassword("hunter2", user.PasswordHash))

	_, err = run("n\n", "user", "delete", "cli")
	require.NoError(t, err)
	_, err = run("", "token", "issue", "cli")
	require.NoError(t, err, "declined deletion keeps the user")

	_, err = run("y\n", "user", "delete", "cli")
	require.NoError(t, err)
	_, err = run("", "token", "issue", "cli")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = run("y\n", "user", "delete", "cli")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReadLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "newline terminated", input: "hunter2\nrest", expected: "hunter2"},
		{name: "crlf terminated", input: "hunter2\r\nrest", expected: "hunter2"},
		{name: "eof terminated", input: "hunter2", expected: "hunter2"},
		{name: "backspace", input: "hunterX\b2\n", expected: "hunter2"},
		{name: "empty", input: "", expected: ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			line, err := readLine(strings.NewReader(test.input), true)
			require.NoError(t, err)
			assert.Equal(t, test.expected, string(line))
		})
	}

	t.Run("read error", func(t *testing.T) {
		t.Parallel()
		errRead := errors.New("read failed")
		_, err := readLine(iotest.ErrReader(errRead), false)
		require.ErrorIs(t, err, errRead)
	})
}

func TestConfirm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected bool
	}{
		{input: "y\n", expected: true},
		{input: "YES\n", expected: true},
		{input: " y \r\n", expected: true},
		{input: "n\n", expected: false},
		{input: "\n", expected: false},
		{input: "", expected: false},
		{input: "yep\n", expected: false},
	}

	for _, test := range tests {
		t.Run(strconv.Quote(test.input), func(t *testing.T) {
			t.Parallel()
			cmd := &cobra.Command{}
			cmd.SetIn(strings.NewReader(test.input))
			ok, err := confirm(cmd, "continue?")
			require.NoError(t, err)
			assert.Equal(t, test.expected, ok)
		})
	}
}
