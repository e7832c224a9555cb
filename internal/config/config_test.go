package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnv() map[string]string {
	return map[string]string{
		"CFGRAM_APP_SECRET": "0123456789abcdef0123",
		"CFGRAM_CLIENT_URL": "http://localhost:8080",
	}
}

func TestLoadFrom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "valid config",
			env:     map[string]string{},
			wantErr: "",
		},
		{
			name:    "missing secret fails validation",
			env:     map[string]string{"CFGRAM_APP_SECRET": ""},
			wantErr: "APP_SECRET must be at least",
		},
		{
			name:    "short secret fails validation",
			env:     map[string]string{"CFGRAM_APP_SECRET": "short"},
			wantErr: "APP_SECRET must be at least",
		},
		{
			name:    "missing client url fails validation",
			env:     map[string]string{"CFGRAM_CLIENT_URL": ""},
			wantErr: "CLIENT_URL must be set",
		},
		{
			name:    "non-http client url fails validation",
			env:     map[string]string{"CFGRAM_CLIENT_URL": "ftp://example.com"},
			wantErr: "CLIENT_URL must be an http(s) URL",
		},
		{
			name:    "negative ttl fails validation",
			env:     map[string]string{"CFGRAM_TOKEN_TTL": "-1h"},
			wantErr: "TOKEN_TTL must not be negative",
		},
		{
			name:    "google without secret fails validation",
			env:     map[string]string{"CFGRAM_GOOGLE_CLIENT_ID": "client"},
			wantErr: "GOOGLE_CLIENT_SECRET must be set",
		},
		{
			name:    "unparseable duration",
			env:     map[string]string{"CFGRAM_TOKEN_TTL": "forever"},
			wantErr: "failed to parse environment",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			environ := validEnv()
			for k, v := range test.env {
				environ[k] = v
			}
			cfg, err := LoadFrom(environ)

			if test.wantErr != "" {
				require.ErrorContains(t, err, test.wantErr)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
		})
	}
}

func TestLoadFrom_Overrides(t *testing.T) {
	t.Parallel()

	environ := validEnv()
	environ["CFGRAM_WEB_ADDRESS"] = "127.0.0.1:9000"
	environ["CFGRAM_DB_FILEPATH"] = ":memory:"
	environ["CFGRAM_LOG_LEVEL"] = "DEBUG"
	environ["CFGRAM_DEV_MODE"] = "true"
	environ["CFGRAM_TOKEN_TTL"] = "24h"
	environ["CFGRAM_GOOGLE_CLIENT_ID"] = "client"
	environ["CFGRAM_GOOGLE_CLIENT_SECRET"] = "secret"
	environ["CFGRAM_GOOGLE_SCOPES"] = "openid,email"

	cfg, err := LoadFrom(environ)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.WebAddress)
	assert.Equal(t, ":memory:", cfg.DBFilepath)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.Google.Enabled())
	assert.Equal(t, []string{"openid", "email"}, cfg.Google.Scopes)
	assert.Equal(t, Default().Google.TokenURL, cfg.Google.TokenURL)
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.NotEmpty(t, cfg.DBFilepath)
	assert.False(t, cfg.Google.Enabled())
	require.Error(t, cfg.Validate(), "defaults require a secret and client url")
}

func TestConfig_LogValue(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.AppSecret = "super-secret-value"
	assert.NotContains(t, cfg.LogValue().String(), cfg.AppSecret)
}
