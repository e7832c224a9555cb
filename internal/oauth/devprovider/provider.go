// Package devprovider provides a fake OAuth 2.0 identity provider for
// development and testing. It implements just enough of the authorization
// code grant for [oauth.Provider] to complete a sign in against it.
//
// [oauth.Provider]: github.com/stolasapp/cfgram/internal/oauth.Provider
package devprovider

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/stolasapp/cfgram/internal/config"
)

// Client registration accepted by the provider.
const (
	ClientID     = "cfgram-dev"
	ClientSecret = "cfgram-dev-secret" //nolint:gosec // not a real credential
)

// tokenLifetime is reported to clients as expires_in; tokens are not actually
// expired by the provider.
const tokenLifetime = time.Hour

// Seed returns the dev provider seed from the DEV_SERVICE_SEED environment
// variable, or a random value if not set.
func Seed() uint64 {
	if env := os.Getenv("DEV_SERVICE_SEED"); env != "" {
		if seed, err := strconv.ParseUint(env, 10, 64); err == nil {
			return seed
		}
	}
	return rand.Uint64() //nolint:gosec // intentionally weak random for test data
}

// Identity is a user known to the provider.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// Service is an HTTP server acting as an OAuth identity provider. Identities
// are generated on demand from a seeded faker.
type Service struct {
	mux *http.ServeMux

	mu         sync.Mutex
	faker      *gofakeit.Faker
	identities map[string]Identity // keyed by email
	codes      map[string]string   // code to email; single use
	tokens     map[string]string   // access token to email
}

// New creates a new dev provider with a seeded identity generator.
func New(seed uint64) *Service {
	svc := &Service{
		mux:        http.NewServeMux(),
		faker:      gofakeit.New(seed),
		identities: make(map[string]Identity),
		codes:      make(map[string]string),
		tokens:     make(map[string]string),
	}
	svc.registerRoutes()
	return svc
}

// Config returns the client registration for a provider served at baseURL.
func Config(baseURL string) config.OAuthProvider {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return config.OAuthProvider{
		ClientID:     ClientID,
		ClientSecret: ClientSecret,
		AuthURL:      baseURL + "/authorize",
		TokenURL:     baseURL + "/token",
		UserInfoURL:  baseURL + "/userinfo",
		Scopes:       []string{"openid", "email", "profile"},
	}
}

// ServeHTTP satisfies [http.Handler].
func (s *Service) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	s.mux.ServeHTTP(writer, request)
}

// IssueCode returns a fresh authorization code for the identity with the
// given email, generating the identity if it is new. An empty email
// generates a new identity.
func (s *Service) IssueCode(email string) (string, Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident := s.identityLocked(email)
	code := s.faker.UUID()
	s.codes[code] = ident.Email
	return code, ident
}

func (s *Service) identityLocked(email string) Identity {
	if ident, ok := s.identities[email]; ok {
		return ident
	}
	ident := Identity{
		Subject: strconv.FormatUint(s.faker.Uint64(), 10),
		Email:   email,
		Name:    s.faker.Name(),
	}
	if ident.Email == "" {
		ident.Email = s.faker.Email()
	}
	s.identities[ident.Email] = ident
	return ident
}

func (s *Service) redeemCode(code string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.codes[code]
	if !ok {
		return "", false
	}
	delete(s.codes, code)
	token := s.faker.UUID()
	s.tokens[token] = email
	return token, true
}

func (s *Service) lookupToken(token string) (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.tokens[token]
	if !ok {
		return Identity{}, false
	}
	return s.identities[email], true
}

func (s *Service) registerRoutes() {
	// Consent page - approves immediately and redirects back with a code
	s.mux.HandleFunc("GET /authorize", s.handleAuthorize)

	// Code exchange
	s.mux.HandleFunc("POST /token", s.handleToken)

	// Identity of the access token holder
	s.mux.HandleFunc("GET /userinfo", s.handleUserInfo)
}

func (s *Service) handleAuthorize(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()
	if query.Get("client_id") != ClientID {
		http.Error(writer, "unknown client", http.StatusBadRequest)
		return
	}
	redirect, err := url.Parse(query.Get("redirect_uri"))
	if err != nil || !redirect.IsAbs() {
		http.Error(writer, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	code, _ := s.IssueCode(query.Get("login_hint"))
	params := redirect.Query()
	params.Set("code", code)
	if state := query.Get("state"); state != "" {
		params.Set("state", state)
	}
	redirect.RawQuery = params.Encode()
	http.Redirect(writer, request, redirect.String(), http.StatusFound)
}

func (s *Service) handleToken(writer http.ResponseWriter, request *http.Request) {
	if err := request.ParseForm(); err != nil {
		writeOAuthError(writer, http.StatusBadRequest, "invalid_request")
		return
	}

	clientID, clientSecret, ok := request.BasicAuth()
	if !ok {
		clientID = request.PostForm.Get("client_id")
		clientSecret = request.PostForm.Get("client_secret")
	}
	if clientID != ClientID || clientSecret != ClientSecret {
		writeOAuthError(writer, http.StatusUnauthorized, "invalid_client")
		return
	}
	if request.PostForm.Get("grant_type") != "authorization_code" {
		writeOAuthError(writer, http.StatusBadRequest, "unsupported_grant_type")
		return
	}

	token, ok := s.redeemCode(request.PostForm.Get("code"))
	if !ok {
		writeOAuthError(writer, http.StatusBadRequest, "invalid_grant")
		return
	}
	writeJSON(writer, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(tokenLifetime.Seconds()),
	})
}

func (s *Service) handleUserInfo(writer http.ResponseWriter, request *http.Request) {
	token, ok := strings.CutPrefix(request.Header.Get("Authorization"), "Bearer ")
	if !ok {
		writer.Header().Set("WWW-Authenticate", "Bearer")
		writeOAuthError(writer, http.StatusUnauthorized, "invalid_token")
		return
	}
	ident, ok := s.lookupToken(token)
	if !ok {
		writer.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeOAuthError(writer, http.StatusUnauthorized, "invalid_token")
		return
	}
	writeJSON(writer, http.StatusOK, ident)
}

func writeOAuthError(writer http.ResponseWriter, status int, code string) {
	writeJSON(writer, status, map[string]string{"error": code})
}

// writeJSON writes the value as a JSON response, discarding any error.
// Errors are ignored since this is test/dev infrastructure where write failures
// are unrecoverable and will manifest as test failures anyway.
func writeJSON(writer http.ResponseWriter, status int, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		http.Error(writer, fmt.Sprintf("failed to encode response: %v", err), http.StatusInternalServerError)
		return
	}
	writer.Header().Set("Content-Type", "application/json")
	writer.Header().Set("Cache-Control", "no-store")
	writer.WriteHeader(status)
	_, _ = io.WriteString(writer, string(data))
}
