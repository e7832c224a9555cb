// Package oauth exchanges authorization codes with external identity
// providers and resolves the identity behind them.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"slices"
	"strings"

	"connectrpc.com/connect"
	"golang.org/x/oauth2"

	"github.com/stolasapp/cfgram/internal/config"
	"github.com/stolasapp/cfgram/internal/sec"
)

// maxUserInfoBytes caps the size of a userinfo response body.
const maxUserInfoBytes = 1 << 20

// ErrUnknownProvider is returned when looking up a provider that has not been
// registered.
var ErrUnknownProvider = connect.NewError(connect.CodeNotFound, errors.New("unknown identity provider"))

// Provider is a single OAuth 2.0 identity provider using the authorization
// code grant.
type Provider struct {
	name        string
	config      *oauth2.Config
	userInfoURL string
}

// NewProvider creates a Provider named name from its client registration.
// The redirect URI is derived from apiURL and must match the route that
// receives the provider's callback.
func NewProvider(name string, cfg config.OAuthProvider, apiURL string) *Provider {
	return &Provider{
		name: name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			RedirectURL: RedirectURL(apiURL, name),
			Scopes:      cfg.Scopes,
		},
		userInfoURL: cfg.UserInfoURL,
	}
}

// RedirectURL returns the callback URL for the named provider.
func RedirectURL(apiURL, name string) string {
	return strings.TrimSuffix(apiURL, "/") + "/oauth/" + name + "/code"
}

// Name returns the name the provider is registered under.
func (p *Provider) Name() string { return p.name }

// AuthCodeURL returns the URL of the provider's consent page.
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Identify exchanges code for an access token and fetches the identity of the
// user who granted it. A rejected code is reported as unauthenticated; any
// other failure talking to the provider is internal.
func (p *Provider) Identify(ctx context.Context, code string) (sec.Identity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return sec.Identity{}, connect.NewError(connect.CodeUnauthenticated,
				fmt.Errorf("%s rejected the authorization code: %w", p.name, err))
		}
		return sec.Identity{}, connect.NewError(connect.CodeInternal,
			fmt.Errorf("failed to exchange authorization code with %s: %w", p.name, err))
	}

	info, err := p.fetchUserInfo(ctx, token)
	if err != nil {
		return sec.Identity{}, connect.NewError(connect.CodeInternal, err)
	}
	return sec.Identity{
		Subject: info.Subject,
		Email:   info.Email,
		Name:    info.Name,
	}, nil
}

type userInfo struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

func (p *Provider) fetchUserInfo(ctx context.Context, token *oauth2.Token) (info userInfo, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return info, fmt.Errorf("failed to build userinfo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return info, fmt.Errorf("failed to fetch userinfo from %s: %w", p.name, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("userinfo request to %s failed with status %d", p.name, resp.StatusCode)
	}
	if err = json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes)).Decode(&info); err != nil {
		return info, fmt.Errorf("failed to decode userinfo from %s: %w", p.name, err)
	}
	return info, nil
}

// Providers is the set of enabled identity providers keyed by name.
type Providers map[string]*Provider

// FromConfig returns the providers enabled in cfg.
func FromConfig(cfg *config.Config) Providers {
	providers := Providers{}
	if cfg.Google.Enabled() {
		providers.Register(NewProvider("google", cfg.Google, cfg.APIURL))
	}
	return providers
}

// Register adds provider, replacing any provider with the same name.
func (p Providers) Register(provider *Provider) {
	p[provider.Name()] = provider
}

// Lookup returns the named provider or [ErrUnknownProvider].
func (p Providers) Lookup(name string) (*Provider, error) {
	provider, ok := p[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return provider, nil
}

// Names returns the registered provider names in sorted order.
func (p Providers) Names() []string {
	return slices.Sorted(maps.Keys(p))
}
