package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/swami086/gentle-space-realty/internal/domain"
)

const (
	// ProviderGoogle is the only external identity provider wired today.
	ProviderGoogle = domain.AuthProviderGoogle

	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	maxUserInfoBytes  = 1 << 20
)

// Identity is the provider-verified profile of the person signing in.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// IdentityProvider performs the provider side of an authorization-code flow.
// Token signature checks and transport belong to the implementation.
type IdentityProvider interface {
	Name() string
	// AuthCodeURL builds the consent URL. The S256 challenge is derived from verifier.
	AuthCodeURL(state, verifier string) string
	// Exchange redeems code with verifier and returns the signed-in identity.
	Exchange(ctx context.Context, code, verifier string) (Identity, error)
}

// GoogleConfig configures GoogleProvider. Endpoint URLs default to Google's.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	HTTPClient   *http.Client
}

// GoogleProvider signs users in with Google OpenID Connect.
type GoogleProvider struct {
	oauth       oauth2.Config
	userInfoURL string
	client      *http.Client
}

// NewGoogleProvider builds a provider requesting the openid, email and profile scopes.
func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	endpoint := endpoints.Google
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	userInfo := cfg.UserInfoURL
	if userInfo == "" {
		userInfo = googleUserInfoURL
	}
	return &GoogleProvider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: userInfo,
		client:      cfg.HTTPClient,
	}
}

func (p *GoogleProvider) Name() string {
	return ProviderGoogle
}

func (p *GoogleProvider) AuthCodeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code, verifier string) (Identity, error) {
	if p.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	}
	token, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Identity{}, classifyExchangeError(err)
	}
	return p.fetchUserInfo(ctx, token)
}

func (p *GoogleProvider) fetchUserInfo(ctx context.Context, token *oauth2.Token) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: userinfo request: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return Identity{}, &ProviderError{Code: "userinfo_unavailable", Description: resp.Status, kind: KindTransient}
	case resp.StatusCode != http.StatusOK:
		return Identity{}, &ProviderError{Code: "userinfo_rejected", Description: resp.Status, kind: KindInvalid}
	}

	var payload struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes)).Decode(&payload); err != nil {
		return Identity{}, fmt.Errorf("%w: decode userinfo: %v", ErrProviderUnavailable, err)
	}
	return Identity{
		Subject:       payload.Sub,
		Email:         strings.TrimSpace(payload.Email),
		EmailVerified: payload.EmailVerified,
		Name:          strings.TrimSpace(payload.Name),
	}, nil
}

func classifyExchangeError(err error) error {
	var retrieve *oauth2.RetrieveError
	if !errors.As(err, &retrieve) {
		return fmt.Errorf("%w: token exchange: %v", ErrProviderUnavailable, err)
	}
	status := 0
	if retrieve.Response != nil {
		status = retrieve.Response.StatusCode
	}
	switch {
	case retrieve.ErrorCode == "invalid_client" || retrieve.ErrorCode == "unauthorized_client":
		return &ConfigurationError{Provider: ProviderGoogle, Description: firstNonEmpty(retrieve.ErrorDescription, "The OAuth client credentials were rejected.")}
	case isProviderDisabled(retrieve.ErrorCode, retrieve.ErrorDescription):
		return &ConfigurationError{Provider: ProviderGoogle, Description: retrieve.ErrorDescription}
	case status >= http.StatusInternalServerError:
		return &ProviderError{Code: firstNonEmpty(retrieve.ErrorCode, "server_error"), Description: retrieve.ErrorDescription, kind: KindTransient}
	}
	return &ProviderError{Code: firstNonEmpty(retrieve.ErrorCode, "invalid_grant"), Description: retrieve.ErrorDescription, kind: KindInvalid}
}
