package twitter

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// OAuthConfig holds OAuth 2.0 user-context credentials.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	// APIBase is used to derive the token endpoint; defaults to api.twitter.com.
	APIBase string
}

// NewOAuth2HTTPClient returns an http.Client that authorizes every request.
// With a refresh token and client id the access token is refreshed
// automatically; otherwise the access token is used as a static bearer.
func NewOAuth2HTTPClient(ctx context.Context, cfg OAuthConfig) (*http.Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" && strings.TrimSpace(cfg.RefreshToken) == "" {
		return nil, errors.New("twitter: access token or refresh token is required")
	}

	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = defaultAPIBase
	}

	token := &oauth2.Token{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
		TokenType:    "Bearer",
	}

	if cfg.RefreshToken != "" && cfg.ClientID != "" {
		conf := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://twitter.com/i/oauth2/authorize",
				TokenURL:  base + "/2/oauth2/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
			Scopes: []string{"tweet.read", "tweet.write", "users.read", "dm.read", "dm.write", "offline.access"},
		}
		return conf.Client(ctx, token), nil
	}

	if cfg.AccessToken == "" {
		return nil, errors.New("twitter: refresh token requires a client id")
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(token)), nil
}
