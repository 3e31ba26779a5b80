package bootstrap

import (
	"context"
	"fmt"

	"github.com/wolfman30/support-escalation-bot/internal/channels/twitter"
	appconfig "github.com/wolfman30/support-escalation-bot/internal/config"
	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

// BuildTwitterClient returns an X API client authorized with the configured
// OAuth 2.0 user tokens.
func BuildTwitterClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*twitter.Client, error) {
	httpClient, err := twitter.NewOAuth2HTTPClient(ctx, twitter.OAuthConfig{
		ClientID:     cfg.TwitterClientID,
		ClientSecret: cfg.TwitterClientSecret,
		AccessToken:  cfg.TwitterAccessToken,
		RefreshToken: cfg.TwitterRefreshToken,
		APIBase:      cfg.TwitterAPIBase,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: twitter auth: %w", err)
	}
	return twitter.NewClient(httpClient,
		twitter.WithAPIBase(cfg.TwitterAPIBase),
		twitter.WithLogger(logger),
	), nil
}
