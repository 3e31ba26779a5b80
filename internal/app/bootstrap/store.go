package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/support-escalation-bot/internal/config"
	"github.com/wolfman30/support-escalation-bot/internal/history"
	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

// BuildStore opens the conversation store selected by STORE_DRIVER and makes
// sure its schema exists.
func BuildStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (history.Store, error) {
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory conversation store; history is lost on restart")
		return history.NewMemoryStore(), nil
	case "", "sqlite":
		store, err := history.NewSQLiteStore(ctx, cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: open sqlite store: %w", err)
		}
		logger.Info("using sqlite conversation store", "path", cfg.DatabasePath)
		return store, nil
	case "postgres", "postgresql":
		return buildPostgresStore(ctx, cfg.DatabaseURL, logger)
	default:
		return nil, fmt.Errorf("bootstrap: unknown store driver %q", cfg.StoreDriver)
	}
}

func buildPostgresStore(ctx context.Context, url string, logger *logging.Logger) (history.Store, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("bootstrap: DATABASE_URL is required for the postgres store")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}

	store := history.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("using postgres conversation store")
	return store, nil
}
