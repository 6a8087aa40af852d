package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/quasarerp/automations/pkg/persistence"
	"github.com/quasarerp/automations/pkg/persistence/file"
	"github.com/quasarerp/automations/pkg/persistence/postgresql"
)

// NewPersistence opens the store named by databaseURL: postgres:// and
// postgresql:// URLs use PostgreSQL, anything else is a file:// root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgresql"
	default:
		return "file"
	}
}
