package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quasarerp/automations/pkg/credentials"
)

// NewCredentialStore opens the credential store named by url: "memory" (or
// empty) keeps credentials in process, redis:// and rediss:// URLs share
// them between the API and the worker. The returned func releases the store.
func NewCredentialStore(ctx context.Context, url string, logger *slog.Logger) (credentials.Store, func() error, error) {
	switch {
	case url == "" || url == "memory":
		return credentials.NewMemoryStore(), func() error { return nil }, nil
	case strings.HasPrefix(url, "redis://"), strings.HasPrefix(url, "rediss://"):
		store, err := credentials.NewRedisStore(ctx, url, logger)
		if err != nil {
			return nil, nil, err
		}

		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported credential store %q", url)
	}
}
