// Package cmd provides shared wiring helpers for the dmflow binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmflow/dmflow/pkg/persistence"
	"github.com/dmflow/dmflow/pkg/persistence/file"
	"github.com/dmflow/dmflow/pkg/persistence/postgresql"
)

// NewPersistence creates a persistence backend from the database URL:
// postgres://... selects PostgreSQL, anything else is treated as a file root
// (file://path or a plain directory).
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL persistence: %w", err))
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}
