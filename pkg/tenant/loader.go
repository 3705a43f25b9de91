package tenant

import (
	"context"
	"log/slog"

	"github.com/dmflow/dmflow/pkg/models"
	"github.com/dmflow/dmflow/pkg/persistence"
)

// Loader serves account records through the TTL cache. Writes go straight to
// persistence and invalidate the cached copy so the next read is fresh.
type Loader struct {
	persistence persistence.Persistence
	cache       *Cache
	logger      *slog.Logger
}

func NewLoader(p persistence.Persistence, cache *Cache, logger *slog.Logger) *Loader {
	return &Loader{
		persistence: p,
		cache:       cache,
		logger:      logger.With("module", "tenant"),
	}
}

// Load returns the account for accountID, consulting the cache first.
func (l *Loader) Load(ctx context.Context, accountID string) (*models.Account, error) {
	if account, ok := l.cache.Get(accountID); ok {
		return account, nil
	}

	account, err := l.persistence.AccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	l.cache.Set(account)

	return account, nil
}

// Save persists the account and invalidates its cached copy.
func (l *Loader) Save(ctx context.Context, account *models.Account) error {
	if err := l.persistence.SaveAccount(ctx, account); err != nil {
		return err
	}

	l.cache.Invalidate(account.ID)
	l.logger.DebugContext(ctx, "Invalidated cached account", "account_id", account.ID)

	return nil
}
