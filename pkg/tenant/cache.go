package tenant

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dmflow/dmflow/pkg/models"
)

// DefaultCacheTTL bounds how long a cached account record may be served
// before persistence is consulted again.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	account   *models.Account
	expiresAt time.Time
}

// Cache is a TTL cache for account records. The clock is injected so expiry
// is testable without sleeping.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	clock   clockwork.Clock
}

func NewCache(ttl time.Duration, clock clockwork.Clock) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached account for accountID when present and not expired.
func (c *Cache) Get(accountID string) (*models.Account, bool) {
	c.mu.RLock()
	entry, ok := c.entries[accountID]
	c.mu.RUnlock()

	if !ok || c.clock.Now().After(entry.expiresAt) {
		return nil, false
	}

	return entry.account, true
}

// Set stores account under its id until the TTL elapses.
func (c *Cache) Set(account *models.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[account.ID] = cacheEntry{
		account:   account,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Invalidate drops the entry for accountID, if any.
func (c *Cache) Invalidate(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, accountID)
}
