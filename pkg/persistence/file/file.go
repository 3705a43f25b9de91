// Package file provides a file-based persistence implementation, suitable
// for development and tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dmflow/dmflow/pkg/models"
	"github.com/dmflow/dmflow/pkg/persistence"
)

// Persistence implements persistence.Persistence using JSON documents under
// a root directory. A single mutex serializes all writes, which also gives
// the revision check on executions its atomicity.
type Persistence struct {
	root string
	mu   sync.Mutex
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{root: cleanRoot}
}

// Close performs any necessary cleanup. Nothing to do for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) dir(kind string) string {
	return filepath.Join(p.root, kind)
}

func (p *Persistence) path(kind, id string) string {
	return filepath.Join(p.root, kind, id+".json")
}

func (p *Persistence) write(kind, id string, v any) error {
	if err := os.MkdirAll(p.dir(kind), 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	if err := os.WriteFile(p.path(kind, id), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	return nil
}

// read unmarshals the document into v. Returns os.ErrNotExist when absent.
func (p *Persistence) read(kind, id string, v any) error {
	data, err := os.ReadFile(p.path(kind, id))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}

	return nil
}

// readAll iterates every document of a kind, calling visit with each raw id.
func (p *Persistence) readAll(kind string, visit func(id string) error) error {
	entries, err := os.ReadDir(p.dir(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("failed to list %s directory: %w", kind, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}

		if err := visit(strings.TrimSuffix(name, ".json")); err != nil {
			return err
		}
	}

	return nil
}

// AccountByID returns the account with the given id.
func (p *Persistence) AccountByID(_ context.Context, id string) (*models.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	account := &models.Account{}
	if err := p.read("accounts", id, account); err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrAccountNotFound
		}

		return nil, err
	}

	return account, nil
}

// SaveAccount persists an account document.
func (p *Persistence) SaveAccount(_ context.Context, account *models.Account) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.write("accounts", account.ID, account)
}

// CreateOrUpdateLead upserts a lead keyed by (account, sender).
func (p *Persistence) CreateOrUpdateLead(_ context.Context, lead *models.Lead) (*models.Lead, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := lead.AccountID + "-" + lead.SenderID

	existing := &models.Lead{}

	err := p.read("leads", key, existing)
	if err == nil {
		lead.ID = existing.ID
		lead.CreatedAt = existing.CreatedAt
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if lead.ID == "" {
		lead.ID = key
	}

	if err := p.write("leads", key, lead); err != nil {
		return nil, err
	}

	return lead, nil
}

// LeadBySender returns the lead for the (account, sender) key.
func (p *Persistence) LeadBySender(_ context.Context, accountID, senderID string) (*models.Lead, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	lead := &models.Lead{}
	if err := p.read("leads", accountID+"-"+senderID, lead); err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrLeadNotFound
		}

		return nil, err
	}

	return lead, nil
}
