package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmflow/dmflow/pkg/models"
	"github.com/dmflow/dmflow/pkg/persistence"
)

// AccountByID returns the account with the given id.
func (p *Persistence) AccountByID(ctx context.Context, id string) (*models.Account, error) {
	query := `
		SELECT id, platform_user_id, username, personality_prompt, business_context, ai_enabled, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	account := &models.Account{}

	var username, personality, business sql.NullString

	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID, &account.PlatformUserID, &username, &personality, &business,
		&account.AIEnabled, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrAccountNotFound
		}

		return nil, fmt.Errorf("failed to query account %s: %w", id, err)
	}

	account.Username = username.String
	account.PersonalityPrompt = personality.String
	account.BusinessContext = business.String

	return account, nil
}

// SaveAccount upserts an account.
func (p *Persistence) SaveAccount(ctx context.Context, account *models.Account) error {
	account.UpdatedAt = time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = account.UpdatedAt
	}

	query := `
		INSERT INTO accounts (id, platform_user_id, username, personality_prompt, business_context, ai_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			platform_user_id = EXCLUDED.platform_user_id
		  , username = EXCLUDED.username
		  , personality_prompt = EXCLUDED.personality_prompt
		  , business_context = EXCLUDED.business_context
		  , ai_enabled = EXCLUDED.ai_enabled
		  , updated_at = EXCLUDED.updated_at
	`

	_, err := p.db.ExecContext(ctx, query,
		account.ID, account.PlatformUserID, nullString(account.Username),
		nullString(account.PersonalityPrompt), nullString(account.BusinessContext),
		account.AIEnabled, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", account.ID, err)
	}

	return nil
}

// CreateOrUpdateLead upserts a lead keyed by (account, sender).
func (p *Persistence) CreateOrUpdateLead(ctx context.Context, lead *models.Lead) (*models.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}

	lead.UpdatedAt = time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = lead.UpdatedAt
	}

	tagsJSON, err := json.Marshal(lead.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lead tags: %w", err)
	}

	query := `
		INSERT INTO leads (id, account_id, sender_id, username, name, email, phone, tags, flow_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (account_id, sender_id) DO UPDATE SET
			username = EXCLUDED.username
		  , name = EXCLUDED.name
		  , email = EXCLUDED.email
		  , phone = EXCLUDED.phone
		  , tags = EXCLUDED.tags
		  , flow_id = EXCLUDED.flow_id
		  , updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err = p.db.QueryRowContext(ctx, query,
		lead.ID, lead.AccountID, lead.SenderID, nullString(lead.Username),
		nullString(lead.Name), nullString(lead.Email), nullString(lead.Phone),
		tagsJSON, nullString(lead.FlowID), lead.CreatedAt, lead.UpdatedAt,
	).Scan(&lead.ID, &lead.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert lead for sender %s: %w", lead.SenderID, err)
	}

	return lead, nil
}

// LeadBySender returns the lead for the (account, sender) key.
func (p *Persistence) LeadBySender(ctx context.Context, accountID, senderID string) (*models.Lead, error) {
	query := `
		SELECT id, account_id, sender_id, username, name, email, phone, tags, flow_id, created_at, updated_at
		FROM leads
		WHERE account_id = $1 AND sender_id = $2
	`

	lead := &models.Lead{}

	var (
		username, name, email, phone, flowID sql.NullString
		tagsJSON                             []byte
	)

	err := p.db.QueryRowContext(ctx, query, accountID, senderID).Scan(
		&lead.ID, &lead.AccountID, &lead.SenderID, &username, &name, &email,
		&phone, &tagsJSON, &flowID, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrLeadNotFound
		}

		return nil, fmt.Errorf("failed to query lead for sender %s: %w", senderID, err)
	}

	lead.Username = username.String
	lead.Name = name.String
	lead.Email = email.String
	lead.Phone = phone.String
	lead.FlowID = flowID.String

	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &lead.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal lead tags: %w", err)
		}
	}

	return lead, nil
}
