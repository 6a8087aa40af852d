package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quasarerp/automations/pkg/models"
	"github.com/quasarerp/automations/pkg/persistence"
)

// LeadRepository handles lead database operations.
type LeadRepository struct {
	db *sql.DB
}

// NewLeadRepository creates a new lead repository.
func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// GetByID retrieves a lead by its ID.
func (r *LeadRepository) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	var (
		lead     models.Lead
		enriched []byte
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, company, website, email, enriched_data, automation_status, updated_at
		FROM leads WHERE id = $1
	`, id).Scan(
		&lead.ID,
		&lead.Name,
		&lead.Company,
		&lead.Website,
		&lead.Email,
		&enriched,
		&lead.AutomationStatus,
		&lead.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lead %s: %w", id, persistence.ErrLeadNotFound)
		}

		return nil, fmt.Errorf("failed to scan lead: %w", err)
	}

	if len(enriched) > 0 {
		err = json.Unmarshal(enriched, &lead.EnrichedData)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal enriched data of lead %s: %w", id, err)
		}
	}

	return &lead, nil
}

// Save creates or replaces a lead.
func (r *LeadRepository) Save(ctx context.Context, lead *models.Lead) error {
	lead.UpdatedAt = time.Now().UTC()

	enriched, err := marshalEnriched(lead.EnrichedData)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO leads (id, name, company, website, email, enriched_data, automation_status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			company = EXCLUDED.company,
			website = EXCLUDED.website,
			email = EXCLUDED.email,
			enriched_data = EXCLUDED.enriched_data,
			automation_status = EXCLUDED.automation_status,
			updated_at = EXCLUDED.updated_at
	`,
		lead.ID,
		lead.Name,
		lead.Company,
		lead.Website,
		lead.Email,
		enriched,
		lead.AutomationStatus,
		lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save lead: %w", err)
	}

	return nil
}

// Update writes the engine-owned lead fields that are set on update.
func (r *LeadRepository) Update(ctx context.Context, id string, update models.LeadUpdate) error {
	enriched, err := marshalEnriched(update.EnrichedData)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE leads SET
			enriched_data = COALESCE($2::jsonb, enriched_data),
			automation_status = COALESCE($3, automation_status),
			updated_at = $4
		WHERE id = $1
	`, id, enriched, update.AutomationStatus, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("lead %s: %w", id, persistence.ErrLeadNotFound)
	}

	return nil
}

func marshalEnriched(data *models.EnrichedData) (any, error) {
	if data == nil {
		return nil, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal enriched data: %w", err)
	}

	return string(raw), nil
}
