package repository

import (
	"context"

	"github.com/deppfellow/campaign-gateway/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CampaignRepository struct {
	pool *pgxpool.Pool
}

func NewCampaignRepository(pool *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

const campaignColumns = `id, owner_id, title, description, budget, currency, status,
	payment_reference, starts_at, ends_at, created_at, updated_at`

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		INSERT INTO campaigns (owner_id, title, description, budget, currency, status, starts_at, ends_at)
		VALUES (@owner_id, @title, @description, @budget, @currency, @status, @starts_at, @ends_at)
		RETURNING `+campaignColumns,
		pgx.NamedArgs{
			"owner_id":    c.OwnerID,
			"title":       c.Title,
			"description": c.Description,
			"budget":      c.Budget,
			"currency":    c.Currency,
			"status":      c.Status,
			"starts_at":   c.StartsAt,
			"ends_at":     c.EndsAt,
		})
	if err != nil {
		return nil, err
	}
	return collectOne[model.Campaign](rows, "campaigns")
}

// GetForOwner only returns campaigns owned by ownerID; anything else is not found.
func (r *CampaignRepository) GetForOwner(ctx context.Context, id, ownerID uuid.UUID) (*model.Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+` FROM campaigns
		WHERE id = @id AND owner_id = @owner_id`,
		pgx.NamedArgs{"id": id, "owner_id": ownerID})
	if err != nil {
		return nil, err
	}
	return collectOne[model.Campaign](rows, "campaigns")
}

// SetPayment records the gateway reference and moves the campaign to status.
func (r *CampaignRepository) SetPayment(ctx context.Context, id uuid.UUID, reference string, status model.CampaignStatus) (*model.Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE campaigns
		SET payment_reference = @reference, status = @status, updated_at = now()
		WHERE id = @id
		RETURNING `+campaignColumns,
		pgx.NamedArgs{"id": id, "reference": reference, "status": status})
	if err != nil {
		return nil, err
	}
	return collectOne[model.Campaign](rows, "campaigns")
}
