package model

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus tracks a campaign through payment.
type CampaignStatus string

const (
	CampaignDraft          CampaignStatus = "draft"
	CampaignPendingPayment CampaignStatus = "pending_payment"
	CampaignActive         CampaignStatus = "active"
)

// Campaign is an advertising campaign owned by a user. Budget is in minor
// currency units.
type Campaign struct {
	ID               uuid.UUID      `json:"id" db:"id"`
	OwnerID          uuid.UUID      `json:"owner_id" db:"owner_id"`
	Title            string         `json:"title" db:"title"`
	Description      string         `json:"description" db:"description"`
	Budget           int64          `json:"budget" db:"budget"`
	Currency         string         `json:"currency" db:"currency"`
	Status           CampaignStatus `json:"status" db:"status"`
	PaymentReference *string        `json:"payment_reference" db:"payment_reference"`
	StartsAt         *time.Time     `json:"starts_at" db:"starts_at"`
	EndsAt           *time.Time     `json:"ends_at" db:"ends_at"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}
