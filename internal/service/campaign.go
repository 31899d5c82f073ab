package service

import (
	"context"
	"strings"
	"time"

	"github.com/deppfellow/campaign-gateway/internal/errs"
	"github.com/deppfellow/campaign-gateway/internal/lib/email"
	"github.com/deppfellow/campaign-gateway/internal/lib/payment"
	"github.com/deppfellow/campaign-gateway/internal/logger"
	"github.com/deppfellow/campaign-gateway/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultCurrency is used when a campaign is created without one.
const DefaultCurrency = "NGN"

// CreateCampaignInput is the validated payload of POST /campaign/create.
type CreateCampaignInput struct {
	Title       string
	Description string
	Budget      int64
	Currency    string
	StartsAt    *time.Time
	EndsAt      *time.Time
}

type CampaignService struct {
	campaigns CampaignStore
	users     UserStore
	emails    EmailQueue
	payments  PaymentGateway
	logger    *zerolog.Logger
}

func NewCampaignService(campaigns CampaignStore, users UserStore, emails EmailQueue, payments PaymentGateway, logger *zerolog.Logger) *CampaignService {
	return &CampaignService{
		campaigns: campaigns,
		users:     users,
		emails:    emails,
		payments:  payments,
		logger:    logger,
	}
}

// Create stores a draft campaign for ownerID and notifies the owner by email.
func (s *CampaignService) Create(ctx context.Context, ownerID uuid.UUID, in CreateCampaignInput) (*model.Campaign, error) {
	owner, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	campaign, err := s.campaigns.Create(ctx, &model.Campaign{
		OwnerID:     owner.ID,
		Title:       in.Title,
		Description: in.Description,
		Budget:      in.Budget,
		Currency:    currency,
		Status:      model.CampaignDraft,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
	})
	if err != nil {
		return nil, err
	}

	msg := email.CampaignCreatedMessage(owner.Email, owner.Name, campaign.Title, campaign.Budget, campaign.Currency)
	if _, err := s.emails.EnqueueEmail(ctx, msg); err != nil {
		logger.FromContext(ctx, s.logger).Warn().
			Err(err).
			Str("campaign_id", campaign.ID.String()).
			Msg("failed to enqueue campaign created email")
	}

	return campaign, nil
}

func (s *CampaignService) Get(ctx context.Context, ownerID, id uuid.UUID) (*model.Campaign, error) {
	return s.campaigns.GetForOwner(ctx, id, ownerID)
}

// Pay initializes a gateway transaction for the campaign budget.
//
// The gateway's answer is returned as-is. Only a successful initialization
// moves the campaign to pending_payment.
func (s *CampaignService) Pay(ctx context.Context, ownerID, id uuid.UUID) (payment.Result, error) {
	campaign, err := s.campaigns.GetForOwner(ctx, id, ownerID)
	if err != nil {
		return payment.Result{}, err
	}
	if campaign.Status == model.CampaignActive {
		code := "CAMPAIGN_ALREADY_PAID"
		return payment.Result{}, errs.NewBadRequestError("This campaign has already been paid for", true, &code, nil, nil)
	}

	owner, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return payment.Result{}, err
	}

	result := s.payments.InitializeTransaction(ctx, payment.InitializeRequest{
		Email:     owner.Email,
		Amount:    campaign.Budget,
		Currency:  campaign.Currency,
		Reference: "cmp_" + uuid.NewString(),
		Metadata: map[string]string{
			"campaign_id": campaign.ID.String(),
		},
	})
	if !result.Success {
		return result, nil
	}

	var auth payment.Authorization
	if err := result.Decode(&auth); err != nil || auth.Reference == "" {
		logger.FromContext(ctx, s.logger).Error().Err(err).Msg("payment initialization returned no reference")
		return payment.Result{Message: "payment gateway returned an unexpected response"}, nil
	}

	if _, err := s.campaigns.SetPayment(ctx, campaign.ID, auth.Reference, model.CampaignPendingPayment); err != nil {
		return payment.Result{}, err
	}

	return result, nil
}

// VerifyPayment checks a transaction and activates the campaign once the
// gateway reports a successful charge covering the budget. reference
// defaults to the one stored by Pay.
func (s *CampaignService) VerifyPayment(ctx context.Context, ownerID, id uuid.UUID, reference string) (payment.Result, error) {
	campaign, err := s.campaigns.GetForOwner(ctx, id, ownerID)
	if err != nil {
		return payment.Result{}, err
	}

	if reference == "" && campaign.PaymentReference != nil {
		reference = *campaign.PaymentReference
	}
	if reference == "" {
		code := "CAMPAIGN_PAYMENT_NOT_STARTED"
		return payment.Result{}, errs.NewBadRequestError("No payment has been started for this campaign", true, &code, nil, nil)
	}

	result := s.payments.VerifyTransaction(ctx, reference)
	if !result.Success {
		return result, nil
	}

	var v payment.Verification
	if err := result.Decode(&v); err != nil {
		return result, nil
	}

	if v.Status == "success" && v.Reference == reference && v.Amount >= campaign.Budget && campaign.Status != model.CampaignActive {
		if _, err := s.campaigns.SetPayment(ctx, campaign.ID, reference, model.CampaignActive); err != nil {
			return payment.Result{}, err
		}
		logger.FromContext(ctx, s.logger).Info().
			Str("campaign_id", campaign.ID.String()).
			Str("reference", reference).
			Msg("campaign activated after payment")
	}

	return result, nil
}
