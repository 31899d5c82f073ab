package handler

import (
	"time"

	"github.com/deppfellow/campaign-gateway/internal/errs"
	"github.com/deppfellow/campaign-gateway/internal/lib/payment"
	"github.com/deppfellow/campaign-gateway/internal/model"
	"github.com/deppfellow/campaign-gateway/internal/server"
	"github.com/deppfellow/campaign-gateway/internal/service"
	"github.com/deppfellow/campaign-gateway/internal/validation"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type CreateCampaignRequest struct {
	Title       string     `json:"title" validate:"required,min=3,max=200"`
	Description string     `json:"description" validate:"max=2000"`
	Budget      int64      `json:"budget" validate:"required,gt=0"`
	Currency    string     `json:"currency" validate:"omitempty,len=3,alpha"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

func (r *CreateCampaignRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}

	if r.StartsAt != nil && r.EndsAt != nil && !r.EndsAt.After(*r.StartsAt) {
		return validation.CustomValidationErrors{{
			Field:   "ends_at",
			Message: "must be after starts_at",
		}}
	}
	return nil
}

// CampaignIDRequest addresses one campaign by path. json:"-" keeps a body
// field from overriding the path.
type CampaignIDRequest struct {
	ID string `param:"id" json:"-" validate:"required,uuid"`
}

func (r *CampaignIDRequest) Validate() error {
	return validation.Struct(r)
}

type VerifyPaymentRequest struct {
	ID        string `param:"id" json:"-" validate:"required,uuid"`
	Reference string `query:"reference" json:"-" validate:"omitempty,max=100"`
}

func (r *VerifyPaymentRequest) Validate() error {
	return validation.Struct(r)
}

type CampaignHandler struct {
	Handler
	campaigns CampaignService
}

func NewCampaignHandler(s *server.Server, campaigns CampaignService) *CampaignHandler {
	return &CampaignHandler{
		Handler:   NewHandler(s),
		campaigns: campaigns,
	}
}

func (h *CampaignHandler) Create(c echo.Context, req *CreateCampaignRequest) (*model.Campaign, error) {
	ownerID, err := currentUserID(c)
	if err != nil {
		return nil, err
	}

	return h.campaigns.Create(c.Request().Context(), ownerID, service.CreateCampaignInput{
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
		Currency:    req.Currency,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
}

func (h *CampaignHandler) Get(c echo.Context, req *CampaignIDRequest) (*model.Campaign, error) {
	ownerID, err := currentUserID(c)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, errs.NewBadRequestError("Invalid campaign id", true, nil, nil, nil)
	}
	return h.campaigns.Get(c.Request().Context(), ownerID, id)
}

func (h *CampaignHandler) Pay(c echo.Context, req *CampaignIDRequest) (payment.Result, error) {
	ownerID, err := currentUserID(c)
	if err != nil {
		return payment.Result{}, err
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return payment.Result{}, errs.NewBadRequestError("Invalid campaign id", true, nil, nil, nil)
	}
	return h.campaigns.Pay(c.Request().Context(), ownerID, id)
}

func (h *CampaignHandler) VerifyPayment(c echo.Context, req *VerifyPaymentRequest) (payment.Result, error) {
	ownerID, err := currentUserID(c)
	if err != nil {
		return payment.Result{}, err
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return payment.Result{}, errs.NewBadRequestError("Invalid campaign id", true, nil, nil, nil)
	}
	return h.campaigns.VerifyPayment(c.Request().Context(), ownerID, id, req.Reference)
}
