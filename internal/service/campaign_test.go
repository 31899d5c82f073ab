package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/deppfellow/campaign-gateway/internal/errs"
	"github.com/deppfellow/campaign-gateway/internal/lib/email"
	"github.com/deppfellow/campaign-gateway/internal/lib/payment"
	"github.com/deppfellow/campaign-gateway/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type campaignFixture struct {
	svc       *CampaignService
	users     *memoryUsers
	campaigns *memoryCampaigns
	queue     *recordingQueue
	gateway   *stubGateway
	owner     *model.User
}

func newCampaignFixture(t *testing.T) *campaignFixture {
	t.Helper()

	logger := zerolog.Nop()
	f := &campaignFixture{
		users:     newMemoryUsers(),
		campaigns: newMemoryCampaigns(),
		queue:     &recordingQueue{},
		gateway:   &stubGateway{},
	}
	f.svc = NewCampaignService(f.campaigns, f.users, f.queue, f.gateway, &logger)

	owner, err := f.users.Create(context.Background(), "Ada", "ada@example.com", "hash")
	require.NoError(t, err)
	f.owner = owner
	return f
}

func (f *campaignFixture) create(t *testing.T) *model.Campaign {
	t.Helper()
	c, err := f.svc.Create(context.Background(), f.owner.ID, CreateCampaignInput{
		Title:    "Spring Launch",
		Budget:   150000,
		Currency: "ngn",
	})
	require.NoError(t, err)
	return c
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestCreateCampaign(t *testing.T) {
	f := newCampaignFixture(t)
	c := f.create(t)

	assert.Equal(t, model.CampaignDraft, c.Status)
	assert.Equal(t, "NGN", c.Currency)
	assert.Equal(t, f.owner.ID, c.OwnerID)

	require.Len(t, f.queue.messages, 1)
	assert.Equal(t, email.TemplateCampaignCreated, f.queue.messages[0].Template)
	assert.Equal(t, "1500.00", f.queue.messages[0].Data["Budget"])
}

func TestCreateCampaignUnknownOwner(t *testing.T) {
	f := newCampaignFixture(t)

	_, err := f.svc.Create(context.Background(), uuid.New(), CreateCampaignInput{Title: "x", Budget: 1, Currency: "NGN"})
	require.ErrorIs(t, err, pgx.ErrNoRows)
	assert.Empty(t, f.queue.messages)
}

func TestGetCampaignIsScopedToOwner(t *testing.T) {
	f := newCampaignFixture(t)
	c := f.create(t)

	_, err := f.svc.Get(context.Background(), uuid.New(), c.ID)
	require.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestPayMovesCampaignToPending(t *testing.T) {
	f := newCampaignFixture(t)
	c := f.create(t)

	f.gateway.initialize = payment.Result{
		Success: true,
		Message: "Authorization URL created",
		Data:    rawJSON(t, payment.Authorization{AuthorizationURL: "https://checkout/x", Reference: "ref-1"}),
	}

	res, err := f.svc.Pay(context.Background(), f.owner.ID, c.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(150000), f.gateway.lastInit.Amount)
	assert.Equal(t, "ada@example.com", f.gateway.lastInit.Email)
	assert.Equal(t, c.ID.String(), f.gateway.lastInit.Metadata["campaign_id"])

	stored, _ := f.campaigns.GetForOwner(context.Background(), c.ID, f.owner.ID)
	assert.Equal(t, model.CampaignPendingPayment, stored.Status)
	require.NotNil(t, stored.PaymentReference)
	assert.Equal(t, "ref-1", *stored.PaymentReference)
}

func TestPayGatewayFailureLeavesCampaignUntouched(t *testing.T) {
	f := newCampaignFixture(t)
	c := f.create(t)
	f.gateway.initialize = payment.Result{Message: "payment gateway is unreachable"}

	res, err := f.svc.Pay(context.Background(), f.owner.ID, c.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)

	stored, _ := f.campaigns.GetForOwner(context.Background(), c.ID, f.owner.ID)
	assert.Equal(t, model.CampaignDraft, stored.Status)
}

func TestVerifyPaymentActivatesCampaign(t *testing.T) {
	f := newCampaignFixture(t)
	c := f.create(t)
	_, err := f.campaigns.SetPayment(context.Background(), c.ID, "ref-1", model.CampaignPendingPayment)
	require.NoError(t, err)

	f.gateway.verify = payment.Result{
		Success: true,
		Message: "Verification successful",
		Data:    rawJSON(t, payment.Verification{Status: "success", Reference: "ref-1", Amount: 150000}),
	}

	res, err := f.svc.VerifyPayment(context.Background(), f.owner.ID, c.ID, "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ref-1", f.gateway.lastRef)

	stored, _ := f.campaigns.GetForOwner(context.Background(), c.ID, f.owner.ID)
	assert.Equal(t, model.CampaignActive, stored.Status)

	_, err = f.svc.Pay(context.Background(), f.owner.ID, c.ID)
	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "CAMPAIGN_ALREADY_PAID", httpErr.Code)
}

func TestVerifyPaymentUnderpaidStaysPending(t *testing.T) {
	f := newCampaignFixture(t)
	c := f.create(t)
	_, err := f.campaigns.SetPayment(context.Background(), c.ID, "ref-1", model.CampaignPendingPayment)
	require.NoError(t, err)

	f.gateway.verify = payment.Result{
		Success: true,
		Data:    rawJSON(t, payment.Verification{Status: "success", Reference: "ref-1", Amount: 100}),
	}

	_, err = f.svc.VerifyPayment(context.Background(), f.owner.ID, c.ID, "ref-1")
	require.NoError(t, err)

	stored, _ := f.campaigns.GetForOwner(context.Background(), c.ID, f.owner.ID)
	assert.Equal(t, model.CampaignPendingPayment, stored.Status)
}

func TestVerifyPaymentWithoutReference(t *testing.T) {
	f := newCampaignFixture(t)
	c := f.create(t)

	_, err := f.svc.VerifyPayment(context.Background(), f.owner.ID, c.ID, "")
	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 400, httpErr.Status)
}
