package email

import (
	"context"
	"errors"
	"testing"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	got *resend.SendEmailRequest
	err error
}

func (f *fakeSender) SendWithContext(_ context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.got = params
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendEmailResponse{Id: "em_1"}, nil
}

func TestEveryTemplateRendersWithPreviewData(t *testing.T) {
	for _, tmpl := range Templates {
		html, err := Preview(tmpl)
		require.NoError(t, err, tmpl)
		assert.Contains(t, html, "Ada")
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render("missing", nil)
	require.Error(t, err)
}

func TestSendEmail(t *testing.T) {
	logger := zerolog.Nop()
	fake := &fakeSender{}
	c := &Client{emails: fake, from: "Campaigns <hi@example.com>", logger: &logger}

	msg := CampaignCreatedMessage("ada@example.com", "Ada", "Launch", 150050, "NGN")
	require.NoError(t, c.SendEmail(context.Background(), msg))

	require.NotNil(t, fake.got)
	assert.Equal(t, []string{"ada@example.com"}, fake.got.To)
	assert.Equal(t, "Campaigns <hi@example.com>", fake.got.From)
	assert.Contains(t, fake.got.Html, "1500.50 NGN")
}

func TestSendEmailProviderError(t *testing.T) {
	logger := zerolog.Nop()
	c := &Client{emails: &fakeSender{err: errors.New("boom")}, logger: &logger}

	err := c.SendEmail(context.Background(), WelcomeMessage("a@b.c", "A"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send email")
}

func TestFormatMinorUnits(t *testing.T) {
	assert.Equal(t, "0.05", formatMinorUnits(5))
	assert.Equal(t, "12.30", formatMinorUnits(1230))
	assert.Equal(t, "-1.01", formatMinorUnits(-101))
}
