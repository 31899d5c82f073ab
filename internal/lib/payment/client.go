// Package payment is the client for the payment gateway's REST API
// (Paystack-compatible: /transaction/initialize, /transaction/verify).
//
// Every call returns a Result. Transport failures, non-2xx answers and
// undecodable bodies all become Result{Success: false}; callers never see the
// underlying error.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/deppfellow/campaign-gateway/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
)

// RequestTimeout is the ceiling for a single gateway call.
const RequestTimeout = 2 * time.Minute

const (
	msgUnreachable = "payment gateway is unreachable, please try again later"
	msgBadResponse = "payment gateway returned an unexpected response"
	msgRejected    = "payment gateway rejected the request"
)

// Result is the normalized outcome of a gateway call.
type Result struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Decode unmarshals Data into v.
func (r Result) Decode(v any) error {
	if len(r.Data) == 0 {
		return errors.New("payment result has no data")
	}
	return json.Unmarshal(r.Data, v)
}

// InitializeRequest starts a transaction. Amount is in minor units (kobo, cents).
type InitializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency,omitempty"`
	Reference   string            `json:"reference,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Authorization is the data of a successful initialize call.
type Authorization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Verification is the data of a verify call.
type Verification struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	PaidAt    string `json:"paid_at"`
}

// envelope is the gateway's response shape.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the payment gateway.
type Client struct {
	http        *resty.Client
	callbackURL string
	logger      *zerolog.Logger
}

// NewClient validates the gateway settings and builds the client.
//
// A missing host or secret is a startup error: the process must not come up
// able to accept payments it can never initialize.
func NewClient(cfg *config.IntegrationConfig, logger *zerolog.Logger) (*Client, error) {
	if cfg.PaymentHost == "" {
		return nil, errors.New("payment gateway host is not configured")
	}
	if cfg.PaymentSecretKey == "" {
		return nil, errors.New("payment gateway secret key is not configured")
	}
	if u, err := url.Parse(cfg.PaymentHost); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("payment gateway host must be an absolute URL")
	}

	httpClient := resty.New().
		SetBaseURL(cfg.PaymentHost).
		SetAuthToken(cfg.PaymentSecretKey).
		SetTimeout(RequestTimeout).
		SetHeader("Accept", "application/json").
		// External segments show up under the calling request's transaction.
		SetTransport(newrelic.NewRoundTripper(http.DefaultTransport))

	return &Client{
		http:        httpClient,
		callbackURL: cfg.PaymentCallbackURL,
		logger:      logger,
	}, nil
}

// InitializeTransaction starts a checkout and returns an Authorization in Data.
func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) Result {
	if req.CallbackURL == "" {
		req.CallbackURL = c.callbackURL
	}

	return c.do(ctx, "initialize", c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&envelope{}).
		SetError(&envelope{}),
		http.MethodPost, "/transaction/initialize")
}

// VerifyTransaction looks up a transaction and returns a Verification in Data.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) Result {
	return c.do(ctx, "verify", c.http.R().
		SetContext(ctx).
		SetPathParam("reference", reference).
		SetResult(&envelope{}).
		SetError(&envelope{}),
		http.MethodGet, "/transaction/verify/{reference}")
}

func (c *Client) do(ctx context.Context, op string, req *resty.Request, method, path string) Result {
	log := c.logger.With().Str("component", "payment").Str("operation", op).Logger()

	resp, err := req.Execute(method, path)
	if err != nil {
		log.Error().Err(err).Msg("payment gateway call failed")
		if ctx.Err() != nil || resp == nil || resp.RawResponse == nil {
			return Result{Message: msgUnreachable}
		}
		return Result{Message: msgBadResponse}
	}

	if resp.IsError() {
		body, _ := resp.Error().(*envelope)
		log.Warn().Int("status", resp.StatusCode()).Msg("payment gateway rejected request")

		msg := msgRejected
		if body != nil && body.Message != "" {
			msg = body.Message
		}
		var data json.RawMessage
		if body != nil {
			data = body.Data
		}
		return Result{Data: data, Message: msg}
	}

	body, ok := resp.Result().(*envelope)
	if !ok || body == nil {
		log.Error().Int("status", resp.StatusCode()).Msg("payment gateway response could not be decoded")
		return Result{Message: msgBadResponse}
	}

	result := Result{
		Success: body.Status,
		Data:    body.Data,
		Message: body.Message,
	}
	if result.Message == "" {
		if !result.Success {
			log.Error().Int("status", resp.StatusCode()).Str("content_type", resp.Header().Get("Content-Type")).Msg("payment gateway answered without a JSON envelope")
			return Result{Message: msgBadResponse}
		}
		result.Message = "ok"
	}
	return result
}
