// Package payment submits registrations to the workflow endpoint that
// records them and hands back a payment link.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"eventreg/internal/platform/provider"
)

const providerName = "workflow"

const maxReplyBody = 1 << 20

var tracer = otel.Tracer("eventreg/internal/payment")

// WebhookClient posts registrations to the workflow webhook.
type WebhookClient struct {
	url        string
	httpClient *http.Client
}

// Option configures the WebhookClient.
type Option func(*WebhookClient)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(w *WebhookClient) {
		w.httpClient = c
	}
}

// NewWebhookClient creates a client for url with a per-request timeout.
func NewWebhookClient(url string, timeout time.Duration, opts ...Option) (*WebhookClient, error) {
	if url == "" {
		return nil, fmt.Errorf("workflow webhook URL is required")
	}
	w := &WebhookClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Submit posts p and interprets the reply:
//   - 2xx with success not false and a paymentUrl: accepted
//   - 2xx with success not false and no paymentUrl: ErrPaymentLinkMissing
//   - 2xx with success:false, or non-2xx: *RejectedError
//   - transport or decoding trouble: *provider.Error
func (w *WebhookClient) Submit(ctx context.Context, p Payload) (Result, error) {
	ctx, span := tracer.Start(ctx, "payment.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.method", p.PaymentMethod),
		attribute.Int("payment.installments", p.Installments),
		attribute.Int("payment.tickets", p.TicketQuantity),
		attribute.String("payment.event", p.Event),
	)

	body, err := json.Marshal(p)
	if err != nil {
		return Result{}, provider.NewError(provider.ErrorInternal, providerName, "encode payload", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, provider.NewError(provider.ErrorInternal, providerName, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		perr := provider.FromTransport(providerName, err)
		span.RecordError(perr)
		span.SetStatus(codes.Error, string(perr.Category))
		return Result{}, perr
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBody))
	if err != nil {
		perr := provider.FromTransport(providerName, err)
		span.RecordError(perr)
		return Result{}, perr
	}

	result, err := interpret(resp.StatusCode, raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Outcome(err))
	}
	return result, err
}

func interpret(status int, raw []byte) (Result, error) {
	var r reply
	decodeErr := json.Unmarshal(raw, &r)

	if status < 200 || status >= 300 {
		return Result{}, &RejectedError{StatusCode: status, Message: r.Message}
	}
	if decodeErr != nil {
		return Result{}, provider.NewError(provider.ErrorBadData, providerName, "decode reply", decodeErr)
	}
	if r.Success != nil && !*r.Success {
		return Result{}, &RejectedError{Message: r.Message}
	}
	if r.PaymentURL == "" {
		return Result{}, ErrPaymentLinkMissing
	}
	return Result{PaymentURL: r.PaymentURL}, nil
}
