package adapter

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ruleflow/internal/constants"
	"ruleflow/internal/dispatch"
	"ruleflow/internal/logger"
	"ruleflow/pkg/retry"
)

// SignPayload returns the X-Signature-256 value for body: "sha256=" followed by the hex encoded
// HMAC-SHA256 of body under secret.
func SignPayload(secret []byte, body []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write(body)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a signature produced by SignPayload in constant time.
func VerifySignature(secret []byte, body []byte, signature string) bool {
	return hmac.Equal([]byte(SignPayload(secret, body)), []byte(signature))
}

type HTTPWebhookInvoker struct {
	client *http.Client
	secret []byte
	policy retry.Policy
	logger logger.Logger
}

func NewHTTPWebhookInvoker(secret string, policy retry.Policy, client *http.Client, log logger.Logger) *HTTPWebhookInvoker {
	if client == nil {
		client = &http.Client{Timeout: constants.DefaultHTTPTimeout}
	}
	if log == nil {
		log = logger.NopLogger()
	}
	return &HTTPWebhookInvoker{client: client, secret: []byte(secret), policy: policy, logger: log}
}

// Invoke delivers the payload, retrying network errors and 5xx responses. A 4xx response is
// final.
func (w *HTTPWebhookInvoker) Invoke(ctx context.Context, req dispatch.WebhookRequest) error {
	body, err := json.Marshal(webhookBody(req))
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	signature := SignPayload(w.secret, body)

	return retry.RetryWithCallback(ctx, w.policy, func() error {
		return w.send(ctx, req, body, signature)
	}, func(attempt int, err error, nextDelay time.Duration) {
		w.logger.WarnwCtx(ctx, "Retrying webhook",
			"attempt", attempt,
			"next_delay", nextDelay,
			"rule_id", req.RuleID,
			"error", err,
		)
	})
}

func webhookBody(req dispatch.WebhookRequest) map[string]interface{} {
	payload := req.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return map[string]interface{}{
		"tenant_id":     req.TenantID,
		"rule_id":       req.RuleID,
		"occurrence_id": req.OccurrenceID,
		"payload":       payload,
	}
}

func (w *HTTPWebhookInvoker) send(ctx context.Context, req dispatch.WebhookRequest, body []byte, signature string) error {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(body))
	if err != nil {
		return retry.NewFatalError(fmt.Errorf("failed to create request: %w", err))
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(constants.HeaderSignature, signature)
	httpReq.Header.Set(constants.HeaderTenantID, req.TenantID)
	httpReq.Header.Set("X-Occurrence-ID", req.OccurrenceID)

	resp, err := w.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return retry.NewFatalError(ctx.Err())
		}
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= constants.HTTPStatusOKMin && resp.StatusCode < constants.HTTPStatusOKMax:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return retry.NewFatalError(fmt.Errorf("webhook returned status: %d", resp.StatusCode))
	default:
		return fmt.Errorf("webhook returned status: %d", resp.StatusCode)
	}
}
