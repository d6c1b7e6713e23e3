package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"ruleflow/internal/constants"
	"ruleflow/internal/dispatch"
)

// HTTPTicketing talks to an ITSM gateway exposing
//
//	POST  /tickets              -> {"id": "..."}
//	PATCH /tickets/{id}
//	POST  /tickets/{id}/close
type HTTPTicketing struct {
	client  *http.Client
	baseURL string
	token   string
}

func NewHTTPTicketing(baseURL, token string, client *http.Client) *HTTPTicketing {
	if client == nil {
		client = &http.Client{Timeout: constants.DefaultHTTPTimeout}
	}
	return &HTTPTicketing{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type ticketResponse struct {
	ID string `json:"id"`
}

func (t *HTTPTicketing) CreateTicket(ctx context.Context, req dispatch.TicketRequest) (string, error) {
	var out ticketResponse
	if err := t.do(ctx, http.MethodPost, "/tickets", req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("ticketing response carries no ticket id")
	}
	return out.ID, nil
}

func (t *HTTPTicketing) UpdateTicket(ctx context.Context, req dispatch.TicketRequest) error {
	return t.do(ctx, http.MethodPatch, "/tickets/"+url.PathEscape(req.TicketID), req, nil)
}

func (t *HTTPTicketing) CloseTicket(ctx context.Context, req dispatch.TicketRequest) error {
	return t.do(ctx, http.MethodPost, "/tickets/"+url.PathEscape(req.TicketID)+"/close", req, nil)
}

func (t *HTTPTicketing) do(ctx context.Context, method, path string, body dispatch.TicketRequest, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", body.OccurrenceID+":"+body.RuleID)
	req.Header.Set(constants.HeaderTenantID, body.TenantID)
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("ticketing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("ticketing returned status: %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
