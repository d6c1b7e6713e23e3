package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruleflow/internal/dispatch"
)

func TestHTTPTicketing(t *testing.T) {
	type call struct {
		method, path, auth, idempotency string
		body                            dispatch.TicketRequest
	}
	var calls []call

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := call{
			method:      r.Method,
			path:        r.URL.Path,
			auth:        r.Header.Get("Authorization"),
			idempotency: r.Header.Get("Idempotency-Key"),
		}
		_ = json.NewDecoder(r.Body).Decode(&c.body)
		calls = append(calls, c)

		if r.Method == http.MethodPost && r.URL.Path == "/tickets" {
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "INC-42"})
			return
		}
		if r.URL.Path == "/tickets/missing/close" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tickets := NewHTTPTicketing(srv.URL+"/", "tok", srv.Client())
	ctx := context.Background()
	req := dispatch.TicketRequest{TenantID: "acme", RuleID: "r-1", OccurrenceID: "occ-1", System: "itsm", Title: "Broken"}

	id, err := tickets.CreateTicket(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "INC-42", id)

	req.TicketID = "INC-42"
	require.NoError(t, tickets.UpdateTicket(ctx, req))
	require.NoError(t, tickets.CloseTicket(ctx, req))

	req.TicketID = "missing"
	assert.Error(t, tickets.CloseTicket(ctx, req))

	require.Len(t, calls, 4)
	assert.Equal(t, "POST /tickets", calls[0].method+" "+calls[0].path)
	assert.Equal(t, "PATCH /tickets/INC-42", calls[1].method+" "+calls[1].path)
	assert.Equal(t, "POST /tickets/INC-42/close", calls[2].method+" "+calls[2].path)
	assert.Equal(t, "Bearer tok", calls[0].auth)
	assert.Equal(t, "occ-1:r-1", calls[0].idempotency)
	assert.Equal(t, "Broken", calls[0].body.Title)
}

func TestHTTPTicketing_CreateWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewHTTPTicketing(srv.URL, "", srv.Client()).CreateTicket(context.Background(), dispatch.TicketRequest{})
	assert.Error(t, err)
}
