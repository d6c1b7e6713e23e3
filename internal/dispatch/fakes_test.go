package dispatch

import (
	"context"
	"sync"

	"ruleflow/pkg/models"
)

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []models.Notification
	err   error
	hook  func(ctx context.Context)
	calls int
}

func (n *recordingNotifier) Send(ctx context.Context, msg models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.hook != nil {
		n.hook(ctx)
	}
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

type mutation struct {
	ref   RecordRef
	field string
	value interface{}
}

type recordingRecords struct {
	mu        sync.Mutex
	mutations []mutation
	err       error
}

func (r *recordingRecords) MutateField(_ context.Context, ref RecordRef, field string, value interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.mutations = append(r.mutations, mutation{ref: ref, field: field, value: value})
	return nil
}

type recordingTickets struct {
	mu    sync.Mutex
	ops   []string
	reqs  []TicketRequest
	block bool
}

func (t *recordingTickets) record(op string, req TicketRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops = append(t.ops, op)
	t.reqs = append(t.reqs, req)
}

func (t *recordingTickets) CreateTicket(ctx context.Context, req TicketRequest) (string, error) {
	if t.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	t.record("create", req)
	return "TCK-1", nil
}

func (t *recordingTickets) UpdateTicket(_ context.Context, req TicketRequest) error {
	t.record("update", req)
	return nil
}

func (t *recordingTickets) CloseTicket(_ context.Context, req TicketRequest) error {
	t.record("close", req)
	return nil
}

type funcWebhooks func(ctx context.Context, req WebhookRequest) error

func (f funcWebhooks) Invoke(ctx context.Context, req WebhookRequest) error {
	return f(ctx, req)
}
