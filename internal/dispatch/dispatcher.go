package dispatch

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"ruleflow/internal/constants"
	"ruleflow/internal/logger"
	"ruleflow/pkg/circuitbreaker"
	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/metrics"
	"ruleflow/pkg/models"
	"ruleflow/pkg/tracing"
)

// Dispatcher executes the actions of a matched rule in declaration order. It keeps no state
// between actions other than the result list of the current call.
type Dispatcher struct {
	collab        Collaborators
	actionTimeout time.Duration
	logger        logger.Logger
	now           func() time.Time
}

type Option func(*Dispatcher)

func WithActionTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.actionTimeout = timeout
		}
	}
}

func WithLogger(log logger.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.logger = log
		}
	}
}

func NewDispatcher(collab Collaborators, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		collab:        collab,
		actionTimeout: constants.DefaultActionTimeout,
		logger:        logger.NopLogger(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute runs every action of rule and returns one result per action. Once ctx is done no
// further action is started and the remaining ones are reported as skipped. An action already
// running when ctx is cancelled is left to finish under its own timeout.
func (d *Dispatcher) Execute(ctx context.Context, rule *models.Rule, inv Invocation) []models.ActionResult {
	results := make([]models.ActionResult, 0, len(rule.Actions))
	scope := NewScope(inv)

	for _, spec := range rule.Actions {
		result := models.ActionResult{RuleID: rule.ID, ActionType: spec.Type}

		if ctx.Err() != nil {
			result.Status = models.ActionStatusSkipped
			result.Error = models.ActionErrCancelled
			results = append(results, result)
			continue
		}

		action, err := Decode(spec)
		if err == nil {
			action, err = action.render(scope)
		}
		switch {
		case errors.Is(err, ErrUnsupportedActionType):
			d.logger.WarnwCtx(ctx, "Unsupported action skipped", "rule_id", rule.ID, "action_type", spec.Type, "error", err)
			result.Status = models.ActionStatusSkipped
			result.Error = models.ActionErrUnsupportedType
		case err != nil:
			d.logger.WarnwCtx(ctx, "Invalid action parameters", "rule_id", rule.ID, "action_type", spec.Type, "error", err)
			result.Status = models.ActionStatusFailed
			result.Error = models.ActionErrInvalidParams
		default:
			result.Status, result.Error = d.run(ctx, rule, inv, action)
		}

		metrics.IncAction(spec.Type, string(result.Status), result.Error)
		results = append(results, result)
	}

	return results
}

func (d *Dispatcher) run(ctx context.Context, rule *models.Rule, inv Invocation, action Action) (models.ActionStatus, string) {
	handler := d.handlerFor(rule, inv, action)
	if handler == nil {
		return models.ActionStatusSkipped, models.ActionErrUnsupportedType
	}

	// Detached from the caller so that cancellation cannot interrupt a started side effect.
	actionCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.actionTimeout)
	defer cancel()

	actionCtx, span := tracing.GetTracer("dispatch").Start(actionCtx, "dispatch.action")
	span.SetAttributes(
		attribute.String("rule.id", rule.ID),
		attribute.String("action.type", string(action.Type())),
	)
	defer span.End()

	start := d.now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- pkgerrors.RecoverPanic(r)
			}
		}()
		done <- handler(actionCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-actionCtx.Done():
		err = actionCtx.Err()
	}
	metrics.ObserveActionDuration(string(action.Type()), d.now().Sub(start))

	if err == nil {
		return models.ActionStatusSucceeded, ""
	}

	code := classify(err)
	failure := pkgerrors.ErrActionFailed.WithCause(err).WithDetails(map[string]interface{}{
		"rule_id":     rule.ID,
		"action_type": string(action.Type()),
		"error_code":  code,
	})
	span.RecordError(failure)
	span.SetStatus(codes.Error, code)
	d.logger.WarnwCtx(ctx, "Action failed",
		"rule_id", rule.ID,
		"action_type", action.Type(),
		"error_code", code,
		"error", failure,
	)
	return models.ActionStatusFailed, code
}

// handlerFor binds a rendered action to its collaborator. It returns nil when the collaborator is
// not configured.
func (d *Dispatcher) handlerFor(rule *models.Rule, inv Invocation, action Action) func(context.Context) error {
	switch a := action.(type) {
	case NotifyAction:
		if d.collab.Notifier == nil {
			return nil
		}
		return func(ctx context.Context) error {
			return d.collab.Notifier.Send(ctx, models.Notification{
				TenantID:     inv.TenantID,
				RuleID:       rule.ID,
				OccurrenceID: inv.OccurrenceID,
				Channel:      a.Channel,
				Recipient:    a.Recipient,
				Template:     a.Template,
				Subject:      a.Subject,
				Body:         a.Body,
				RequestedAt:  d.now().UTC(),
			})
		}

	case MutateFieldAction:
		if d.collab.Records == nil {
			return nil
		}
		return func(ctx context.Context) error {
			ref := RecordRef{TenantID: inv.TenantID, Entity: inv.Entity, ID: a.EntityID}
			return d.collab.Records.MutateField(ctx, ref, a.Field, a.Value)
		}

	case CreateTicketAction:
		if d.collab.Tickets == nil {
			return nil
		}
		return func(ctx context.Context) error {
			req := TicketRequest{
				TenantID:     inv.TenantID,
				RuleID:       rule.ID,
				OccurrenceID: inv.OccurrenceID,
				System:       a.System,
				TicketID:     a.TicketID,
				Title:        a.Title,
				Description:  a.Description,
				Priority:     a.Priority,
				Fields:       a.Fields,
			}
			switch a.Operation {
			case TicketUpdate:
				return d.collab.Tickets.UpdateTicket(ctx, req)
			case TicketClose:
				return d.collab.Tickets.CloseTicket(ctx, req)
			default:
				_, err := d.collab.Tickets.CreateTicket(ctx, req)
				return err
			}
		}

	case InvokeWebhookAction:
		if d.collab.Webhooks == nil {
			return nil
		}
		return func(ctx context.Context) error {
			return d.collab.Webhooks.Invoke(ctx, WebhookRequest{
				TenantID:     inv.TenantID,
				RuleID:       rule.ID,
				OccurrenceID: inv.OccurrenceID,
				URL:          a.URL,
				Method:       a.Method,
				Headers:      a.Headers,
				Payload:      a.Payload,
			})
		}

	default:
		return nil
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.ActionErrTimeout
	case circuitbreaker.IsOpenError(err):
		return models.ActionErrCircuitOpen
	default:
		return models.ActionErrFailed
	}
}
