// Package engine decides, per tenant and event occurrence, which rules fire and runs their actions.
package engine

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"ruleflow/internal/condition"
	"ruleflow/internal/config"
	"ruleflow/internal/constants"
	"ruleflow/internal/dispatch"
	"ruleflow/internal/ledger"
	"ruleflow/internal/logger"
	"ruleflow/internal/rules"
	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/logging"
	"ruleflow/pkg/metrics"
	"ruleflow/pkg/models"
	"ruleflow/pkg/tracing"
)

// ActionDispatcher runs the actions of one matched rule. *dispatch.Dispatcher implements it.
type ActionDispatcher interface {
	Execute(ctx context.Context, rule *models.Rule, inv dispatch.Invocation) []models.ActionResult
}

// Outcome is the result of one invocation. Replayed is set when the result was recorded by an
// earlier invocation of the same occurrence and no action ran this time.
type Outcome struct {
	Result   *models.EvaluationResult `json:"result"`
	Replayed bool                     `json:"replayed"`
}

type Engine struct {
	store      rules.Store
	evaluator  *condition.Evaluator
	dispatcher ActionDispatcher
	ledger     ledger.Ledger
	cfg        config.EngineConfig
	log        logger.Logger
	now        func() time.Time
}

type Option func(*Engine)

func WithConfig(cfg config.EngineConfig) Option {
	return func(e *Engine) {
		e.cfg = withDefaults(cfg)
	}
}

func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

func New(store rules.Store, evaluator *condition.Evaluator, dispatcher ActionDispatcher, l ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		evaluator:  evaluator,
		dispatcher: dispatcher,
		ledger:     l,
		cfg:        withDefaults(config.EngineConfig{}),
		log:        logger.NopLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func withDefaults(cfg config.EngineConfig) config.EngineConfig {
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = constants.DefaultLedgerTimeout
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = constants.DefaultClaimLease
	}
	if cfg.ClaimWait < 0 {
		cfg.ClaimWait = 0
	}
	if cfg.ClaimPollInterval <= 0 {
		cfg.ClaimPollInterval = constants.DefaultClaimPollInterval
	}
	return cfg
}

// invocation tracks one request through the state machine.
type invocation struct {
	ctx   context.Context
	log   logger.Logger
	req   *models.EvaluationRequest
	state State
}

func (inv *invocation) enter(next State) {
	if !CanTransition(inv.state, next) {
		inv.log.ErrorwCtx(inv.ctx, "Invalid engine state transition", "from", inv.state, "to", next)
	}
	inv.log.DebugwCtx(inv.ctx, "Engine state transition", "from", inv.state, "to", next)
	inv.state = next
}

// EvaluateRulesForEvent runs the rules of req.TenantID listening to the request's trigger against
// req.Record. The only invocation-level failures are an invalid request, an unreachable rule
// store or ledger, a duplicate occurrence still being processed elsewhere, and cancellation
// before any rule was loaded. Everything that goes wrong per rule or per action is reported
// inside the result.
func (e *Engine) EvaluateRulesForEvent(ctx context.Context, req models.EvaluationRequest) (outcome *Outcome, err error) {
	start := e.now()
	ctx, span := tracing.GetTracer("engine").Start(ctx, "engine.evaluate")
	defer func() {
		label := "completed"
		switch {
		case err != nil:
			label = "failed"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case outcome.Replayed:
			label = "replayed"
		}
		metrics.ObserveEvaluation(label, time.Since(start))
		span.End()
	}()

	if err := models.ValidateEvaluationRequest(&req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}
	supplied := req.OccurrenceID != ""
	if !supplied {
		req.OccurrenceID, err = e.occurrenceID(&req)
		if err != nil {
			return nil, pkgerrors.ErrValidation.WithCause(err).WithDetail("field", "record")
		}
	}

	ctx = logging.WithTenantID(ctx, req.TenantID)
	ctx = logging.WithOccurrenceID(ctx, req.OccurrenceID)
	span.SetAttributes(
		attribute.String("tenant.id", req.TenantID),
		attribute.String("occurrence.id", req.OccurrenceID),
		attribute.String("rule.module", req.Module),
		attribute.String("rule.event", req.Event),
		attribute.String("rule.entity", req.Entity),
	)

	inv := &invocation{ctx: ctx, log: e.log, req: &req, state: StateReceived}
	inv.enter(StateLoading)

	// Random ids are new by construction; supplied and derived ones may repeat.
	if supplied || e.cfg.DeriveOccurrenceID {
		replay, err := e.lookupCompleted(ctx, &req)
		if err != nil {
			return nil, e.fail(inv, err)
		}
		if replay != nil {
			inv.enter(StateCompleted)
			return replay, nil
		}
	}

	matching, err := e.store.ListRules(ctx, req.TenantID, req.Trigger())
	if err != nil {
		if !pkgerrors.IsStoreUnavailable(err) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, e.fail(inv, ctxErr)
			}
			err = pkgerrors.ErrStoreUnavailable.WithCause(err)
		}
		return nil, e.fail(inv, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, e.fail(inv, err)
	}

	entry, replay, err := e.claim(ctx, &req)
	if err != nil {
		return nil, e.fail(inv, err)
	}
	if replay != nil {
		inv.enter(StateCompleted)
		return replay, nil
	}

	result := e.run(inv, matching)

	inv.enter(StateRecording)
	e.record(ctx, entry, result)

	inv.enter(StateCompleted)
	e.log.InfowCtx(ctx, "Rules evaluated",
		"module", req.Module, "event", req.Event, "entity", req.Entity,
		"rules_loaded", len(matching), "rules_matched", len(result.MatchedRuleIDs),
		"summary", result.Summary(),
	)
	return &Outcome{Result: result}, nil
}

func (e *Engine) occurrenceID(req *models.EvaluationRequest) (string, error) {
	if e.cfg.DeriveOccurrenceID {
		return DeriveOccurrenceID(req)
	}
	return newOccurrenceID(), nil
}

func (e *Engine) fail(inv *invocation, err error) error {
	inv.enter(StateFailed)
	if pkgerrors.IsStoreUnavailable(err) {
		e.log.ErrorwCtx(inv.ctx, "Rule store unavailable, no rules were run", "error", err)
	} else {
		e.log.WarnwCtx(inv.ctx, "Evaluation failed", "error", err)
	}
	return err
}

// run evaluates every loaded rule in order and dispatches the actions of those that match.
func (e *Engine) run(inv *invocation, matching []models.Rule) *models.EvaluationResult {
	req := inv.req
	result := models.NewEvaluationResult(req.OccurrenceID, e.now())
	call := dispatch.Invocation{
		TenantID:     req.TenantID,
		Module:       req.Module,
		Event:        req.Event,
		Entity:       req.Entity,
		OccurrenceID: req.OccurrenceID,
		Record:       req.Record,
	}

	for i := range matching {
		rule := &matching[i]
		inv.enter(StateEvaluating)

		// The store already filters; a disabled rule reaching this point is never run.
		if !rule.Enabled || !e.evaluator.Matches(rule, req.Record) {
			continue
		}
		result.MatchedRuleIDs = append(result.MatchedRuleIDs, rule.ID)

		inv.enter(StateDispatching)
		actions := e.dispatcher.Execute(inv.ctx, rule, call)
		result.ActionResults = append(result.ActionResults, actions...)
	}

	metrics.AddRulesMatched(len(result.MatchedRuleIDs))
	return result
}

func (e *Engine) ledgerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.cfg.LedgerTimeout)
}

// lookupCompleted returns the recorded outcome when the occurrence already completed.
func (e *Engine) lookupCompleted(ctx context.Context, req *models.EvaluationRequest) (*Outcome, error) {
	lctx, cancel := e.ledgerContext(ctx)
	defer cancel()

	entry, err := e.ledger.Lookup(lctx, req.TenantID, req.OccurrenceID)
	switch {
	case pkgerrors.IsNotFound(err):
		return nil, nil
	case err != nil:
		return nil, ledgerError(err)
	case entry.Completed():
		return e.replay(ctx, entry), nil
	default:
		return nil, nil
	}
}

// claim takes ownership of the occurrence. A duplicate that is still pending elsewhere is waited
// for up to ClaimWait and replayed if it completes in time.
func (e *Engine) claim(ctx context.Context, req *models.EvaluationRequest) (*models.AuditEntry, *Outcome, error) {
	entry := &models.AuditEntry{
		TenantID:     req.TenantID,
		OccurrenceID: req.OccurrenceID,
		Module:       req.Module,
		Event:        req.Event,
		Entity:       req.Entity,
	}

	lctx, cancel := e.ledgerContext(ctx)
	claim, err := e.ledger.Claim(lctx, entry, e.cfg.ClaimLease)
	cancel()
	if err != nil {
		return nil, nil, ledgerError(err)
	}

	switch claim.Outcome {
	case ledger.ClaimAcquired:
		return claim.Entry, nil, nil
	case ledger.ClaimCompleted:
		metrics.IncLedgerClaimConflict("replayed")
		return nil, e.replay(ctx, claim.Entry), nil
	}

	e.log.InfowCtx(ctx, "Occurrence is being processed by another invocation, waiting")
	deadline := time.NewTimer(e.cfg.ClaimWait)
	defer deadline.Stop()
	ticker := time.NewTicker(e.cfg.ClaimPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			metrics.IncLedgerClaimConflict("cancelled")
			return nil, nil, ctx.Err()
		case <-deadline.C:
			metrics.IncLedgerClaimConflict("in_progress")
			return nil, nil, pkgerrors.ErrOccurrenceInProgress.WithDetail("occurrence_id", req.OccurrenceID)
		case <-ticker.C:
			replay, err := e.lookupCompleted(ctx, req)
			if err != nil {
				return nil, nil, err
			}
			if replay != nil {
				metrics.IncLedgerClaimConflict("waited")
				return nil, replay, nil
			}
		}
	}
}

func (e *Engine) replay(ctx context.Context, entry *models.AuditEntry) *Outcome {
	metrics.IncReplay()
	e.log.InfowCtx(ctx, "Replaying recorded result", "completed_at", entry.CompletedAt)

	result := entry.Result
	if result == nil {
		result = models.NewEvaluationResult(entry.OccurrenceID, entry.CreatedAt)
	}
	return &Outcome{Result: result, Replayed: true}
}

// record completes the claim, detached from caller cancellation.
func (e *Engine) record(ctx context.Context, entry *models.AuditEntry, result *models.EvaluationResult) {
	entry.Result = result
	entry.ResultSummary = result.Summary()

	lctx, cancel := e.ledgerContext(ctx)
	defer cancel()

	if err := e.ledger.Complete(lctx, entry); err != nil {
		if pkgerrors.IsConflict(err) {
			e.log.WarnwCtx(ctx, "Claim was taken over before the result was recorded", "error", err)
			return
		}
		e.log.ErrorwCtx(ctx, "Failed to record audit entry", "error", err)
	}
}

func ledgerError(err error) error {
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return pkgerrors.ErrLedgerUnavailable.WithCause(err)
}
