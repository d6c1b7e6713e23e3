package engine

import (
	"context"

	"ruleflow/internal/logger"
	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/models"
	"ruleflow/pkg/retry"
)

// EventHandler evaluates domain events delivered by the broker. Its errors drive the consumer's
// retry and dead letter handling: malformed events are fatal, an unreachable store or ledger and a
// duplicate still in progress are retried.
type EventHandler struct {
	engine *Engine
	log    logger.Logger
}

func NewEventHandler(engine *Engine, log logger.Logger) *EventHandler {
	return &EventHandler{engine: engine, log: log}
}

func (h *EventHandler) HandleDomainEvent(ctx context.Context, msg models.MessageEnvelope) error {
	if msg.Metadata.EventType != "" && msg.Metadata.EventType != models.EventTypeDomain {
		h.log.DebugwCtx(ctx, "Ignoring non domain event", "event_type", msg.Metadata.EventType, "message_id", msg.ID)
		return nil
	}

	req, err := models.DecodeDomainEvent(&msg)
	if err != nil {
		return retry.NewFatalError(pkgerrors.Wrap(err, pkgerrors.ErrValidation))
	}

	outcome, err := h.engine.EvaluateRulesForEvent(ctx, *req)
	if err != nil {
		return err
	}

	if outcome.Replayed {
		h.log.InfowCtx(ctx, "Duplicate delivery replayed", "message_id", msg.ID, "occurrence_id", req.OccurrenceID)
	}
	return nil
}
