// Package changefeed drops cached rule lists when the rules service announces a change.
package changefeed

import (
	"context"
	"fmt"

	"ruleflow/internal/logger"
	"ruleflow/internal/rules"
	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/models"
	"ruleflow/pkg/retry"
)

type Handler struct {
	invalidator rules.CacheInvalidator
	log         logger.Logger
}

func NewHandler(invalidator rules.CacheInvalidator, log logger.Logger) *Handler {
	return &Handler{invalidator: invalidator, log: log}
}

// HandleRuleChangeEvent invalidates the tenant named by a rule_changed envelope. A failed
// invalidation is returned so the consumer retries it; the cache TTL bounds staleness if retries
// run out.
func (h *Handler) HandleRuleChangeEvent(ctx context.Context, msg models.MessageEnvelope) error {
	if msg.Metadata.EventType != models.EventTypeRuleChanged {
		h.log.DebugwCtx(ctx, "Ignoring event", "event_type", msg.Metadata.EventType, "message_id", msg.ID)
		return nil
	}

	tenantID := msg.TenantID
	if v, ok := msg.GetPayloadField("tenant_id"); ok {
		if s, ok := v.(string); ok && s != "" {
			tenantID = s
		}
	}
	if tenantID == "" {
		return retry.NewFatalError(pkgerrors.ErrValidation.WithDetail("field", "tenant_id").
			WithCause(fmt.Errorf("rule change event %s has no tenant", msg.ID)))
	}

	if err := h.invalidator.Invalidate(ctx, tenantID, "change_event"); err != nil {
		return fmt.Errorf("failed to invalidate rules of tenant %s: %w", tenantID, err)
	}

	action, _ := msg.GetPayloadField("action")
	ruleID, _ := msg.GetPayloadField("rule_id")
	h.log.InfowCtx(ctx, "Rule cache invalidated", "tenant_id", tenantID, "action", action, "rule_id", ruleID)
	return nil
}
