package rules

import (
	"context"
	"errors"

	"ruleflow/internal/logger"
	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/metrics"
	"ruleflow/pkg/models"
)

// Service is the tenant-scoped administration API over the rule repository.
type Service interface {
	CreateRule(ctx context.Context, tenantID string, req CreateRuleRequest) (*models.Rule, error)
	ListRules(ctx context.Context, tenantID string) ([]models.Rule, error)
	GetRule(ctx context.Context, tenantID, id string) (*models.Rule, error)
	UpdateRule(ctx context.Context, tenantID, id string, req UpdateRuleRequest) (*models.Rule, error)
	DeleteRule(ctx context.Context, tenantID, id string) error
	GetRuleVersions(ctx context.Context, tenantID, id string) ([]RuleVersion, error)
}

// CacheInvalidator drops cached rule lists of a tenant. *CachedStore implements it.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, tenantID, source string) error
}

type service struct {
	repo        Repository
	validator   *Validator
	versions    VersionRepository
	changes     *ChangeEventProducer
	invalidator CacheInvalidator
	log         logger.Logger
}

type ServiceOption func(*service)

func WithVersioning(versions VersionRepository) ServiceOption {
	return func(s *service) {
		s.versions = versions
	}
}

func WithChangeEvents(producer *ChangeEventProducer) ServiceOption {
	return func(s *service) {
		s.changes = producer
	}
}

func WithCacheInvalidator(invalidator CacheInvalidator) ServiceOption {
	return func(s *service) {
		s.invalidator = invalidator
	}
}

func WithLogger(log logger.Logger) ServiceOption {
	return func(s *service) {
		if log != nil {
			s.log = log
		}
	}
}

func NewService(repo Repository, validator *Validator, opts ...ServiceOption) Service {
	s := &service{
		repo:      repo,
		validator: validator,
		log:       logger.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) CreateRule(ctx context.Context, tenantID string, req CreateRuleRequest) (*models.Rule, error) {
	actor := actorFrom(ctx)
	rule := &models.Rule{
		TenantID:       tenantID,
		Name:           req.Name,
		Description:    req.Description,
		Module:         req.Module,
		Event:          req.Event,
		Entity:         req.Entity,
		Conditions:     req.Conditions,
		ConditionLogic: req.ConditionLogic,
		Actions:        req.Actions,
		Enabled:        req.Enabled == nil || *req.Enabled,
		Priority:       req.Priority,
		CreatedBy:      actor,
		UpdatedBy:      actor,
	}
	if err := s.validator.ValidateRule(rule); err != nil {
		return nil, asAPIError(err)
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, repositoryError(err)
	}

	s.afterMutation(ctx, rule, models.ActionCreate, "")
	return rule, nil
}

func (s *service) ListRules(ctx context.Context, tenantID string) ([]models.Rule, error) {
	rules, err := s.repo.ListTenantRules(ctx, tenantID)
	if err != nil {
		return nil, repositoryError(err)
	}
	return rules, nil
}

func (s *service) GetRule(ctx context.Context, tenantID, id string) (*models.Rule, error) {
	rule, err := s.repo.GetRule(ctx, tenantID, id)
	if err != nil {
		return nil, repositoryError(err)
	}
	return rule, nil
}

func (s *service) UpdateRule(ctx context.Context, tenantID, id string, req UpdateRuleRequest) (*models.Rule, error) {
	rule, err := s.repo.GetRule(ctx, tenantID, id)
	if err != nil {
		return nil, repositoryError(err)
	}

	wasEnabled := rule.Enabled
	applyUpdate(rule, req)
	rule.UpdatedBy = actorFrom(ctx)

	if err := s.validator.ValidateRule(rule); err != nil {
		return nil, asAPIError(err)
	}
	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return nil, repositoryError(err)
	}

	action := models.ActionUpdate
	if onlyToggled(req) && wasEnabled != rule.Enabled {
		action = models.ActionToggle
	}
	s.afterMutation(ctx, rule, action, req.ChangeReason)
	return rule, nil
}

func (s *service) DeleteRule(ctx context.Context, tenantID, id string) error {
	rule, err := s.repo.GetRule(ctx, tenantID, id)
	if err != nil {
		return repositoryError(err)
	}
	if err := s.repo.DeleteRule(ctx, tenantID, id); err != nil {
		return repositoryError(err)
	}

	s.afterMutation(ctx, rule, models.ActionDelete, "")
	return nil
}

func (s *service) GetRuleVersions(ctx context.Context, tenantID, id string) ([]RuleVersion, error) {
	if s.versions == nil {
		return nil, pkgerrors.ErrInternal.WithDetail("message", "versioning not enabled")
	}
	if _, err := s.repo.GetRule(ctx, tenantID, id); err != nil && !pkgerrors.IsNotFound(err) {
		return nil, repositoryError(err)
	}

	versions, err := s.versions.ListVersions(ctx, tenantID, id)
	if err != nil {
		return nil, repositoryError(err)
	}
	if len(versions) == 0 {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return versions, nil
}

// afterMutation records the version, drops the tenant's cached rules and announces the change.
// The mutation itself already succeeded, so failures here are logged and not returned.
func (s *service) afterMutation(ctx context.Context, rule *models.Rule, action, reason string) {
	metrics.IncRuleMutation(action)
	actor := actorFrom(ctx)

	if s.versions != nil {
		version := &RuleVersion{
			RuleID:       rule.ID,
			TenantID:     rule.TenantID,
			Action:       action,
			Rule:         snapshot(rule),
			ChangedBy:    actor,
			ChangeReason: reason,
		}
		if err := s.versions.CreateVersion(ctx, version); err != nil {
			s.log.WarnwCtx(ctx, "Failed to record rule version", "rule_id", rule.ID, "error", err)
		}
	}

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, rule.TenantID, "api"); err != nil {
			s.log.WarnwCtx(ctx, "Failed to invalidate rule cache", "tenant_id", rule.TenantID, "error", err)
		}
	}

	if err := s.changes.PublishRuleChange(ctx, action, rule.TenantID, rule.ID, actor); err != nil {
		s.log.WarnwCtx(ctx, "Failed to publish rule change event", "rule_id", rule.ID, "error", err)
	}
}

func applyUpdate(rule *models.Rule, req UpdateRuleRequest) {
	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Description != nil {
		rule.Description = *req.Description
	}
	if req.Module != nil {
		rule.Module = *req.Module
	}
	if req.Event != nil {
		rule.Event = *req.Event
	}
	if req.Entity != nil {
		rule.Entity = *req.Entity
	}
	if req.Conditions != nil {
		rule.Conditions = *req.Conditions
	}
	if req.ConditionLogic != nil {
		rule.ConditionLogic = *req.ConditionLogic
	}
	if req.Actions != nil {
		rule.Actions = *req.Actions
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
}

func onlyToggled(req UpdateRuleRequest) bool {
	return req.Enabled != nil && req.Name == nil && req.Description == nil && req.Module == nil &&
		req.Event == nil && req.Entity == nil && req.Conditions == nil && req.ConditionLogic == nil &&
		req.Actions == nil && req.Priority == nil
}

func repositoryError(err error) error {
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
}

type actorKey struct{}

// WithActor records who is changing rules, for versions and change events.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok {
		return actor
	}
	return "system"
}
