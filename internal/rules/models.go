package rules

import (
	"time"

	"ruleflow/pkg/models"
)

type CreateRuleRequest struct {
	Name           string                `json:"name" binding:"required"`
	Description    string                `json:"description"`
	Module         string                `json:"module" binding:"required"`
	Event          string                `json:"event" binding:"required"`
	Entity         string                `json:"entity" binding:"required"`
	Conditions     []models.Condition    `json:"conditions"`
	ConditionLogic models.ConditionLogic `json:"condition_logic" binding:"required"`
	Actions        []models.ActionSpec   `json:"actions"`
	Enabled        *bool                 `json:"enabled"`
	Priority       int                   `json:"priority"`
}

type UpdateRuleRequest struct {
	Name           *string                `json:"name"`
	Description    *string                `json:"description"`
	Module         *string                `json:"module"`
	Event          *string                `json:"event"`
	Entity         *string                `json:"entity"`
	Conditions     *[]models.Condition    `json:"conditions"`
	ConditionLogic *models.ConditionLogic `json:"condition_logic"`
	Actions        *[]models.ActionSpec   `json:"actions"`
	Enabled        *bool                  `json:"enabled"`
	Priority       *int                   `json:"priority"`
	ChangeReason   string                 `json:"change_reason"`
}

// RuleVersion is a snapshot of a rule taken after each mutation.
type RuleVersion struct {
	ID           string      `json:"id"`
	RuleID       string      `json:"rule_id"`
	TenantID     string      `json:"tenant_id"`
	Version      int         `json:"version"`
	Action       string      `json:"action"`
	Rule         models.Rule `json:"rule"`
	ChangedBy    string      `json:"changed_by,omitempty"`
	ChangeReason string      `json:"change_reason,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// SeedFile is the YAML document accepted by the seed command and the memory repository.
type SeedFile struct {
	Rules []models.Rule `yaml:"rules"`
}
