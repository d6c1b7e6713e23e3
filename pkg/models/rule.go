package models

import "time"

type ConditionLogic string

const (
	ConditionLogicAll ConditionLogic = "all"
	ConditionLogicAny ConditionLogic = "any"
)

func (l ConditionLogic) Valid() bool {
	return l == ConditionLogicAll || l == ConditionLogicAny
}

// Condition is a single predicate over a record field.
type Condition struct {
	Field    string      `json:"field" yaml:"field"`
	Operator string      `json:"operator" yaml:"operator"`
	Value    interface{} `json:"value,omitempty" yaml:"value,omitempty"`
}

// ActionSpec is the stored, untyped form of an action. The dispatcher decodes it into a typed
// action before execution.
type ActionSpec struct {
	Type   string                 `json:"type" yaml:"type"`
	Params map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
}

type Rule struct {
	ID             string         `json:"id" yaml:"id"`
	TenantID       string         `json:"tenant_id" yaml:"tenant_id"`
	Name           string         `json:"name" yaml:"name"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
	Module         string         `json:"module" yaml:"module"`
	Event          string         `json:"event" yaml:"event"`
	Entity         string         `json:"entity" yaml:"entity"`
	Conditions     []Condition    `json:"conditions" yaml:"conditions"`
	ConditionLogic ConditionLogic `json:"condition_logic" yaml:"condition_logic"`
	Actions        []ActionSpec   `json:"actions" yaml:"actions"`
	Enabled        bool           `json:"enabled" yaml:"enabled"`
	Priority       int            `json:"priority" yaml:"priority"`
	CreatedAt      time.Time      `json:"created_at" yaml:"-"`
	UpdatedAt      time.Time      `json:"updated_at" yaml:"-"`
	CreatedBy      string         `json:"created_by,omitempty" yaml:"-"`
	UpdatedBy      string         `json:"updated_by,omitempty" yaml:"-"`
}

// Trigger identifies the (module, event, entity) combination a rule listens to.
type Trigger struct {
	Module string `json:"module"`
	Event  string `json:"event"`
	Entity string `json:"entity"`
}

func (r *Rule) Trigger() Trigger {
	return Trigger{Module: r.Module, Event: r.Event, Entity: r.Entity}
}

// Matches reports whether the rule listens to t.
func (r *Rule) Matches(t Trigger) bool {
	return r.Module == t.Module && r.Event == t.Event && r.Entity == t.Entity
}
