package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/metrics"
	"ruleflow/pkg/models"
)

// Store is the read contract of the engine: the enabled rules of one tenant listening to one
// trigger, ordered by ascending priority. Rules of equal priority keep their creation order.
type Store interface {
	ListRules(ctx context.Context, tenantID string, trigger models.Trigger) ([]models.Rule, error)
}

// Repository adds tenant-scoped administration to Store.
type Repository interface {
	Store
	CreateRule(ctx context.Context, rule *models.Rule) error
	GetRule(ctx context.Context, tenantID, id string) (*models.Rule, error)
	ListTenantRules(ctx context.Context, tenantID string) ([]models.Rule, error)
	UpdateRule(ctx context.Context, rule *models.Rule) error
	DeleteRule(ctx context.Context, tenantID, id string) error
}

type PostgresRepository struct {
	db          *sql.DB
	serviceName string
}

func NewPostgresRepository(db *sql.DB, serviceName string) *PostgresRepository {
	return &PostgresRepository{db: db, serviceName: serviceName}
}

const ruleColumns = `id, tenant_id, name, description, module, event, entity, conditions,
	condition_logic, actions, enabled, priority, created_by, updated_by, created_at, updated_at`

func (r *PostgresRepository) observe(operation string, start time.Time, err *error) {
	status := "success"
	if *err != nil && !pkgerrors.IsNotFound(*err) {
		status = "error"
	}
	metrics.IncDatabaseQuery(r.serviceName, "postgres", operation, status)
	metrics.ObserveDatabaseQueryDuration(r.serviceName, "postgres", operation, time.Since(start))
}

func (r *PostgresRepository) ListRules(ctx context.Context, tenantID string, trigger models.Trigger) (rules []models.Rule, err error) {
	defer r.observe("list_rules", time.Now(), &err)

	query := `
		SELECT ` + ruleColumns + `
		FROM automation_rules
		WHERE tenant_id = $1 AND module = $2 AND event = $3 AND entity = $4 AND enabled
		ORDER BY priority ASC, created_at ASC, id ASC
	`
	return r.query(ctx, query, tenantID, trigger.Module, trigger.Event, trigger.Entity)
}

func (r *PostgresRepository) ListTenantRules(ctx context.Context, tenantID string) (rules []models.Rule, err error) {
	defer r.observe("list_tenant_rules", time.Now(), &err)

	query := `
		SELECT ` + ruleColumns + `
		FROM automation_rules
		WHERE tenant_id = $1
		ORDER BY module, event, entity, priority ASC, created_at ASC
	`
	return r.query(ctx, query, tenantID)
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.Rule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	rules := []models.Rule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}
	return rules, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row scanner) (*models.Rule, error) {
	var (
		rule       models.Rule
		conditions []byte
		actions    []byte
		logic      string
	)
	err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
		&rule.Module, &rule.Event, &rule.Entity, &conditions,
		&logic, &actions, &rule.Enabled, &rule.Priority,
		&rule.CreatedBy, &rule.UpdatedBy, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rule.ConditionLogic = models.ConditionLogic(logic)
	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to decode conditions of rule %s: %w", rule.ID, err)
	}
	if err := json.Unmarshal(actions, &rule.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions of rule %s: %w", rule.ID, err)
	}
	return &rule, nil
}

// encodeRule returns JSON text; lib/pq would send []byte as bytea, which jsonb rejects.
func encodeRule(rule *models.Rule) (conditions, actions string, err error) {
	conds := rule.Conditions
	if conds == nil {
		conds = []models.Condition{}
	}
	acts := rule.Actions
	if acts == nil {
		acts = []models.ActionSpec{}
	}
	c, err := json.Marshal(conds)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode conditions: %w", err)
	}
	a, err := json.Marshal(acts)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode actions: %w", err)
	}
	return string(c), string(a), nil
}

func (r *PostgresRepository) CreateRule(ctx context.Context, rule *models.Rule) (err error) {
	defer r.observe("create_rule", time.Now(), &err)

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	conditions, actions, err := encodeRule(rule)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO automation_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = r.db.ExecContext(ctx, query,
		rule.ID, rule.TenantID, rule.Name, rule.Description,
		rule.Module, rule.Event, rule.Entity, conditions,
		string(rule.ConditionLogic), actions, rule.Enabled, rule.Priority,
		rule.CreatedBy, rule.UpdatedBy, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return translateWriteError(err, rule)
	}
	return nil
}

func (r *PostgresRepository) GetRule(ctx context.Context, tenantID, id string) (rule *models.Rule, err error) {
	defer r.observe("get_rule", time.Now(), &err)

	query := `SELECT ` + ruleColumns + ` FROM automation_rules WHERE tenant_id = $1 AND id = $2`
	rule, err = scanRule(r.db.QueryRowContext(ctx, query, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

func (r *PostgresRepository) UpdateRule(ctx context.Context, rule *models.Rule) (err error) {
	defer r.observe("update_rule", time.Now(), &err)

	rule.UpdatedAt = time.Now().UTC()
	conditions, actions, err := encodeRule(rule)
	if err != nil {
		return err
	}

	query := `
		UPDATE automation_rules
		SET name = $3, description = $4, module = $5, event = $6, entity = $7, conditions = $8,
			condition_logic = $9, actions = $10, enabled = $11, priority = $12, updated_by = $13,
			updated_at = $14
		WHERE tenant_id = $1 AND id = $2
	`
	res, err := r.db.ExecContext(ctx, query,
		rule.TenantID, rule.ID, rule.Name, rule.Description,
		rule.Module, rule.Event, rule.Entity, conditions,
		string(rule.ConditionLogic), actions, rule.Enabled, rule.Priority,
		rule.UpdatedBy, rule.UpdatedAt,
	)
	if err != nil {
		return translateWriteError(err, rule)
	}
	return requireAffected(res, rule.ID)
}

func (r *PostgresRepository) DeleteRule(ctx context.Context, tenantID, id string) (err error) {
	defer r.observe("delete_rule", time.Now(), &err)

	res, err := r.db.ExecContext(ctx, `DELETE FROM automation_rules WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return requireAffected(res, id)
}

func requireAffected(res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return nil
}

const uniqueViolation = "23505"

func translateWriteError(err error, rule *models.Rule) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("rule with name '%s' already exists", rule.Name))
	}
	return fmt.Errorf("failed to write rule: %w", err)
}
