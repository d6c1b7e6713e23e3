package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/models"
)

// VersionRepository keeps the history of every rule. Versions are numbered from 1 per rule.
type VersionRepository interface {
	CreateVersion(ctx context.Context, version *RuleVersion) error
	ListVersions(ctx context.Context, tenantID, ruleID string) ([]RuleVersion, error)
}

type PostgresVersionRepository struct {
	db *sql.DB
}

func NewPostgresVersionRepository(db *sql.DB) *PostgresVersionRepository {
	return &PostgresVersionRepository{db: db}
}

// CreateVersion assigns the next version number in the same statement as the insert.
func (r *PostgresVersionRepository) CreateVersion(ctx context.Context, version *RuleVersion) error {
	if version.ID == "" {
		version.ID = uuid.New().String()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(version.Rule)
	if err != nil {
		return fmt.Errorf("failed to encode rule snapshot: %w", err)
	}

	query := `
		INSERT INTO rule_versions (id, rule_id, tenant_id, version, action, rule_data, changed_by, change_reason, created_at)
		SELECT $1, $2, $3, COALESCE(MAX(version), 0) + 1, $4, $5, $6, $7, $8
		FROM rule_versions WHERE rule_id = $2
		RETURNING version
	`
	err = r.db.QueryRowContext(ctx, query,
		version.ID, version.RuleID, version.TenantID, version.Action, string(data),
		version.ChangedBy, version.ChangeReason, version.CreatedAt,
	).Scan(&version.Version)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("rule_id", version.RuleID)
		}
		return fmt.Errorf("failed to create rule version: %w", err)
	}
	return nil
}

func (r *PostgresVersionRepository) ListVersions(ctx context.Context, tenantID, ruleID string) ([]RuleVersion, error) {
	query := `
		SELECT id, rule_id, tenant_id, version, action, rule_data, changed_by, change_reason, created_at
		FROM rule_versions
		WHERE tenant_id = $1 AND rule_id = $2
		ORDER BY version DESC
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule versions: %w", err)
	}
	defer rows.Close()

	versions := []RuleVersion{}
	for rows.Next() {
		var (
			v    RuleVersion
			data []byte
		)
		if err := rows.Scan(&v.ID, &v.RuleID, &v.TenantID, &v.Version, &v.Action, &data,
			&v.ChangedBy, &v.ChangeReason, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule version: %w", err)
		}
		if err := json.Unmarshal(data, &v.Rule); err != nil {
			return nil, fmt.Errorf("failed to decode rule snapshot: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rule versions: %w", err)
	}
	return versions, nil
}

type MemoryVersionRepository struct {
	mu       sync.Mutex
	versions map[string][]RuleVersion
}

func NewMemoryVersionRepository() *MemoryVersionRepository {
	return &MemoryVersionRepository{versions: make(map[string][]RuleVersion)}
}

func (r *MemoryVersionRepository) CreateVersion(ctx context.Context, version *RuleVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if version.ID == "" {
		version.ID = uuid.New().String()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}
	version.Version = len(r.versions[version.RuleID]) + 1
	r.versions[version.RuleID] = append(r.versions[version.RuleID], *version)
	return nil
}

func (r *MemoryVersionRepository) ListVersions(ctx context.Context, tenantID, ruleID string) ([]RuleVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []RuleVersion{}
	for _, v := range r.versions[ruleID] {
		if v.TenantID == tenantID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func snapshot(rule *models.Rule) models.Rule {
	s := *rule
	s.Conditions = append([]models.Condition(nil), rule.Conditions...)
	s.Actions = append([]models.ActionSpec(nil), rule.Actions...)
	return s
}
