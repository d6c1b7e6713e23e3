package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/qustavo/dotsql"

	"ruleflow/internal/constants"
	pkgerrors "ruleflow/pkg/errors"
	"ruleflow/pkg/metrics"
	"ruleflow/pkg/models"
)

//go:embed queries/ledger.sql
var ledgerQueries string

// SQLLedger stores entries in the automation_audit_entries table of PostgreSQL or SQLite.
type SQLLedger struct {
	db          *sqlx.DB
	driver      string
	serviceName string
	queries     map[string]string
	now         func() time.Time
}

type entryRow struct {
	models.AuditEntry
	ResultJSON sql.NullString `db:"result"`
}

// NewSQLLedger wraps an open database. driver is the database/sql driver name, "postgres" or
// "sqlite3", and selects the placeholder style.
func NewSQLLedger(db *sql.DB, driver, serviceName string) (*SQLLedger, error) {
	dot, err := dotsql.LoadFromString(ledgerQueries)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger queries: %w", err)
	}

	x := sqlx.NewDb(db, driver)
	queries := make(map[string]string)
	for _, name := range []string{"claim-entry", "take-over-claim", "complete-entry", "get-entry", "list-entries"} {
		raw, err := dot.Raw(name)
		if err != nil {
			return nil, fmt.Errorf("failed to load ledger query %s: %w", name, err)
		}
		queries[name] = x.Rebind(raw)
	}

	return &SQLLedger{
		db:          x,
		driver:      driver,
		serviceName: serviceName,
		queries:     queries,
		now:         time.Now,
	}, nil
}

func (l *SQLLedger) observe(operation string, start time.Time, err *error) {
	status := "success"
	if *err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery(l.serviceName, l.driver, operation, status)
	metrics.ObserveDatabaseQueryDuration(l.serviceName, l.driver, operation, time.Since(start))
}

func unavailable(err error) error {
	return pkgerrors.ErrLedgerUnavailable.WithCause(err)
}

func (l *SQLLedger) Claim(ctx context.Context, entry *models.AuditEntry, lease time.Duration) (claim *Claim, err error) {
	defer l.observe("ledger_claim", time.Now(), &err)

	now := l.now().UTC()
	entry.ID = uuid.New().String()
	entry.Status = models.AuditStatusPending
	entry.ClaimedAt = now
	entry.CreatedAt = now

	res, err := l.db.NamedExecContext(ctx, l.queries["claim-entry"], entry)
	if err != nil {
		return nil, unavailable(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, unavailable(err)
	} else if n == 1 {
		return &Claim{Outcome: ClaimAcquired, Entry: entry}, nil
	}

	existing, err := l.get(ctx, entry.TenantID, entry.OccurrenceID)
	if err != nil {
		return nil, err
	}
	if existing.Completed() {
		return &Claim{Outcome: ClaimCompleted, Entry: existing}, nil
	}

	res, err = l.db.ExecContext(ctx, l.queries["take-over-claim"],
		entry.ID, now, entry.TenantID, entry.OccurrenceID, now.Add(-lease))
	if err != nil {
		return nil, unavailable(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, unavailable(err)
	} else if n == 1 {
		entry.CreatedAt = existing.CreatedAt
		return &Claim{Outcome: ClaimAcquired, Entry: entry}, nil
	}
	return &Claim{Outcome: ClaimPending, Entry: existing}, nil
}

// Complete records the result on the caller's claim. It fails with ErrConflict when the claim was
// taken over in the meantime.
func (l *SQLLedger) Complete(ctx context.Context, entry *models.AuditEntry) (err error) {
	defer l.observe("ledger_complete", time.Now(), &err)

	var result interface{}
	if entry.Result != nil {
		data, err := json.Marshal(entry.Result)
		if err != nil {
			return fmt.Errorf("failed to encode evaluation result: %w", err)
		}
		result = string(data)
	}

	completedAt := l.now().UTC()
	res, err := l.db.ExecContext(ctx, l.queries["complete-entry"],
		entry.ResultSummary, result, completedAt,
		entry.TenantID, entry.OccurrenceID, entry.ID)
	if err != nil {
		return unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return pkgerrors.ErrConflict.
			WithDetail("message", "claim on occurrence was lost").
			WithDetail("occurrence_id", entry.OccurrenceID)
	}

	entry.Status = models.AuditStatusCompleted
	entry.CompletedAt = &completedAt
	return nil
}

func (l *SQLLedger) Lookup(ctx context.Context, tenantID, occurrenceID string) (entry *models.AuditEntry, err error) {
	defer l.observe("ledger_lookup", time.Now(), &err)
	return l.get(ctx, tenantID, occurrenceID)
}

func (l *SQLLedger) get(ctx context.Context, tenantID, occurrenceID string) (*models.AuditEntry, error) {
	var row entryRow
	err := l.db.GetContext(ctx, &row, l.queries["get-entry"], tenantID, occurrenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("occurrence_id", occurrenceID)
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return row.decode()
}

func (l *SQLLedger) List(ctx context.Context, tenantID string, opts ListOptions) (entries []models.AuditEntry, err error) {
	defer l.observe("ledger_list", time.Now(), &err)

	limit, offset := normalize(opts)
	var rows []entryRow
	if err := l.db.SelectContext(ctx, &rows, l.queries["list-entries"], tenantID, limit, offset); err != nil {
		return nil, unavailable(err)
	}

	entries = make([]models.AuditEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].decode()
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (r *entryRow) decode() (*models.AuditEntry, error) {
	entry := r.AuditEntry
	entry.ClaimedAt = entry.ClaimedAt.UTC()
	entry.CreatedAt = entry.CreatedAt.UTC()
	if entry.CompletedAt != nil {
		completed := entry.CompletedAt.UTC()
		entry.CompletedAt = &completed
	}
	if r.ResultJSON.Valid && r.ResultJSON.String != "" {
		var result models.EvaluationResult
		if err := json.Unmarshal([]byte(r.ResultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("failed to decode evaluation result of %s: %w", entry.OccurrenceID, err)
		}
		entry.Result = &result
	}
	return &entry, nil
}

func normalize(opts ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 || limit > constants.MaxLimit {
		limit = constants.DefaultLimit
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
