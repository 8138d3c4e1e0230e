// Package quota tracks metered character usage per speech-synthesis project
// with a monthly reset, and selects the backend to render against.
package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrQuotaExhausted indicates that no project has enough remaining
	// capacity for the requested character count. Terminal for the current
	// period; callers must wait for the monthly reset.
	ErrQuotaExhausted = errors.New("all projects at quota limit, retry after the monthly reset")
	// ErrUnknownProject indicates a usage update for a project the ledger
	// does not track.
	ErrUnknownProject = errors.New("unknown quota project")
)

// periodLayout renders the rollover period as a calendar month.
const periodLayout = "2006-01"

// Reservation records capacity taken from one project for a single render.
type Reservation struct {
	ProjectID string
	Chars     int64
	Remaining int64
}

// ProjectUsage is one project's position against the safety limit.
type ProjectUsage struct {
	ProjectID      string  `json:"project_id"`
	CharsUsed      int64   `json:"chars_used"`
	CharsRemaining int64   `json:"chars_remaining"`
	UsagePercent   float64 `json:"usage_percent"`
}

// Ledger is the persisted per-project usage ledger.
//
// The read-select-update sequence runs under a process-wide mutex and a
// single transaction per call, so concurrent renders cannot both land on the
// same near-exhausted project.
type Ledger struct {
	db          *sql.DB
	safetyLimit int64
	mu          sync.Mutex
	clock       func() time.Time
}

// NewLedger initializes the ledger schema on db and seeds a row for every
// configured project id.
func NewLedger(ctx context.Context, db *sql.DB, projectIDs []string, safetyLimit int64) (*Ledger, error) {
	return NewLedgerWithClock(ctx, db, projectIDs, safetyLimit, time.Now)
}

// NewLedgerWithClock is NewLedger with an injected clock, primarily for
// testing period rollover.
func NewLedgerWithClock(
	ctx context.Context,
	db *sql.DB,
	projectIDs []string,
	safetyLimit int64,
	clock func() time.Time,
) (*Ledger, error) {
	ledger := &Ledger{
		db:          db,
		safetyLimit: safetyLimit,
		clock:       clock,
	}

	err := ledger.initSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize quota schema: %w", err)
	}

	err = ledger.seed(ctx, projectIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to seed quota projects: %w", err)
	}

	return ledger, nil
}

// SafetyLimit returns the per-project character budget for the current period.
func (l *Ledger) SafetyLimit() int64 {
	return l.safetyLimit
}

// Reserve selects the least-used project that can still absorb chars within
// the safety limit and charges it in the same transaction.
//
// A stale period is rolled over (usage reset to zero) before selection, and
// the rollover is persisted even when the reservation itself fails with
// ErrQuotaExhausted.
func (l *Ledger) Reserve(ctx context.Context, chars int64) (Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	period := l.currentPeriod()

	err := l.rollover(ctx, period)
	if err != nil {
		return Reservation{}, err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Reservation{}, fmt.Errorf("failed to begin reservation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		projectID string
		used      int64
	)

	row := tx.QueryRowContext(ctx,
		`SELECT project_id, chars_used FROM quota_projects
		 WHERE chars_used + ? <= ?
		 ORDER BY chars_used ASC, project_id ASC LIMIT 1`,
		chars, l.safetyLimit)

	err = row.Scan(&projectID, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return Reservation{}, ErrQuotaExhausted
	}

	if err != nil {
		return Reservation{}, fmt.Errorf("failed to select quota project: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE quota_projects SET chars_used = chars_used + ? WHERE project_id = ?`,
		chars, projectID)
	if err != nil {
		return Reservation{}, fmt.Errorf("failed to charge project '%s': %w", projectID, err)
	}

	err = tx.Commit()
	if err != nil {
		return Reservation{}, fmt.Errorf("failed to commit reservation: %w", err)
	}

	return Reservation{
		ProjectID: projectID,
		Chars:     chars,
		Remaining: l.safetyLimit - used - chars,
	}, nil
}

// Refund returns a reservation after a failed render. If the period rolled
// over since the reservation was taken, the usage is already zero and the
// refund is a no-op.
func (l *Ledger) Refund(ctx context.Context, res Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	period := l.currentPeriod()

	err := l.rollover(ctx, period)
	if err != nil {
		return err
	}

	result, err := l.db.ExecContext(ctx,
		`UPDATE quota_projects SET chars_used = MAX(chars_used - ?, 0) WHERE project_id = ?`,
		res.Chars, res.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to refund project '%s': %w", res.ProjectID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to confirm refund for project '%s': %w", res.ProjectID, err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: '%s'", ErrUnknownProject, res.ProjectID)
	}

	return nil
}

// Usage reports every project's position against the safety limit, applying
// any pending period rollover first.
func (l *Ledger) Usage(ctx context.Context) ([]ProjectUsage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.rollover(ctx, l.currentPeriod())
	if err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT project_id, chars_used FROM quota_projects ORDER BY project_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query quota usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var report []ProjectUsage

	for rows.Next() {
		var usage ProjectUsage

		err = rows.Scan(&usage.ProjectID, &usage.CharsUsed)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quota usage row: %w", err)
		}

		usage.CharsRemaining = l.safetyLimit - usage.CharsUsed
		usage.UsagePercent = float64(usage.CharsUsed) / float64(l.safetyLimit) * 100

		report = append(report, usage)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to read quota usage rows: %w", err)
	}

	return report, nil
}

func (l *Ledger) initSchema(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS quota_projects (
    project_id TEXT PRIMARY KEY,
    chars_used INTEGER NOT NULL DEFAULT 0,
    period TEXT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("failed to create quota_projects table: %w", err)
	}

	return nil
}

func (l *Ledger) seed(ctx context.Context, projectIDs []string) error {
	period := l.currentPeriod()

	for _, projectID := range projectIDs {
		_, err := l.db.ExecContext(ctx,
			`INSERT INTO quota_projects(project_id, chars_used, period) VALUES(?, 0, ?)
			 ON CONFLICT(project_id) DO NOTHING`,
			projectID, period)
		if err != nil {
			return fmt.Errorf("failed to seed project '%s': %w", projectID, err)
		}
	}

	return nil
}

// rollover resets usage for every project whose stored period differs from
// the current one. Read-triggered: it runs at the start of every ledger
// operation rather than on a schedule.
func (l *Ledger) rollover(ctx context.Context, period string) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE quota_projects SET chars_used = 0, period = ? WHERE period <> ?`,
		period, period)
	if err != nil {
		return fmt.Errorf("failed to roll over quota period: %w", err)
	}

	return nil
}

func (l *Ledger) currentPeriod() string {
	return l.clock().UTC().Format(periodLayout)
}
