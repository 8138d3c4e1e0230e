// Package quota_test tests the quota ledger and project selection.
package quota_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsreel/script-service/internal/quota"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "quota.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func usageByProject(t *testing.T, ledger *quota.Ledger) map[string]int64 {
	t.Helper()

	report, err := ledger.Usage(context.Background())
	require.NoError(t, err)

	byProject := make(map[string]int64, len(report))
	for _, usage := range report {
		byProject[usage.ProjectID] = usage.CharsUsed
	}

	return byProject
}

func TestLedger_ReserveSelectsLeastUsedWithinLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger, err := quota.NewLedger(ctx, openTestDB(t), []string{"project-a", "project-b"}, 1000)
	require.NoError(t, err)

	// Bring the projects to 800 and 999 chars used.
	first, err := ledger.Reserve(ctx, 800)
	require.NoError(t, err)
	assert.Equal(t, "project-a", first.ProjectID)

	second, err := ledger.Reserve(ctx, 999)
	require.NoError(t, err)
	assert.Equal(t, "project-b", second.ProjectID)

	// A 150-char render fits only the least-used project.
	third, err := ledger.Reserve(ctx, 150)
	require.NoError(t, err)
	assert.Equal(t, "project-a", third.ProjectID)
	assert.Equal(t, int64(50), third.Remaining)

	usage := usageByProject(t, ledger)
	assert.Equal(t, int64(950), usage["project-a"])
	assert.Equal(t, int64(999), usage["project-b"])

	// A second identical render exhausts every project and records nothing.
	_, err = ledger.Reserve(ctx, 150)
	require.ErrorIs(t, err, quota.ErrQuotaExhausted)

	usage = usageByProject(t, ledger)
	assert.Equal(t, int64(950), usage["project-a"])
	assert.Equal(t, int64(999), usage["project-b"])
}

func TestLedger_MonthlyRollover(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, time.July, 15, 12, 0, 0, 0, time.UTC)

	ledger, err := quota.NewLedgerWithClock(ctx, openTestDB(t), []string{"project-a"}, 1000,
		func() time.Time { return now })
	require.NoError(t, err)

	_, err = ledger.Reserve(ctx, 990)
	require.NoError(t, err)

	_, err = ledger.Reserve(ctx, 500)
	require.ErrorIs(t, err, quota.ErrQuotaExhausted)

	// The stored period is now stale; usage resets before any selection runs.
	now = time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)

	reservation, err := ledger.Reserve(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, "project-a", reservation.ProjectID)
	assert.Equal(t, int64(500), reservation.Remaining)

	usage := usageByProject(t, ledger)
	assert.Equal(t, int64(500), usage["project-a"])
}

func TestLedger_RolloverPersistsOnRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	now := time.Date(2026, time.July, 15, 12, 0, 0, 0, time.UTC)

	ledger, err := quota.NewLedgerWithClock(ctx, db, []string{"project-a"}, 1000,
		func() time.Time { return now })
	require.NoError(t, err)

	_, err = ledger.Reserve(ctx, 800)
	require.NoError(t, err)

	now = now.AddDate(0, 1, 0)

	usage := usageByProject(t, ledger)
	assert.Equal(t, int64(0), usage["project-a"])

	var period string

	require.NoError(t, db.QueryRow(
		`SELECT period FROM quota_projects WHERE project_id = 'project-a'`).Scan(&period))
	assert.Equal(t, "2026-08", period)
}

func TestLedger_Refund(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger, err := quota.NewLedger(ctx, openTestDB(t), []string{"project-a"}, 1000)
	require.NoError(t, err)

	reservation, err := ledger.Reserve(ctx, 300)
	require.NoError(t, err)

	require.NoError(t, ledger.Refund(ctx, reservation))

	usage := usageByProject(t, ledger)
	assert.Equal(t, int64(0), usage["project-a"])

	// Refunds floor at zero rather than going negative.
	require.NoError(t, ledger.Refund(ctx, reservation))

	usage = usageByProject(t, ledger)
	assert.Equal(t, int64(0), usage["project-a"])
}

func TestLedger_RefundUnknownProject(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger, err := quota.NewLedger(ctx, openTestDB(t), []string{"project-a"}, 1000)
	require.NoError(t, err)

	err = ledger.Refund(ctx, quota.Reservation{ProjectID: "project-z", Chars: 10})
	require.ErrorIs(t, err, quota.ErrUnknownProject)
}

func TestLedger_UsageReport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ledger, err := quota.NewLedger(ctx, openTestDB(t), []string{"project-a", "project-b"}, 1000)
	require.NoError(t, err)

	_, err = ledger.Reserve(ctx, 250)
	require.NoError(t, err)

	report, err := ledger.Usage(ctx)
	require.NoError(t, err)
	require.Len(t, report, 2)

	assert.Equal(t, "project-a", report[0].ProjectID)
	assert.Equal(t, int64(250), report[0].CharsUsed)
	assert.Equal(t, int64(750), report[0].CharsRemaining)
	assert.InEpsilon(t, 25.0, report[0].UsagePercent, 1e-9)

	assert.Equal(t, "project-b", report[1].ProjectID)
	assert.Equal(t, int64(0), report[1].CharsUsed)
}

func TestLedger_SurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quota.db")
	clock := func() time.Time {
		return time.Date(2026, time.July, 15, 12, 0, 0, 0, time.UTC)
	}

	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)

	ledger, err := quota.NewLedgerWithClock(ctx, db, []string{"project-a"}, 1000, clock)
	require.NoError(t, err)

	_, err = ledger.Reserve(ctx, 600)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = reopened.Close() })

	ledger, err = quota.NewLedgerWithClock(ctx, reopened, []string{"project-a"}, 1000, clock)
	require.NoError(t, err)

	usage := usageByProject(t, ledger)
	assert.Equal(t, int64(600), usage["project-a"])
}
