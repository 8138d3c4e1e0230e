package generation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound indicates that no generation record exists for the id.
	ErrNotFound = errors.New("generation not found")
	// ErrInvalidTransition indicates a status update that the lifecycle does
	// not permit, such as marking a record generated twice.
	ErrInvalidTransition = errors.New("invalid generation status transition")
)

// Store is the SQLite-backed persistence layer for generation records.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// NewStore initializes the generation schema on db.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	store := &Store{
		db:    db,
		clock: time.Now,
	}

	err := store.initSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generation schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS generations (
    id TEXT PRIMARY KEY,
    source_ref TEXT NOT NULL DEFAULT '',
    tts_track_key TEXT NOT NULL DEFAULT '',
    captions_track_key TEXT NOT NULL DEFAULT '',
    manifest_key TEXT NOT NULL DEFAULT '',
    audio_key TEXT NOT NULL DEFAULT '',
    total_duration REAL NOT NULL,
    word_count INTEGER NOT NULL,
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_generations_status_created ON generations(status, created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create generations table: %w", err)
	}

	return nil
}

// Insert writes a new record in the pending state.
func (s *Store) Insert(ctx context.Context, gen *Generation) error {
	now := s.clock().UTC()
	gen.Status = StatusPending
	gen.CreatedAt = now
	gen.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generations(id, source_ref, total_duration, word_count, status, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		gen.ID, gen.SourceRef, gen.TotalDuration, gen.WordCount, gen.Status,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert generation '%s': %w", gen.ID, err)
	}

	return nil
}

// Get retrieves one record by id.
func (s *Store) Get(ctx context.Context, id string) (*Generation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_ref, tts_track_key, captions_track_key, manifest_key, audio_key,
		        total_duration, word_count, status, error, created_at, updated_at
		 FROM generations WHERE id = ?`, id)

	gen, err := scanGeneration(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: '%s'", ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read generation '%s': %w", id, err)
	}

	return gen, nil
}

// List returns up to limit records, newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, status Status, limit int) ([]Generation, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, source_ref, tts_track_key, captions_track_key, manifest_key, audio_key,
	                 total_duration, word_count, status, error, created_at, updated_at
	          FROM generations`

	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`

		args = append(args, status)
	}

	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var generations []Generation

	for rows.Next() {
		gen, scanErr := scanGeneration(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan generation row: %w", scanErr)
		}

		generations = append(generations, *gen)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to read generation rows: %w", err)
	}

	return generations, nil
}

// MarkGenerated records the artifact keys and moves a pending record to
// generated. The status guard runs inside the update, so a record that
// already left pending is never overwritten.
func (s *Store) MarkGenerated(ctx context.Context, id, ttsKey, captionsKey, manifestKey string) error {
	return s.guardedUpdate(ctx, id,
		`UPDATE generations
		 SET tts_track_key = ?, captions_track_key = ?, manifest_key = ?, status = ?, error = '', updated_at = ?
		 WHERE id = ? AND status = ?`,
		ttsKey, captionsKey, manifestKey, StatusGenerated,
		s.clock().UTC().Format(time.RFC3339Nano), id, StatusPending)
}

// MarkAudioReady records the audio artifact and completes the lifecycle.
// Permitted from generated, and from failed when generated artifacts are
// still referenced, so audio rendering can be retried without rebuilding
// tracks.
func (s *Store) MarkAudioReady(ctx context.Context, id, audioKey string) error {
	return s.guardedUpdate(ctx, id,
		`UPDATE generations
		 SET audio_key = ?, status = ?, error = '', updated_at = ?
		 WHERE id = ? AND status IN (?, ?) AND tts_track_key <> ''`,
		audioKey, StatusAudioReady,
		s.clock().UTC().Format(time.RFC3339Nano), id, StatusGenerated, StatusFailed)
}

// MarkFailed captures the triggering error verbatim. Artifact keys recorded
// by earlier completed transitions are left in place.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE generations SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		StatusFailed, message, s.clock().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("failed to mark generation '%s' failed: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to confirm update for generation '%s': %w", id, err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: '%s'", ErrNotFound, id)
	}

	return nil
}

func (s *Store) guardedUpdate(ctx context.Context, id, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update generation '%s': %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to confirm update for generation '%s': %w", id, err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: generation '%s'", ErrInvalidTransition, id)
	}

	return nil
}

func scanGeneration(scan func(dest ...any) error) (*Generation, error) {
	var (
		gen                  Generation
		createdAt, updatedAt string
	)

	err := scan(&gen.ID, &gen.SourceRef, &gen.TTSTrackKey, &gen.CaptionsTrackKey,
		&gen.ManifestKey, &gen.AudioKey, &gen.TotalDuration, &gen.WordCount,
		&gen.Status, &gen.Error, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	gen.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at '%s': %w", createdAt, err)
	}

	gen.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at '%s': %w", updatedAt, err)
	}

	return &gen, nil
}
