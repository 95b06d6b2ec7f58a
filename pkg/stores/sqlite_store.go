package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrJobFinished is returned when updating a job in a terminal state.
	ErrJobFinished = errors.New("job already finished")
)

// SQLiteStore persists jobs, job events and conversion records in a
// single SQLite database. It satisfies Store.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

// Config sizes the connection pool. Zero values take defaults.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c Config) withDefaults() Config {
	if c.Path == MemoryPath {
		// Each :memory: connection is its own database.
		c.MaxOpenConns, c.MaxIdleConns, c.ConnMaxLifetime = 1, 1, 0
		return c
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	return c
}

// NewSQLiteStore returns an unopened store; call Init and Migrate, or use
// Open.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("stores: database path is required")
	}
	return &SQLiteStore{cfg: cfg.withDefaults()}, nil
}

// Open creates, initializes and migrates a store.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	store, err := NewSQLiteStore(Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// dsn builds the modernc connection string. File databases use WAL.
func (s *SQLiteStore) dsn() string {
	pragmas := []string{"foreign_keys(1)", "busy_timeout(5000)"}
	if s.cfg.Path != MemoryPath {
		pragmas = append(pragmas, "journal_mode(WAL)", "synchronous(NORMAL)")
	}
	var b strings.Builder
	b.WriteString(s.cfg.Path)
	b.WriteString("?_time_format=sqlite&_txlock=immediate")
	for _, p := range pragmas {
		b.WriteString("&_pragma=")
		b.WriteString(p)
	}
	return b.String()
}

// Init opens the connection pool and checks it is reachable.
func (s *SQLiteStore) Init(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("stores: open %s: %w", s.cfg.Path, err)
	}
	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("stores: ping %s: %w", s.cfg.Path, err)
	}
	s.db = db
	return nil
}

// Close releases the connection pool.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate applies the embedded schema migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("stores: migrate before Init")
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("stores: migration source: %w", err)
	}
	drv, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("stores: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		return fmt.Errorf("stores: migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("stores: migrate up: %w", err)
	}
	return nil
}

// withTx runs fn in a transaction, committing when it returns nil.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("stores: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

const jobColumns = `id, device_id, program_type, source_type, conversion, program, shots,
	status, result, error, metadata, created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	job := &Job{}
	err := row.Scan(
		&job.ID,
		&job.DeviceID,
		&job.ProgramType,
		&job.SourceType,
		&job.Conversion,
		&job.Program,
		&job.Shots,
		&job.Status,
		&job.Result,
		&job.Error,
		&job.Metadata,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	return job, err
}

// CreateJob inserts a job. Empty ID, status, metadata and timestamps are
// filled in.
func (s *SQLiteStore) CreateJob(ctx context.Context, job *Job) error {
	now := time.Now().UTC()
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = JobStatusInitializing
	}
	if job.Metadata == "" {
		job.Metadata = "{}"
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}

	query := `INSERT INTO jobs (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.DeviceID,
		job.ProgramType,
		job.SourceType,
		job.Conversion,
		job.Program,
		job.Shots,
		job.Status,
		job.Result,
		job.Error,
		job.Metadata,
		job.CreatedAt,
		job.UpdatedAt,
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetJob retrieves a job by ID
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// UpdateJobStatus moves a job to a new status. Result and error are kept
// when nil. Terminal jobs cannot be updated.
func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, id string, status JobStatus, result *string, errMsg *string) error {
	query := `
		UPDATE jobs
		SET status = ?,
			result = COALESCE(?, result),
			error = COALESCE(?, error),
			updated_at = ?,
			completed_at = ?
		WHERE id = ? AND status NOT IN ('completed', 'failed', 'cancelled')
	`

	now := time.Now().UTC()
	var completedAt *time.Time
	if status.Terminal() {
		completedAt = &now
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, status, result, errMsg, now, completedAt, id)
		if err != nil {
			return fmt.Errorf("failed to update job status: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n > 0 {
			return err
		}

		var exists int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM jobs WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("job %s: %w", id, ErrJobFinished)
	})
}

// ListJobs lists jobs newest first.
func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM jobs
		WHERE (? IS NULL OR device_id = ?)
		  AND (? IS NULL OR status = ?)
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, query,
		filter.DeviceID, filter.DeviceID,
		filter.Status, filter.Status,
		limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

// DeleteJob deletes a job and its events.
func (s *SQLiteStore) DeleteJob(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}

	return nil
}

// AppendJobEvent appends a new event to a job's log
func (s *SQLiteStore) AppendJobEvent(ctx context.Context, event *JobEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Level == "" {
		event.Level = EventLevelInfo
	}

	query := `
		INSERT INTO job_events (job_id, level, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		event.JobID,
		event.Level,
		event.Message,
		event.Details,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append job event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event ID: %w", err)
	}

	event.ID = id
	return nil
}

// GetJobEvents returns a job's events in the order they were appended.
func (s *SQLiteStore) GetJobEvents(ctx context.Context, jobID string, level *EventLevel, limit, offset int) ([]*JobEvent, error) {
	query := `
		SELECT id, job_id, level, message, details, timestamp
		FROM job_events
		WHERE job_id = ?
		  AND (? IS NULL OR level = ?)
		ORDER BY id ASC
		LIMIT ? OFFSET ?
	`

	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, query, jobID, level, level, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get job events: %w", err)
	}
	defer rows.Close()

	events := []*JobEvent{}
	for rows.Next() {
		event := &JobEvent{}
		err := rows.Scan(
			&event.ID,
			&event.JobID,
			&event.Level,
			&event.Message,
			&event.Details,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job events: %w", err)
	}

	return events, nil
}

// RecordConversion appends a conversion audit record.
func (s *SQLiteStore) RecordConversion(ctx context.Context, rec *ConversionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO conversions (id, source_type, target_type, path, hops, lossy, status, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.SourceType,
		rec.TargetType,
		rec.Path,
		rec.Hops,
		rec.Lossy,
		rec.Status,
		rec.Error,
		rec.DurationMS,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record conversion: %w", err)
	}

	return nil
}

// ListConversions lists conversion records newest first.
func (s *SQLiteStore) ListConversions(ctx context.Context, limit, offset int) ([]*ConversionRecord, error) {
	query := `
		SELECT id, source_type, target_type, path, hops, lossy, status, error, duration_ms, created_at
		FROM conversions
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`

	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversions: %w", err)
	}
	defer rows.Close()

	records := []*ConversionRecord{}
	for rows.Next() {
		rec := &ConversionRecord{}
		err := rows.Scan(
			&rec.ID,
			&rec.SourceType,
			&rec.TargetType,
			&rec.Path,
			&rec.Hops,
			&rec.Lossy,
			&rec.Status,
			&rec.Error,
			&rec.DurationMS,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversion: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversions: %w", err)
	}

	return records, nil
}

// HealthCheck pings the database.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("stores: not initialized")
	}
	return s.db.PingContext(ctx)
}
