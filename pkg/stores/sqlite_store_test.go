package stores

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: MemoryPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newJob(id, device string) *Job {
	return &Job{
		ID:          id,
		DeviceID:    device,
		ProgramType: "qasm2",
		SourceType:  "qiskit",
		Conversion:  "qiskit -> qasm2",
		Program:     "OPENQASM 2.0;\nqreg q[1];\nh q[0];\n",
		Shots:       100,
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: MemoryPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("expected health check to fail before Init")
	}

	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tables := []string{"jobs", "job_events", "conversions"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	// Migrating twice is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("second migration failed: %v", err)
	}
}

func TestOpen_FileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "jobs.db")

	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.CreateJob(ctx, newJob("job-file", "dev")); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.GetJob(ctx, "job-file"); err != nil {
		t.Errorf("job did not persist: %v", err)
	}
}

// TestJobCRUD tests Job CRUD operations
func TestJobCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	job := newJob("", "ibm_sim")
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	if job.ID == "" {
		t.Fatal("expected generated job ID")
	}
	if job.Status != JobStatusInitializing {
		t.Errorf("expected default status %s, got %s", JobStatusInitializing, job.Status)
	}

	retrieved, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}
	if retrieved.DeviceID != "ibm_sim" || retrieved.Shots != 100 || retrieved.Program != job.Program {
		t.Errorf("unexpected job %+v", retrieved)
	}
	if retrieved.Metadata != "{}" {
		t.Errorf("expected empty metadata object, got %s", retrieved.Metadata)
	}
	if retrieved.CompletedAt != nil {
		t.Error("new job should not be completed")
	}

	// Update
	if err := store.UpdateJobStatus(ctx, job.ID, JobStatusQueued, nil, nil); err != nil {
		t.Fatalf("failed to queue job: %v", err)
	}
	result := `{"counts":{"0":50,"1":50}}`
	if err := store.UpdateJobStatus(ctx, job.ID, JobStatusCompleted, &result, nil); err != nil {
		t.Fatalf("failed to complete job: %v", err)
	}

	updated, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("failed to get updated job: %v", err)
	}
	if updated.Status != JobStatusCompleted {
		t.Errorf("expected status %s, got %s", JobStatusCompleted, updated.Status)
	}
	if updated.Result == nil || *updated.Result != result {
		t.Errorf("expected result %s, got %v", result, updated.Result)
	}
	if updated.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}

	// Terminal jobs are frozen.
	err = store.UpdateJobStatus(ctx, job.ID, JobStatusRunning, nil, nil)
	if !errors.Is(err, ErrJobFinished) {
		t.Errorf("expected ErrJobFinished, got %v", err)
	}

	// Delete
	if err := store.DeleteJob(ctx, job.ID); err != nil {
		t.Fatalf("failed to delete job: %v", err)
	}
	if _, err := store.GetJob(ctx, job.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for deleted job, got %v", err)
	}
}

func TestJobNotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.UpdateJobStatus(ctx, "missing", JobStatusFailed, nil, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from update, got %v", err)
	}
	if err := store.DeleteJob(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from delete, got %v", err)
	}
}

func TestJobConstraints(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	job := newJob("job-zero", "dev")
	job.Shots = 0
	if err := store.CreateJob(ctx, job); err == nil {
		t.Error("expected check constraint failure for zero shots")
	}

	job = newJob("job-status", "dev")
	job.Status = "exploded"
	if err := store.CreateJob(ctx, job); err == nil {
		t.Error("expected check constraint failure for unknown status")
	}

	if err := store.CreateJob(ctx, newJob("dup", "dev")); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	if err := store.CreateJob(ctx, newJob("dup", "dev")); err == nil {
		t.Error("expected primary key violation")
	}
}

func TestListJobs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	specs := []struct {
		id     string
		device string
		status JobStatus
	}{
		{"job-1", "ionq_sim", JobStatusCompleted},
		{"job-2", "ionq_sim", JobStatusQueued},
		{"job-3", "ibm_sim", JobStatusQueued},
		{"job-4", "ionq_sim", JobStatusFailed},
	}
	for i, s := range specs {
		job := newJob(s.id, s.device)
		job.Status = s.status
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.CreateJob(ctx, job); err != nil {
			t.Fatalf("failed to create %s: %v", s.id, err)
		}
	}

	ionq := "ionq_sim"
	queued := JobStatusQueued

	tests := []struct {
		name   string
		filter JobFilter
		want   []string
	}{
		{name: "all newest first", filter: JobFilter{}, want: []string{"job-4", "job-3", "job-2", "job-1"}},
		{name: "by device", filter: JobFilter{DeviceID: &ionq}, want: []string{"job-4", "job-2", "job-1"}},
		{name: "by status", filter: JobFilter{Status: &queued}, want: []string{"job-3", "job-2"}},
		{name: "device and status", filter: JobFilter{DeviceID: &ionq, Status: &queued}, want: []string{"job-2"}},
		{name: "paged", filter: JobFilter{Limit: 2, Offset: 1}, want: []string{"job-3", "job-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := store.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("failed to list jobs: %v", err)
			}
			if len(jobs) != len(tt.want) {
				t.Fatalf("expected %d jobs, got %d", len(tt.want), len(jobs))
			}
			for i, id := range tt.want {
				if jobs[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, jobs[i].ID)
				}
			}
		})
	}
}

// TestJobEvents tests the job event log
func TestJobEvents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	job := newJob("job-events", "dev")
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	details := `{"path":"qiskit -> qasm2"}`
	events := []*JobEvent{
		{JobID: job.ID, Message: "transpiled", Details: &details},
		{JobID: job.ID, Level: EventLevelWarning, Message: "lossy conversion"},
		{JobID: job.ID, Level: EventLevelInfo, Message: "submitted"},
	}
	for _, e := range events {
		if err := store.AppendJobEvent(ctx, e); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		if e.ID == 0 {
			t.Error("expected generated event ID")
		}
	}

	all, err := store.GetJobEvents(ctx, job.ID, nil, 0, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	if all[0].Message != "transpiled" || all[0].Level != EventLevelInfo {
		t.Errorf("unexpected first event %+v", all[0])
	}
	if all[0].Details == nil || *all[0].Details != details {
		t.Errorf("expected details %s, got %v", details, all[0].Details)
	}

	warning := EventLevelWarning
	warnings, err := store.GetJobEvents(ctx, job.ID, &warning, 10, 0)
	if err != nil {
		t.Fatalf("failed to filter events: %v", err)
	}
	if len(warnings) != 1 || warnings[0].Message != "lossy conversion" {
		t.Errorf("unexpected warnings %+v", warnings)
	}

	// Events require an existing job.
	if err := store.AppendJobEvent(ctx, &JobEvent{JobID: "missing", Message: "x"}); err == nil {
		t.Error("expected foreign key violation")
	}

	// Deleting the job cascades.
	if err := store.DeleteJob(ctx, job.ID); err != nil {
		t.Fatalf("failed to delete job: %v", err)
	}
	remaining, err := store.GetJobEvents(ctx, job.ID, nil, 0, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected events to be deleted, got %d", len(remaining))
	}
}

func TestConversionRecords(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	failure := "no path"
	records := []*ConversionRecord{
		{SourceType: "braket", TargetType: "qasm2", Path: "braket -> qasm2", Hops: 1, Status: ConversionSuccess, DurationMS: 3, CreatedAt: base},
		{SourceType: "pennylane", TargetType: "qasm2", Path: "pennylane -> qasm3 -> qasm2", Hops: 2, Lossy: true, Status: ConversionSuccess, CreatedAt: base.Add(time.Second)},
		{SourceType: "cirq", TargetType: "pytket", Status: ConversionFailure, Error: &failure, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, r := range records {
		if err := store.RecordConversion(ctx, r); err != nil {
			t.Fatalf("failed to record conversion: %v", err)
		}
		if r.ID == "" {
			t.Error("expected generated record ID")
		}
	}

	listed, err := store.ListConversions(ctx, 0, 0)
	if err != nil {
		t.Fatalf("failed to list conversions: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 records, got %d", len(listed))
	}
	if listed[0].Status != ConversionFailure || listed[0].Error == nil || *listed[0].Error != failure {
		t.Errorf("unexpected newest record %+v", listed[0])
	}
	if !listed[1].Lossy || listed[1].Hops != 2 {
		t.Errorf("unexpected lossy record %+v", listed[1])
	}
	if listed[2].Lossy {
		t.Error("lossless record read back as lossy")
	}
}

func TestWithTxRollsBack(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (id, device_id, program_type, source_type, program, shots, status, created_at, updated_at)
			 VALUES ('tx-job', 'dev', 'qasm2', 'qasm2', '', 1, 'queued', ?, ?)`,
			time.Now().UTC(), time.Now().UTC()); err != nil {
			t.Fatalf("failed to insert in transaction: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	if _, err := store.GetJob(ctx, "tx-job"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected rolled back job to be missing, got %v", err)
	}
}

func TestJobStatusTerminal(t *testing.T) {
	terminal := map[JobStatus]bool{
		JobStatusInitializing: false,
		JobStatusQueued:       false,
		JobStatusRunning:      false,
		JobStatusCompleted:    true,
		JobStatusFailed:       true,
		JobStatusCancelled:    true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}
