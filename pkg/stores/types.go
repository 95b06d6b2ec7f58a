package stores

import (
	"context"
	"time"
)

// JobStatus represents the lifecycle state of a quantum job.
type JobStatus string

const (
	JobStatusInitializing JobStatus = "initializing"
	JobStatusQueued       JobStatus = "queued"
	JobStatusRunning      JobStatus = "running"
	JobStatusCompleted    JobStatus = "completed"
	JobStatusFailed       JobStatus = "failed"
	JobStatusCancelled    JobStatus = "cancelled"
)

// Terminal reports whether the job can no longer change state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// EventLevel represents the severity of a job event.
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// ConversionStatus is the outcome of a recorded conversion.
type ConversionStatus string

const (
	ConversionSuccess ConversionStatus = "success"
	ConversionFailure ConversionStatus = "failure"
)

// Job is a program submitted to a device.
type Job struct {
	ID          string     `json:"id"`
	DeviceID    string     `json:"device_id"`
	ProgramType string     `json:"program_type"` // type the device ran
	SourceType  string     `json:"source_type"`  // type the caller submitted
	Conversion  string     `json:"conversion"`   // "a -> b -> c", empty when not converted
	Program     string     `json:"program"`      // serialized device program
	Shots       int        `json:"shots"`
	Status      JobStatus  `json:"status"`
	Result      *string    `json:"result,omitempty"` // JSON blob
	Error       *string    `json:"error,omitempty"`
	Metadata    string     `json:"metadata"` // JSON blob
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobEvent is an entry in a job's event log.
type JobEvent struct {
	ID        int64      `json:"id"`
	JobID     string     `json:"job_id"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Details   *string    `json:"details,omitempty"` // JSON blob
	Timestamp time.Time  `json:"timestamp"`
}

// ConversionRecord is an audit entry for one transpile call.
type ConversionRecord struct {
	ID         string           `json:"id"`
	SourceType string           `json:"source_type"`
	TargetType string           `json:"target_type"`
	Path       string           `json:"path"`
	Hops       int              `json:"hops"`
	Lossy      bool             `json:"lossy"`
	Status     ConversionStatus `json:"status"`
	Error      *string          `json:"error,omitempty"`
	DurationMS int64            `json:"duration_ms"`
	CreatedAt  time.Time        `json:"created_at"`
}

// JobFilter selects jobs in ListJobs. Nil fields match everything.
type JobFilter struct {
	DeviceID *string
	Status   *JobStatus
	Limit    int
	Offset   int
}

// Store is the persistence layer used by devices and the CLI.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Job operations
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	UpdateJobStatus(ctx context.Context, id string, status JobStatus, result *string, errMsg *string) error
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)
	DeleteJob(ctx context.Context, id string) error

	// Event operations
	AppendJobEvent(ctx context.Context, event *JobEvent) error
	GetJobEvents(ctx context.Context, jobID string, level *EventLevel, limit, offset int) ([]*JobEvent, error)

	// Conversion audit
	RecordConversion(ctx context.Context, rec *ConversionRecord) error
	ListConversions(ctx context.Context, limit, offset int) ([]*ConversionRecord, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
