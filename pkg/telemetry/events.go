package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a job or conversion lifecycle event. Publish fills in ID,
// Timestamp and Level when they are empty.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"` // emitting package
	JobID     string                 `json:"job_id,omitempty"`
	DeviceID  string                 `json:"device_id,omitempty"`
	Message   string                 `json:"message"`
	Level     string                 `json:"level"` // info, warning or error
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeJobSubmitted     = "job.submitted"
	EventTypeJobCompleted     = "job.completed"
	EventTypeJobFailed        = "job.failed"
	EventTypeJobCancelled     = "job.cancelled"
	EventTypeProgramConverted = "program.converted"
	EventTypePolicyViolation  = "policy.violation"
)

// Event severity levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber handles delivered events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be delivered.
type EventFilter func(event Event) bool

// EventPublisher buffers events and delivers them to subscribers on a
// single goroutine, in publish order.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher starts the delivery goroutine when cfg is enabled. A
// disabled publisher accepts and drops everything.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("event buffer size must be positive, got: %d", cfg.BufferSize)
	}

	ep := &EventPublisher{
		config: cfg,
		buffer: make(chan Event, cfg.BufferSize),
	}

	ep.wg.Add(1)
	go ep.processEvents()

	return ep, nil
}

// Publish queues an event for delivery. It fails when the buffer is full or
// the publisher is shut down.
func (ep *EventPublisher) Publish(event Event) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Level == "" {
		event.Level = EventLevelInfo
	}

	ep.mu.RLock()
	defer ep.mu.RUnlock()
	if ep.closed {
		return fmt.Errorf("event publisher is shut down")
	}

	select {
	case ep.buffer <- event:
		return nil
	default:
		return fmt.Errorf("event buffer full, dropping event %s", event.Type)
	}
}

// PublishJobSubmitted publishes a job submission event.
func (ep *EventPublisher) PublishJobSubmitted(jobID, deviceID, programType string, shots int) error {
	return ep.Publish(Event{
		Type:     EventTypeJobSubmitted,
		Source:   "devices",
		JobID:    jobID,
		DeviceID: deviceID,
		Message:  fmt.Sprintf("Job %s submitted to %s", jobID, deviceID),
		Data: map[string]interface{}{
			"program_type": programType,
			"shots":        shots,
		},
	})
}

// PublishJobStatus publishes a terminal job status event.
func (ep *EventPublisher) PublishJobStatus(jobID, deviceID, status, reason string) error {
	event := Event{
		Source:   "devices",
		JobID:    jobID,
		DeviceID: deviceID,
	}
	switch status {
	case "completed":
		event.Type = EventTypeJobCompleted
		event.Message = fmt.Sprintf("Job %s completed", jobID)
	case "cancelled":
		event.Type = EventTypeJobCancelled
		event.Message = fmt.Sprintf("Job %s cancelled", jobID)
		event.Level = EventLevelWarning
	default:
		event.Type = EventTypeJobFailed
		event.Message = fmt.Sprintf("Job %s failed: %s", jobID, reason)
		event.Level = EventLevelError
	}
	return ep.Publish(event)
}

// PublishProgramConverted publishes a completed conversion.
func (ep *EventPublisher) PublishProgramConverted(source, target, path string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeProgramConverted,
		Source:  "transpiler",
		Message: fmt.Sprintf("Converted %s to %s via %s", source, target, path),
		Data: map[string]interface{}{
			"path":        path,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// PublishPolicyViolation publishes a conversion policy violation.
func (ep *EventPublisher) PublishPolicyViolation(policyName, path, message string) error {
	return ep.Publish(Event{
		Type:    EventTypePolicyViolation,
		Source:  "policy",
		Message: fmt.Sprintf("Policy %s: %s", policyName, message),
		Level:   EventLevelWarning,
		Data: map[string]interface{}{
			"policy": policyName,
			"path":   path,
		},
	})
}

// Subscribe registers fn. A nil filter receives every event.
func (ep *EventPublisher) Subscribe(fn EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	ep.subscribers = append(ep.subscribers, subscriberEntry{subscriber: fn, filter: filter})
	ep.mu.Unlock()
}

func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()
	for event := range ep.buffer {
		ep.mu.RLock()
		subs := append([]subscriberEntry(nil), ep.subscribers...)
		ep.mu.RUnlock()

		for _, sub := range subs {
			if sub.filter == nil || sub.filter(event) {
				sub.subscriber(event)
			}
		}
	}
}

// Shutdown stops accepting events and waits for queued events to be
// delivered.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	ep.mu.Lock()
	if !ep.closed {
		ep.closed = true
		close(ep.buffer)
	}
	ep.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		ep.wg.Wait()
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telemetry: events not drained: %w", ctx.Err())
	}
}

var levelRank = map[string]int{EventLevelInfo: 0, EventLevelWarning: 1, EventLevelError: 2}

// FilterByLevel passes events at minLevel or more severe.
func FilterByLevel(minLevel string) EventFilter {
	floor := levelRank[minLevel]
	return func(e Event) bool { return levelRank[e.Level] >= floor }
}

// FilterByType passes events whose Type is one of types.
func FilterByType(types ...string) EventFilter {
	return func(e Event) bool {
		for _, t := range types {
			if e.Type == t {
				return true
			}
		}
		return false
	}
}

// FilterByJobID passes events for one job.
func FilterByJobID(jobID string) EventFilter {
	return func(e Event) bool { return e.JobID == jobID }
}
