package devices

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/qbraid/qbraid-go/pkg/circuit"
	"github.com/qbraid/qbraid-go/pkg/compiler"
	"github.com/qbraid/qbraid-go/pkg/config"
	"github.com/qbraid/qbraid-go/pkg/programs"
	"github.com/qbraid/qbraid-go/pkg/qerrors"
	"github.com/qbraid/qbraid-go/pkg/stores"
	"github.com/qbraid/qbraid-go/pkg/telemetry"
	"github.com/qbraid/qbraid-go/pkg/transpiler"
)

// Device prepares programs for one device profile and submits them to its
// backend.
type Device struct {
	profile     config.DeviceProfile
	programType programs.ProgramType
	target      compiler.Target

	transpiler *transpiler.Transpiler
	compiler   *compiler.Compiler
	backend    Backend
	store      stores.Store

	logger  zerolog.Logger
	tracer  *telemetry.Tracer
	metrics *telemetry.Metrics
	events  *telemetry.EventPublisher
}

// Option configures a Device.
type Option func(*Device)

// WithStore records jobs and job events in store.
func WithStore(store stores.Store) Option {
	return func(d *Device) {
		d.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Device) {
		d.logger = logger
	}
}

// WithTracer sets the tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(d *Device) {
		d.tracer = t
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(d *Device) {
		d.metrics = m
	}
}

// WithEvents sets the event publisher.
func WithEvents(ep *telemetry.EventPublisher) Option {
	return func(d *Device) {
		d.events = ep
	}
}

// WithCompiler sets the compiler used for rebasing.
func WithCompiler(c *compiler.Compiler) Option {
	return func(d *Device) {
		d.compiler = c
	}
}

// New creates a device. The profile's program type must be registered in
// the transpiler's catalog, and when basis gates are set it must convert to
// and from the circuit model.
func New(profile config.DeviceProfile, tr *transpiler.Transpiler, backend Backend, opts ...Option) (*Device, error) {
	if profile.ID == "" {
		return nil, qerrors.NewInvalid("device id is required", nil)
	}
	if tr == nil || backend == nil {
		return nil, qerrors.NewInvalid(fmt.Sprintf("device %s: transpiler and backend are required", profile.ID), nil)
	}

	pt, err := tr.Catalog().Resolve(profile.ProgramType)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", profile.ID, err)
	}

	target, err := targetFor(profile)
	if err != nil {
		return nil, qerrors.NewInvalid(fmt.Sprintf("device %s", profile.ID), err).
			WithCode(qerrors.ErrCodeValidation)
	}
	if len(target.GateSet) > 0 {
		spec, _ := tr.Catalog().Lookup(pt)
		if spec.ToCircuit == nil || spec.FromCircuit == nil {
			return nil, qerrors.NewInvalid(
				fmt.Sprintf("device %s: program type %s cannot be rebased", profile.ID, pt), nil).
				WithCode(qerrors.ErrCodeUnsupportedFeature)
		}
	}

	d := &Device{
		profile:     profile,
		programType: pt,
		target:      target,
		transpiler:  tr,
		backend:     backend,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With().Str("component", "device").Str("device", profile.ID).Logger()
	if d.compiler == nil {
		d.compiler = compiler.New(
			compiler.WithLogger(d.logger),
			compiler.WithMetrics(d.metrics),
			compiler.WithTracer(d.tracer),
		)
	}
	return d, nil
}

// targetFor builds the compilation target of a profile. A single basis
// entry naming a known target ("ibm", "ionq", ...) selects its gate set.
func targetFor(p config.DeviceProfile) (compiler.Target, error) {
	t := compiler.Target{
		Name:                  p.ID,
		MaxQubits:             p.NumQubits,
		AllowMidMeasure:       p.AllowMidMeasure,
		AllowClassicalControl: p.AllowClassicalControl,
	}
	switch len(p.BasisGates) {
	case 0:
		return t, nil
	case 1:
		if named, ok := compiler.LookupTarget(p.BasisGates[0]); ok {
			t.GateSet = named.GateSet
			return t, nil
		}
	}
	t.GateSet = circuit.NewGateSet(p.BasisGates...)
	for _, g := range t.GateSet.Names() {
		if _, ok := circuit.Lookup(g); !ok {
			return compiler.Target{}, fmt.Errorf("unknown basis gate %q", g)
		}
	}
	return t, nil
}

// ID returns the device id.
func (d *Device) ID() string { return d.profile.ID }

// Profile returns the device profile.
func (d *Device) Profile() config.DeviceProfile { return d.profile }

// ProgramType returns the program type the device runs.
func (d *Device) ProgramType() programs.ProgramType { return d.programType }

// Target returns the compilation target built from the profile.
func (d *Device) Target() compiler.Target { return d.target }

// Validate checks that program is already of the device's program type.
func (d *Device) Validate(program any) error {
	actual, err := d.transpiler.Catalog().TypeOf(program)
	if err != nil {
		return err
	}
	if actual != d.programType {
		return &DeviceProgramTypeMismatchError{DeviceID: d.profile.ID, Expected: d.programType, Actual: actual}
	}
	return nil
}

// Transformed is a program prepared for the device.
type Transformed struct {
	// Program is of the device's program type.
	Program any

	// Source is the type of the program before transformation.
	Source programs.ProgramType

	// Path is the conversion path taken; empty for identity.
	Path transpiler.Path

	// Rebased reports whether the program was rewritten into the basis.
	Rebased bool
}

// Transform converts program to the device's program type and rewrites it
// into the device's basis gates. Width and measurement constraints of the
// profile are checked even without basis gates.
func (d *Device) Transform(ctx context.Context, program any) (*Transformed, error) {
	catalog := d.transpiler.Catalog()
	source, err := catalog.TypeOf(program)
	if err != nil {
		return nil, err
	}

	res, err := d.transpiler.TranspileWithResult(ctx, program, d.programType)
	if err != nil {
		return nil, err
	}
	out := &Transformed{Program: res.Program, Source: source, Path: res.Path}

	if len(d.target.GateSet) == 0 {
		if err := d.checkConstraints(res.Program); err != nil {
			return nil, err
		}
		return out, nil
	}

	circ, err := catalog.ToCircuit(res.Program)
	if err != nil {
		return nil, fmt.Errorf("device %s: lower to circuit: %w", d.profile.ID, err)
	}
	rebased, err := d.compiler.Rebase(ctx, circ, d.target)
	if err != nil {
		return nil, err
	}
	prog, err := catalog.FromCircuit(d.programType, rebased)
	if err != nil {
		return nil, fmt.Errorf("device %s: build %s program: %w", d.profile.ID, d.programType, err)
	}
	out.Program = prog
	out.Rebased = true
	return out, nil
}

// checkConstraints verifies the profile's width and measurement limits on
// programs that can be lowered to a circuit.
func (d *Device) checkConstraints(program any) error {
	spec, _ := d.transpiler.Catalog().Lookup(d.programType)
	if spec.ToCircuit == nil {
		return nil
	}
	circ, err := spec.ToCircuit(program)
	if err != nil {
		return fmt.Errorf("device %s: lower to circuit: %w", d.profile.ID, err)
	}
	for _, p := range compiler.Predicates(d.target) {
		if p.Name() == compiler.GateSetPredicate {
			continue
		}
		if detail := p.Verify(circ); detail != "" {
			return &compiler.CompilationError{Target: d.target.Name, Predicate: p.Name(), Detail: detail}
		}
	}
	return nil
}

// SubmitOption configures a Submit call.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	transpile bool
	metadata  map[string]interface{}
}

// WithoutTranspile submits the program as is. It must already be of the
// device's program type.
func WithoutTranspile() SubmitOption {
	return func(o *submitOptions) {
		o.transpile = false
	}
}

// WithMetadata attaches metadata to the recorded job.
func WithMetadata(md map[string]interface{}) SubmitOption {
	return func(o *submitOptions) {
		o.metadata = md
	}
}

// Submit prepares program and hands it to the backend. The returned job
// reflects the backend's outcome; backend failures are recorded on the job
// and returned as errors.
func (d *Device) Submit(ctx context.Context, program any, shots int, opts ...SubmitOption) (*stores.Job, error) {
	o := submitOptions{transpile: true}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := d.tracer.StartDeviceSpan(ctx, d.profile.ID, "submit")
	defer span.End()

	job, err := d.submit(ctx, program, shots, o)
	if err != nil {
		telemetry.RecordError(span, err)
		d.metrics.RecordJobSubmitted(d.profile.ID, "failure")
		d.metrics.RecordError(string(qerrors.ClassOf(err)), qerrors.CodeOf(err))
		return job, err
	}

	span.SetAttributes(telemetry.AttrJobID.String(job.ID), attribute.String("job.status", string(job.Status)))
	telemetry.RecordSuccess(span)
	return job, nil
}

func (d *Device) submit(ctx context.Context, program any, shots int, o submitOptions) (*stores.Job, error) {
	if shots <= 0 {
		return nil, qerrors.NewInvalid(fmt.Sprintf("shots must be positive, got %d", shots), nil).
			WithCode(qerrors.ErrCodeValidation)
	}
	if d.profile.MaxShots > 0 && shots > d.profile.MaxShots {
		return nil, qerrors.NewInvalid(
			fmt.Sprintf("device %s accepts at most %d shots, got %d", d.profile.ID, d.profile.MaxShots, shots), nil).
			WithCode(qerrors.ErrCodeValidation)
	}

	catalog := d.transpiler.Catalog()
	var prepared *Transformed
	if o.transpile {
		var err error
		if prepared, err = d.Transform(ctx, program); err != nil {
			return nil, err
		}
	} else {
		if err := d.Validate(program); err != nil {
			return nil, err
		}
		prepared = &Transformed{Program: program, Source: d.programType}
	}

	data, _, err := catalog.Encode(prepared.Program)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", d.profile.ID, err)
	}

	metadata := "{}"
	if len(o.metadata) > 0 {
		raw, err := json.Marshal(o.metadata)
		if err != nil {
			return nil, qerrors.NewInvalid("job metadata is not JSON serializable", err)
		}
		metadata = string(raw)
	}

	job := &stores.Job{
		DeviceID:    d.profile.ID,
		ProgramType: string(d.programType),
		SourceType:  string(prepared.Source),
		Program:     string(data),
		Shots:       shots,
		Status:      stores.JobStatusInitializing,
		Metadata:    metadata,
	}
	if !prepared.Path.IsIdentity() {
		job.Conversion = prepared.Path.String()
	}
	if err := d.createJob(ctx, job); err != nil {
		return nil, err
	}
	d.appendEvent(ctx, job.ID, stores.EventLevelInfo, "job created", map[string]interface{}{
		"source_type": job.SourceType,
		"conversion":  job.Conversion,
		"rebased":     prepared.Rebased,
	})

	outcome, err := d.backend.Submit(ctx, Request{
		JobID:       job.ID,
		DeviceID:    d.profile.ID,
		ProgramType: d.programType,
		Program:     data,
		Shots:       shots,
	})
	if err != nil {
		msg := err.Error()
		d.finish(ctx, job, stores.JobStatusFailed, nil, &msg)
		return job, qerrors.NewPermanent(fmt.Sprintf("device %s rejected job %s", d.profile.ID, job.ID), err).
			WithOperation("submit")
	}

	d.metrics.RecordJobSubmitted(d.profile.ID, "success")
	_ = d.events.PublishJobSubmitted(job.ID, d.profile.ID, job.ProgramType, shots)
	d.logger.Info().
		Str("job_id", job.ID).
		Str("source", job.SourceType).
		Str("conversion", job.Conversion).
		Int("shots", shots).
		Msg("Job submitted")

	status := outcome.Status
	if status == "" {
		status = stores.JobStatusQueued
	}
	var result, errMsg *string
	if outcome.Result != "" {
		result = &outcome.Result
	}
	if outcome.Error != "" {
		errMsg = &outcome.Error
	}
	d.finish(ctx, job, status, result, errMsg)
	if status.Terminal() {
		d.metrics.RecordJobFinished()
	}
	return job, nil
}

// createJob persists the job, or assigns an id when no store is set.
func (d *Device) createJob(ctx context.Context, job *stores.Job) error {
	if d.store == nil {
		job.ID = newJobID()
		return nil
	}
	if err := d.store.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("device %s: record job: %w", d.profile.ID, err)
	}
	return nil
}

func newJobID() string {
	return uuid.New().String()
}

// finish moves the job to status and records it.
func (d *Device) finish(ctx context.Context, job *stores.Job, status stores.JobStatus, result, errMsg *string) {
	job.Status = status
	if result != nil {
		job.Result = result
	}
	if errMsg != nil {
		job.Error = errMsg
	}

	if d.store != nil {
		if err := d.store.UpdateJobStatus(ctx, job.ID, status, result, errMsg); err != nil {
			d.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to update job status")
		} else if updated, err := d.store.GetJob(ctx, job.ID); err == nil {
			*job = *updated
		}
	}

	level := stores.EventLevelInfo
	if status == stores.JobStatusFailed {
		level = stores.EventLevelError
	}
	d.appendEvent(ctx, job.ID, level, "job "+string(status), nil)

	if status.Terminal() {
		reason := ""
		if errMsg != nil {
			reason = *errMsg
		}
		_ = d.events.PublishJobStatus(job.ID, d.profile.ID, string(status), reason)
	}
}

func (d *Device) appendEvent(ctx context.Context, jobID string, level stores.EventLevel, msg string, details map[string]interface{}) {
	if d.store == nil {
		return
	}
	event := &stores.JobEvent{JobID: jobID, Level: level, Message: msg}
	if len(details) > 0 {
		if raw, err := json.Marshal(details); err == nil {
			s := string(raw)
			event.Details = &s
		}
	}
	if err := d.store.AppendJobEvent(ctx, event); err != nil {
		d.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to append job event")
	}
}

// Job returns a recorded job.
func (d *Device) Job(ctx context.Context, id string) (*stores.Job, error) {
	if d.store == nil {
		return nil, fmt.Errorf("device %s: no job store configured", d.profile.ID)
	}
	job, err := d.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.DeviceID != d.profile.ID {
		return nil, fmt.Errorf("job %s: %w", id, stores.ErrNotFound)
	}
	return job, nil
}
