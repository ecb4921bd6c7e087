// Package orchestrator owns the per-session UI state machine: it turns user
// intents into backend requests and folds their outcomes into a Session.
//
// Every request is tagged with a per-action sequence number. A response whose
// tag is no longer current is discarded with ErrSuperseded, so a slow preview
// for an old file can never overwrite the state of a newer one.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/leapstack-labs/leaptext/internal/backend"
	"github.com/leapstack-labs/leaptext/internal/notifier"
)

// Backend is the subset of the backend client the orchestrator drives.
type Backend interface {
	Process(ctx context.Context, req backend.SingleRequest) (backend.SingleResult, error)
	Preview(ctx context.Context, req backend.PreviewRequest) (backend.PreviewResult, error)
	Batch(ctx context.Context, req backend.BatchRequest) (backend.BatchOutcome, error)
}

// Defaults for Config.
const (
	DefaultColumn  = "text"
	DefaultTimeout = 30 * time.Second
)

// Config configures an Orchestrator.
type Config struct {
	Backend Backend
	Logger  *slog.Logger

	// MaxFileSize bounds uploads. Zero means DefaultMaxFileSize, negative disables.
	MaxFileSize int
	// AutoColumn is selected automatically when a preview lists it.
	AutoColumn string
	// DefaultColumn is submitted when no target column is set.
	DefaultColumn string
	// Timeout bounds each backend request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Orchestrator holds one session. All methods are safe for concurrent use.
type Orchestrator struct {
	backend       Backend
	logger        *slog.Logger
	notify        *notifier.Notifier
	maxFileSize   int
	autoColumn    string
	defaultColumn string
	timeout       time.Duration

	mu      sync.Mutex
	state   Session
	seq     [numActions]uint64
	cancels [numActions]context.CancelFunc
}

// New creates an Orchestrator in the Idle phase.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		backend:       cfg.Backend,
		logger:        cfg.Logger,
		notify:        notifier.New(),
		maxFileSize:   cfg.MaxFileSize,
		autoColumn:    cfg.AutoColumn,
		defaultColumn: cfg.DefaultColumn,
		timeout:       cfg.Timeout,
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.maxFileSize == 0 {
		o.maxFileSize = DefaultMaxFileSize
	}
	if o.autoColumn == "" {
		o.autoColumn = DefaultColumn
	}
	if o.defaultColumn == "" {
		o.defaultColumn = DefaultColumn
	}
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}
	return o
}

// Snapshot returns a copy of the current session.
func (o *Orchestrator) Snapshot() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// Subscribe returns a channel pinged after every state change.
func (o *Orchestrator) Subscribe() chan struct{} {
	return o.notify.Subscribe()
}

// Unsubscribe releases a channel obtained from Subscribe.
func (o *Orchestrator) Unsubscribe(ch chan struct{}) {
	o.notify.Unsubscribe(ch)
}

// SubmitSingle sends one text for processing with backend defaults.
func (o *Orchestrator) SubmitSingle(ctx context.Context, text string) error {
	return o.SubmitSingleRequest(ctx, backend.SingleRequest{Text: text})
}

// SubmitSingleRequest sends one text with optional query and threshold.
// Only one single submission may be in flight.
func (o *Orchestrator) SubmitSingleRequest(ctx context.Context, req backend.SingleRequest) error {
	o.mu.Lock()
	if o.state.busy[ActionSingle] {
		o.mu.Unlock()
		return ErrInFlight
	}
	ctx, seq, release := o.beginLocked(ctx, ActionSingle)
	o.state.Phase = SingleLoading
	o.state.Single = SingleInfo{}
	o.mu.Unlock()
	o.notify.Broadcast()
	defer release()

	res, err := o.backend.Process(ctx, req)

	o.mu.Lock()
	if !o.endLocked(ActionSingle, seq) {
		o.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		o.failLocked(err)
	} else {
		o.state.Phase = SingleReady
		o.state.Single = SingleInfo{Result: res.Text, Input: res.Input}
	}
	o.mu.Unlock()
	o.notify.Broadcast()

	if err != nil {
		o.logger.Debug("single submission failed", "error", err)
	}
	return err
}

// SelectFile validates file, replaces the session's file and requests a
// preview. Any preview or batch for a previous file is abandoned.
//
// A rejected file only records LastError: the phase, the previous file and
// its in-flight requests are left as they were.
func (o *Orchestrator) SelectFile(ctx context.Context, file backend.File) error {
	if err := ValidateFile(file, o.maxFileSize); err != nil {
		o.mu.Lock()
		o.state.LastError = failureOf(err)
		o.mu.Unlock()
		o.notify.Broadcast()
		return err
	}

	o.mu.Lock()
	o.invalidateLocked(ActionBatch)
	ctx, seq, release := o.beginLocked(ctx, ActionPreview)
	o.state.File = &file
	o.state.Columns = nil
	o.state.TargetColumn = ""
	o.state.Preview = PreviewInfo{}
	o.state.Batch = BatchInfo{}
	o.state.needsColumn = false
	o.state.ColumnNotice = ""
	o.state.Phase = PreviewLoading
	o.mu.Unlock()
	o.notify.Broadcast()
	defer release()

	o.logger.Debug("requesting preview", "file", file.Name, "size", file.Size())
	res, err := o.backend.Preview(ctx, backend.PreviewRequest{File: file})

	o.mu.Lock()
	if !o.endLocked(ActionPreview, seq) {
		o.mu.Unlock()
		o.logger.Debug("discarding stale preview", "file", file.Name)
		return ErrSuperseded
	}
	if err != nil {
		o.failLocked(err)
	} else {
		o.state.Phase = PreviewReady
		o.state.Columns = slices.Clone(res.Columns)
		o.state.Preview = PreviewInfo{Rows: res.Rows, Sample: res.RenderedSample, Loaded: true}
		if res.HasColumn(o.autoColumn) {
			o.state.TargetColumn = o.autoColumn
		}
	}
	o.mu.Unlock()
	o.notify.Broadcast()
	return err
}

// ChooseColumn sets the target column locally. When the session is waiting
// for a column and name is available, the session returns to PreviewReady.
func (o *Orchestrator) ChooseColumn(name string) {
	o.mu.Lock()
	o.state.TargetColumn = name
	if o.state.Phase == ColumnSelectionNeeded && o.state.HasColumn(name) {
		o.state.Phase = PreviewReady
		o.state.needsColumn = false
		o.state.ColumnNotice = ""
	}
	o.mu.Unlock()
	o.notify.Broadcast()
}

// ResolveColumn chooses name and immediately resubmits the batch.
func (o *Orchestrator) ResolveColumn(ctx context.Context, name string) error {
	o.ChooseColumn(name)
	return o.SubmitBatch(ctx)
}

// SubmitBatch processes the selected file using the target column, or the
// default column when none is set. A column-not-found outcome with a
// non-empty column list moves the session to ColumnSelectionNeeded and is
// not reported as an error.
//
// It returns ErrInFlight while a batch or the file's preview is running.
func (o *Orchestrator) SubmitBatch(ctx context.Context) error {
	o.mu.Lock()
	if o.state.File == nil {
		o.mu.Unlock()
		return ErrNoFile
	}
	if o.state.busy[ActionBatch] || o.state.busy[ActionPreview] {
		o.mu.Unlock()
		return ErrInFlight
	}
	file := *o.state.File
	column := o.state.TargetColumn
	if column == "" {
		column = o.defaultColumn
	}
	ctx, seq, release := o.beginLocked(ctx, ActionBatch)
	o.state.Phase = BatchLoading
	o.state.Batch = BatchInfo{}
	o.state.needsColumn = false
	o.state.ColumnNotice = ""
	o.mu.Unlock()
	o.notify.Broadcast()
	defer release()

	o.logger.Debug("submitting batch", "file", file.Name, "column", column)
	outcome, err := o.backend.Batch(ctx, backend.BatchRequest{File: file, Column: column})

	o.mu.Lock()
	if !o.endLocked(ActionBatch, seq) {
		o.mu.Unlock()
		o.logger.Debug("discarding stale batch", "file", file.Name)
		return ErrSuperseded
	}
	if err == nil {
		err = o.applyOutcomeLocked(outcome, column)
	}
	if err != nil {
		o.failLocked(err)
	}
	o.mu.Unlock()
	o.notify.Broadcast()
	return err
}

func (o *Orchestrator) applyOutcomeLocked(outcome backend.BatchOutcome, column string) error {
	switch out := outcome.(type) {
	case backend.BatchSuccess:
		o.state.Phase = BatchReady
		o.state.Batch = BatchInfo{RowsProcessed: out.RowsProcessed, DownloadRef: out.DownloadRef}
		return nil
	case backend.ColumnNotFound:
		if len(out.AvailableColumns) == 0 {
			msg := out.Message
			if msg == "" {
				msg = fmt.Sprintf("column %q not found", column)
			}
			return &backend.BackendError{Op: backend.OpBatch, Message: msg}
		}
		o.state.Columns = slices.Clone(out.AvailableColumns)
		if o.state.TargetColumn != "" && o.state.HasColumn(o.state.TargetColumn) {
			// The backend rejected a column it also lists; force a new choice.
			o.state.TargetColumn = ""
		}
		o.state.Phase = ColumnSelectionNeeded
		o.state.needsColumn = true
		o.state.ColumnNotice = out.Message
		o.logger.Info("batch column not found", "column", column, "available", out.AvailableColumns)
		return nil
	default:
		return &backend.BackendError{Op: backend.OpBatch, Message: fmt.Sprintf("unrecognized batch outcome %T", outcome), Contract: true}
	}
}

// Reset abandons all in-flight requests and returns to an empty Idle session.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	for a := range numActions {
		o.invalidateLocked(a)
	}
	o.state = Session{}
	o.mu.Unlock()
	o.notify.Broadcast()
}

// Close abandons in-flight requests and closes all subscriptions.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	for a := range numActions {
		o.invalidateLocked(a)
	}
	o.mu.Unlock()
	o.notify.Close()
}

// beginLocked starts a request of kind a, cancelling any request of the
// same kind. The returned release func must be called when the call returns.
func (o *Orchestrator) beginLocked(parent context.Context, a Action) (context.Context, uint64, context.CancelFunc) {
	o.invalidateLocked(a)
	ctx, cancel := context.WithTimeout(parent, o.timeout)
	o.seq[a]++
	o.cancels[a] = cancel
	o.state.busy[a] = true
	o.state.LastError = nil
	return ctx, o.seq[a], cancel
}

// endLocked reports whether seq is still current for a and clears busy if so.
func (o *Orchestrator) endLocked(a Action, seq uint64) bool {
	if o.seq[a] != seq {
		return false
	}
	o.state.busy[a] = false
	o.cancels[a] = nil
	return true
}

func (o *Orchestrator) invalidateLocked(a Action) {
	if o.cancels[a] != nil {
		o.cancels[a]()
		o.cancels[a] = nil
	}
	if o.state.busy[a] {
		o.seq[a]++
		o.state.busy[a] = false
	}
}

func (o *Orchestrator) failLocked(err error) {
	o.state.Phase = Idle
	o.state.LastError = failureOf(err)
	if errors.Is(err, context.DeadlineExceeded) {
		o.state.LastError.Message = fmt.Sprintf("request timed out after %s: %v", o.timeout, err)
	}
}
