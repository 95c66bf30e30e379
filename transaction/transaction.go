// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package transaction validates and processes ordered lists of install and uninstall actions
// against a package store.
//
// A transaction is not all-or-nothing across its action list. Actions are processed in order and
// processing stops at the first failure, actions that completed before it stay committed and later
// ones are not attempted. Each individual action is atomic from the store's perspective.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/ksuid"

	"github.com/choria-io/pkgstore/metrics"
	"github.com/choria-io/pkgstore/model"
)

// State is the lifecycle state of a transaction
type State int

const (
	StateCreated State = iota
	StateValidated
	StateProcessing
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateValidated:
		return "validated"
	case StateProcessing:
		return "processing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

const progressInterval = 100 * time.Millisecond

// Transaction is a validated, frozen list of actions for one store
type Transaction struct {
	id       string
	tag      uint32
	store    model.PackageStore
	actions  []model.PackageAction
	statuses []model.PackageStatus
	session  model.SessionStore
	log      model.Logger
	state    State
	failed   *ActionError

	mu sync.Mutex
}

// Option configures a transaction
type Option func(*Transaction)

// WithSession records every event into the session journal
func WithSession(session model.SessionStore) Option {
	return func(t *Transaction) {
		t.session = session
	}
}

// WithLogger sets the logger used for diagnostics
func WithLogger(log model.Logger) Option {
	return func(t *Transaction) {
		t.log = log
	}
}

// WithTag sets the correlation tag carried on every event
func WithTag(tag uint32) Option {
	return func(t *Transaction) {
		t.tag = tag
	}
}

// New validates actions against the current state of store and freezes them into a transaction.
//
// Validation only queries statuses, no payload is downloaded and no installer is run when it fails
func New(ctx context.Context, store model.PackageStore, actions []model.PackageAction, opts ...Option) (*Transaction, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", model.ErrTransactionInvalid)
	}

	t := &Transaction{
		id:      ksuid.New().String(),
		store:   store,
		actions: slices.Clone(actions),
		state:   StateCreated,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.log == nil {
		t.log = discardLogger{}
	}
	t.log = t.log.With("transaction", t.id)

	err := t.validate(ctx)
	if err != nil {
		metrics.TransactionRejectedCount.WithLabelValues(store.Name()).Inc()
		t.log.Debug("Rejected transaction", "error", err)
		return nil, err
	}

	t.state = StateValidated

	return t, nil
}

func (t *Transaction) validate(ctx context.Context) error {
	if len(t.actions) == 0 {
		return &TransactionError{Index: -1, Reason: "no actions"}
	}

	type pair struct {
		key    model.PackageKey
		target model.InstallTarget
	}

	var defaultTarget model.InstallTarget
	if targets := t.store.Targets(); len(targets) > 0 {
		defaultTarget = targets[0]
	}

	seen := map[pair]int{}
	for i, action := range t.actions {
		err := action.Validate()
		if err != nil {
			return &TransactionError{Index: i, Action: action, Reason: "malformed action", Err: err}
		}

		p := pair{key: action.Key, target: action.Target}
		if p.target == model.TargetDefault {
			p.target = defaultTarget
		}

		prev, ok := seen[p]
		if ok {
			if t.actions[prev].Action == action.Action {
				return &TransactionError{Index: i, Action: action, Reason: fmt.Sprintf("duplicates action %d", prev)}
			}
			return &TransactionError{Index: i, Action: action, Reason: fmt.Sprintf("conflicts with action %d", prev)}
		}
		seen[p] = i
	}

	t.statuses = make([]model.PackageStatus, len(t.actions))
	for i, action := range t.actions {
		status, err := t.store.Status(ctx, action.Key, action.Target)
		if err != nil {
			return &TransactionError{Index: i, Action: action, Reason: "status query failed", Err: err}
		}

		t.statuses[i] = status

		switch action.Action {
		case model.ActionInstall:
			switch {
			case status == model.StatusUpToDate:
				return &TransactionError{Index: i, Action: action, Status: status, Reason: "already up to date"}
			case status.IsError():
				return &TransactionError{Index: i, Action: action, Status: status, Reason: fmt.Sprintf("can not be installed: %s", status)}
			}

		case model.ActionUninstall:
			if status == model.StatusNotInstalled {
				return &TransactionError{Index: i, Action: action, Status: status, Reason: "not installed"}
			}
		}
	}

	return nil
}

// ID is the unique transaction id
func (t *Transaction) ID() string {
	return t.id
}

// Tag is the correlation tag carried on events
func (t *Transaction) Tag() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.tag
}

// SetTag replaces the correlation tag, it can only be changed before processing starts
func (t *Transaction) SetTag(tag uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateValidated {
		return model.ErrTransactionProcessed
	}

	t.tag = tag

	return nil
}

// Store is the store actions are processed against
func (t *Transaction) Store() model.PackageStore {
	return t.store
}

// Actions is a copy of the frozen action list
func (t *Transaction) Actions() []model.PackageAction {
	return slices.Clone(t.actions)
}

// Statuses are the statuses observed while validating, in action order
func (t *Transaction) Statuses() []model.PackageStatus {
	return slices.Clone(t.statuses)
}

// State is the current lifecycle state
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

// Failure is the error that stopped processing, nil unless the transaction failed
func (t *Transaction) Failure() *ActionError {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.failed
}

// Process runs every action in order on the calling goroutine and sends events to events.
//
// Processing stops at the first failing action and returns an *ActionError. The events channel,
// when not nil, is closed before Process returns and must be drained by the caller. A transaction
// can only be processed once.
func (t *Transaction) Process(ctx context.Context, events chan<- model.TransactionEvent) error {
	if events != nil {
		defer close(events)
	}

	t.mu.Lock()
	if t.state != StateValidated {
		t.mu.Unlock()
		return model.ErrTransactionProcessed
	}
	t.state = StateProcessing
	tag := t.tag
	t.mu.Unlock()

	timer := prometheus.NewTimer(metrics.TransactionTime.WithLabelValues(t.store.Name()))
	defer timer.ObserveDuration()

	if t.session != nil {
		err := t.session.StartSession(t.id, t.Actions())
		if err != nil {
			t.log.Warn("Could not start session", "error", err)
		}
	}

	emit := func(event *model.TransactionEvent) {
		event.Tag = tag
		event.Store = t.store.Name()

		metrics.RecordTransactionEvent(event)

		if t.session != nil && (event.Code != model.EventDownloadProgress || (event.Total > 0 && event.Downloaded == event.Total)) {
			err := t.session.RecordEvent(event)
			if err != nil {
				t.log.Warn("Could not record event", "event", event.String(), "error", err)
			}
		}

		if events != nil {
			events <- *event
		}
	}

	t.log.Info("Processing transaction", "actions", len(t.actions), "store", t.store.Name())

	for i, action := range t.actions {
		err := t.processAction(ctx, i, action, emit)
		if err != nil {
			t.mu.Lock()
			t.state = StateFailed
			t.failed = err
			t.mu.Unlock()

			t.log.Error("Transaction failed", "action", i, "key", action.Key.String(), "stage", err.Kind, "error", err.Err)

			return err
		}
	}

	t.mu.Lock()
	t.state = StateCompleted
	t.mu.Unlock()

	return nil
}

func (t *Transaction) processAction(ctx context.Context, index int, action model.PackageAction, emit func(*model.TransactionEvent)) *ActionError {
	start := time.Now()
	log := t.log.With("key", action.Key.String(), "action", action.Action)

	fail := func(kind model.ErrorKind, version string, err error) *ActionError {
		event := model.NewTransactionEvent(t.id, action, model.EventError)
		event.Version = version
		event.ErrorKind = kind
		event.Error = err.Error()
		event.Duration = time.Since(start)
		emit(event)

		return &ActionError{Index: index, Action: action, Kind: kind, Err: err}
	}

	// installers and uninstallers are never interrupted once started
	runCtx := context.WithoutCancel(ctx)

	switch action.Action {
	case model.ActionUninstall:
		emit(model.NewTransactionEvent(t.id, action, model.EventUninstalling))

		log.Debug("Uninstalling")
		err := t.store.Uninstall(runCtx, action.Key, action.Target)
		if err != nil {
			return fail(model.ErrorKindUninstall, "", err)
		}

		event := model.NewTransactionEvent(t.id, action, model.EventCompleted)
		event.Duration = time.Since(start)
		emit(event)

		return nil

	case model.ActionInstall:
		res, err := t.store.Resolve(ctx, action.Key)
		if err != nil {
			return fail(model.ErrorKindDownload, "", err)
		}
		version := res.Version()

		path, cached := t.store.CachedPath(ctx, action.Key)
		if !cached {
			path, err = t.download(ctx, action, version, emit)
			if err != nil {
				return fail(model.ErrorKindDownload, version, err)
			}
		}

		installing := model.NewTransactionEvent(t.id, action, model.EventInstalling)
		installing.Version = version
		emit(installing)

		// stores run the verification check before committing the receipt
		installCtx := model.WithVerifyHook(runCtx, func() {
			verifying := model.NewTransactionEvent(t.id, action, model.EventVerifying)
			verifying.Version = version
			emit(verifying)
		})

		log.Debug("Installing", "version", version, "payload", path)
		receipt, err := t.store.Install(installCtx, action.Key, action.Target, path)
		switch {
		case errors.Is(err, model.ErrVerificationFailed):
			return fail(model.ErrorKindVerify, version, err)
		case err != nil:
			return fail(model.ErrorKindInstall, version, err)
		}
		if receipt != nil && receipt.Version != "" {
			version = receipt.Version
		}

		event := model.NewTransactionEvent(t.id, action, model.EventCompleted)
		event.Version = version
		event.Duration = time.Since(start)
		emit(event)

		return nil

	default:
		return fail(model.ErrorKindInstall, "", fmt.Errorf("%w: unknown action %q", model.ErrInvalidAction, action.Action))
	}
}

func (t *Transaction) download(ctx context.Context, action model.PackageAction, version string, emit func(*model.TransactionEvent)) (string, error) {
	downloading := model.NewTransactionEvent(t.id, action, model.EventDownloading)
	downloading.Version = version
	emit(downloading)

	var last time.Time

	return t.store.Download(ctx, action.Key, func(current uint64, total uint64) bool {
		if ctx.Err() != nil {
			return false
		}

		if current != 0 && current != total && time.Since(last) < progressInterval {
			return true
		}
		last = time.Now()

		progress := model.NewTransactionEvent(t.id, action, model.EventDownloadProgress)
		progress.Version = version
		progress.Downloaded = current
		progress.Total = total
		emit(progress)

		return true
	})
}

// TransactionError rejects an action list before anything was processed
type TransactionError struct {
	// Index is the offending action, -1 when the list as a whole is invalid
	Index  int
	Action model.PackageAction
	Status model.PackageStatus
	Reason string
	Err    error
}

func (e *TransactionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%v: %s", model.ErrTransactionInvalid, e.Reason)
	}

	if e.Err != nil {
		return fmt.Sprintf("%v: action %d %s: %s: %v", model.ErrTransactionInvalid, e.Index, e.Action, e.Reason, e.Err)
	}

	return fmt.Sprintf("%v: action %d %s: %s", model.ErrTransactionInvalid, e.Index, e.Action, e.Reason)
}

func (e *TransactionError) Unwrap() []error {
	if e.Err == nil {
		return []error{model.ErrTransactionInvalid}
	}

	return []error{model.ErrTransactionInvalid, e.Err}
}

// Key is the package of the offending action
func (e *TransactionError) Key() model.PackageKey {
	return e.Action.Key
}

// ActionError reports the action that stopped processing and the stage it failed in
type ActionError struct {
	Index  int
	Action model.PackageAction
	Kind   model.ErrorKind
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d %s failed during %s: %v", e.Index, e.Action, e.Kind, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Key is the package of the failed action
func (e *ActionError) Key() model.PackageKey {
	return e.Action.Key
}

// IsRejected is true when err is a validation failure of New
func IsRejected(err error) bool {
	var te *TransactionError
	return errors.As(err, &te)
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any) {}
func (discardLogger) Warn(string, ...any) {}
func (discardLogger) Error(string, ...any) {}
func (d discardLogger) With(...any) model.Logger { return d }
