// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package manager ties together facts, loggers, the backend registry and the session journal
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"path/filepath"
	"sync"
	"time"

	"github.com/choria-io/pkgstore/config"
	"github.com/choria-io/pkgstore/internal/cmdrunner"
	"github.com/choria-io/pkgstore/internal/facts"
	"github.com/choria-io/pkgstore/internal/registry"
	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/session"
	"github.com/choria-io/pkgstore/stores/apt"
	"github.com/choria-io/pkgstore/stores/dnf"
	"github.com/choria-io/pkgstore/stores/macos"
	"github.com/choria-io/pkgstore/stores/prefix"
	"github.com/choria-io/pkgstore/stores/windows"
	"github.com/choria-io/pkgstore/transaction"
)

var _ model.Manager = (*Manager)(nil)

var registerOnce sync.Once

// RegisterBackends registers every store backend compiled into the binary, calling it more than once is safe
func RegisterBackends() {
	registerOnce.Do(func() {
		prefix.Register()
		apt.Register()
		dnf.Register()
		macos.Register()
		windows.Register()
	})
}

// Manager gives access to stores for a process, resolving paths and facts once
type Manager struct {
	session    model.SessionStore
	log        model.Logger
	userLogger model.Logger
	paths      model.PathProvider
	factsDirs  []string
	facts      map[string]any
	runner     model.CommandRunner

	mu sync.Mutex
}

// NewManager creates a new Manager with the provided loggers
func NewManager(log model.Logger, userLogger model.Logger, opts ...Option) (*Manager, error) {
	RegisterBackends()

	mgr := &Manager{log: log, userLogger: userLogger}

	for _, opt := range opts {
		err := opt(mgr)
		if err != nil {
			return nil, err
		}
	}

	if mgr.paths == nil {
		mgr.paths = config.NewXDGPaths()
	}

	if mgr.factsDirs == nil {
		mgr.factsDirs = []string{mgr.paths.ConfigDir()}
	}

	if mgr.session == nil {
		sessionLog, err := mgr.Logger("session", "memory")
		if err != nil {
			return nil, err
		}

		mgr.session, err = session.NewMemorySessionStore(sessionLog)
		if err != nil {
			return nil, err
		}
	}

	return mgr, nil
}

// FactsRaw returns the system facts as JSON
func (m *Manager) FactsRaw(ctx context.Context) (json.RawMessage, error) {
	f, err := m.Facts(ctx)
	if err != nil {
		return nil, err
	}

	return json.Marshal(f)
}

// Facts gathers the system facts on first use and returns a copy of them
func (m *Manager) Facts(ctx context.Context) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.facts == nil {
		to, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		log, err := m.Logger("component", "facts")
		if err != nil {
			return nil, err
		}

		f, err := facts.StandardFacts(to, log, m.factsDirs...)
		if err != nil {
			return nil, err
		}

		m.facts = f
	}

	return maps.Clone(m.facts), nil
}

// Logger creates a new logger with the provided key-value pairs added to the context
func (m *Manager) Logger(args ...any) (model.Logger, error) {
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("invalid logger arguments, must be key value pairs")
	}

	return m.log.With(args...), nil
}

// UserLogger is the logger for output meant for the user
func (m *Manager) UserLogger() model.Logger {
	return m.userLogger
}

// NewRunner creates a new command runner instance
func (m *Manager) NewRunner() (model.CommandRunner, error) {
	if m.runner != nil {
		return m.runner, nil
	}

	log, err := m.Logger("component", "runner")
	if err != nil {
		return nil, err
	}

	return cmdrunner.NewCommandRunner(log)
}

// Paths are the default directories
func (m *Manager) Paths() model.PathProvider {
	return m.paths
}

// DefaultLocation is where a backend keeps its store when no location is given
func (m *Manager) DefaultLocation(backend string) string {
	return filepath.Join(m.paths.ConfigDir(), "stores", backend)
}

// OpenStore attaches to an existing store, an empty backend selects the most suitable one for the machine
func (m *Manager) OpenStore(ctx context.Context, backend string, location string) (model.PackageStore, error) {
	factory, opts, err := m.storeOptions(ctx, backend, location)
	if err != nil {
		return nil, err
	}

	opts.Logger.Debug("Opening store", "location", opts.Location)

	return factory.Open(ctx, opts)
}

// CreateStore initializes a new store, an empty backend selects the most suitable one for the machine
func (m *Manager) CreateStore(ctx context.Context, backend string, location string) (model.PackageStore, error) {
	factory, opts, err := m.storeOptions(ctx, backend, location)
	if err != nil {
		return nil, err
	}

	opts.Logger.Info("Creating store", "location", opts.Location)

	return factory.Create(ctx, opts)
}

// OpenOrCreateStore opens the store at location, creating it when it does not exist
func (m *Manager) OpenOrCreateStore(ctx context.Context, backend string, location string) (model.PackageStore, error) {
	factory, opts, err := m.storeOptions(ctx, backend, location)
	if err != nil {
		return nil, err
	}

	if config.Exists(opts.Location) {
		return factory.Open(ctx, opts)
	}

	opts.Logger.Info("Creating store", "location", opts.Location)

	return factory.Create(ctx, opts)
}

func (m *Manager) storeOptions(ctx context.Context, backend string, location string) (model.StoreFactory, model.StoreOptions, error) {
	f, err := m.Facts(ctx)
	if err != nil {
		return nil, model.StoreOptions{}, err
	}

	log, err := m.Logger("component", "registry")
	if err != nil {
		return nil, model.StoreOptions{}, err
	}

	factory, err := registry.FindSuitableBackend(backend, f, log)
	if err != nil {
		return nil, model.StoreOptions{}, err
	}

	if location == "" {
		location = m.DefaultLocation(factory.Name())
	}

	location, err = filepath.Abs(location)
	if err != nil {
		return nil, model.StoreOptions{}, err
	}

	runner, err := m.NewRunner()
	if err != nil {
		return nil, model.StoreOptions{}, err
	}

	storeLog, err := m.Logger("store", factory.Name())
	if err != nil {
		return nil, model.StoreOptions{}, err
	}

	return factory, model.StoreOptions{
		Location: location,
		Paths:    m.paths,
		Logger:   storeLog,
		Runner:   runner,
		Facts:    f,
	}, nil
}

// NewTransaction validates actions against store and records its events into the session
func (m *Manager) NewTransaction(ctx context.Context, store model.PackageStore, actions []model.PackageAction, tag uint32) (*transaction.Transaction, error) {
	log, err := m.Logger("component", "transaction")
	if err != nil {
		return nil, err
	}

	return transaction.New(ctx, store, actions, transaction.WithLogger(log), transaction.WithSession(m.Session()), transaction.WithTag(tag))
}

// Session is the session journal events are recorded in
func (m *Manager) Session() model.SessionStore {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.session
}

// RecordEvent records an event into the session journal
func (m *Manager) RecordEvent(event model.SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return fmt.Errorf("no session store available")
	}

	return m.session.RecordEvent(event)
}
