// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package agent serves a package store over NATS request-reply
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/choria-io/pkgstore/boundary"
	"github.com/choria-io/pkgstore/internal/backoff"
	"github.com/choria-io/pkgstore/manager"
	"github.com/choria-io/pkgstore/metrics"
	"github.com/choria-io/pkgstore/model"
)

const (
	DefaultRefreshInterval = 15 * time.Minute
	MinRefreshInterval     = 30 * time.Second
	DefaultSubjectPrefix   = "choria.pkgstore"
	refreshTries           = 5
)

// Agent serves one store over NATS
type Agent struct {
	mgr     *manager.Manager
	adapter *boundary.Adapter
	session model.SessionStore
	store   boundary.Handle
	cfg     *Config
	log     model.Logger
	nats    natsProvider
	nc      *nats.Conn
	publish func(subject string, data []byte) error
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	rwg    sync.WaitGroup

	mu sync.Mutex
}

// New creates a new agent
func New(cfg *Config, opts ...Option) (*Agent, error) {
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}

	var mopts []manager.Option
	if cfg.HistoryDir != "" {
		mopts = append(mopts, manager.WithSessionDirectory(cfg.HistoryDir))
	}

	mgr, err := manager.NewManager(logger, logger, mopts...)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		mgr:     mgr,
		adapter: boundary.New(mgr, logger.With("component", "boundary")),
		session: mgr.Session(),
		log:     logger,
		cfg:     cfg,
		nats:    &cachingNatsProvider{},
	}

	for _, opt := range opts {
		err := opt(a)
		if err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Run opens the store, serves requests and refreshes repositories until ctx is cancelled
func (a *Agent) Run(ctx context.Context, wg *sync.WaitGroup) error {
	defer wg.Done()

	a.log.Warn("Starting agent", "backend", a.cfg.Backend, "location", a.cfg.Location, "subjects", a.cfg.SubjectPrefix, "refresh", a.cfg.refreshIntervalDuration)

	if a.cfg.MonitorPort > 0 {
		metrics.ListenAndServe(a.cfg.MonitorPort, a.log)
	}

	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("already started")
	}

	a.ctx, a.cancel = context.WithCancel(ctx)
	defer a.cancel()

	store, err := a.mgr.OpenOrCreateStore(a.ctx, a.cfg.Backend, a.cfg.Location)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.store = a.adapter.AddStore(store)
	a.log.Info("Serving store", "backend", store.Name(), "location", store.Location())

	a.nc, err = a.nats.Connect(a.cfg.NatsContext, nats.Name("pkgstore agent"), nats.MaxReconnects(-1))
	if err != nil {
		a.adapter.Release(a.store)
		a.mu.Unlock()
		return err
	}
	a.publish = a.nc.Publish

	sub, err := a.nc.Subscribe(a.cfg.SubjectPrefix+".*", a.handleMsg)
	if err != nil {
		a.adapter.Release(a.store)
		a.mu.Unlock()
		return err
	}

	a.started = true
	a.mu.Unlock()

	a.refresh(false)

	ticker := time.NewTicker(a.cfg.refreshIntervalDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.refresh(false)

		case <-a.ctx.Done():
			err = sub.Drain()
			if err != nil {
				a.log.Error("Could not drain subscription", "error", err)
			}

			// in flight transactions run to completion
			a.rwg.Wait()

			err = a.adapter.Release(a.store)
			if err != nil {
				a.log.Error("Could not close store", "error", err)
			}

			a.nc.Close()

			a.mu.Lock()
			a.started = false
			a.mu.Unlock()

			a.log.Warn("Agent stopped")

			return nil
		}
	}
}

// Stop cancels a running agent
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		a.cancel()
	}
}

func (a *Agent) refresh(force bool) {
	err := backoff.Default.Retry(a.ctx, refreshTries, func(try int) error {
		log := a.log.With("try", try)
		log.Info("Refreshing repositories", "force", force)

		var err error
		if force {
			err = a.adapter.ForceRefreshRepos(a.ctx, a.store)
		} else {
			err = a.adapter.RefreshRepos(a.ctx, a.store)
		}
		if err != nil {
			log.Error("Could not refresh repositories", "error", err)
		}

		return err
	})
	if err != nil {
		a.log.Error("Giving up refreshing repositories until the next interval", "error", err)
	}
}

func (a *Agent) handleMsg(msg *nats.Msg) {
	op := strings.TrimPrefix(msg.Subject, a.cfg.SubjectPrefix+".")

	a.rwg.Add(1)
	go func() {
		defer a.rwg.Done()

		err := msg.Respond(a.handle(a.ctx, op, msg.Data))
		if err != nil {
			a.log.Error("Could not respond to request", "operation", op, "error", err)
		}
	}()
}
