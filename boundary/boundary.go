// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package boundary exposes stores and transactions through opaque handles and JSON documents so
// foreign callers never depend on Go types
package boundary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/transaction"
)

// Callback receives transaction events, key is nil for events not about a package
type Callback func(tag uint32, key *string, code uint32)

// Manager opens stores and builds transactions
type Manager interface {
	OpenStore(ctx context.Context, backend string, location string) (model.PackageStore, error)
	CreateStore(ctx context.Context, backend string, location string) (model.PackageStore, error)
	NewTransaction(ctx context.Context, store model.PackageStore, actions []model.PackageAction, tag uint32) (*transaction.Transaction, error)
}

// Adapter is the boundary surface over a Manager
type Adapter struct {
	mgr     Manager
	handles *Table
	log     model.Logger
}

// New creates an adapter with an empty handle table
func New(mgr Manager, log model.Logger) *Adapter {
	return &Adapter{mgr: mgr, handles: NewTable(), log: log}
}

// Handles is the handle table
func (a *Adapter) Handles() *Table {
	return a.handles
}

// AddStore hands out a handle to an already open store, releasing the last reference closes it
func (a *Adapter) AddStore(store model.PackageStore) Handle {
	return a.handles.Add(store, store.Close)
}

// OpenStore attaches to an existing store
func (a *Adapter) OpenStore(ctx context.Context, backend string, location string) (Handle, error) {
	store, err := a.mgr.OpenStore(ctx, backend, location)
	if err != nil {
		return 0, err
	}

	return a.AddStore(store), nil
}

// CreateStore initializes a new store
func (a *Adapter) CreateStore(ctx context.Context, backend string, location string) (Handle, error) {
	store, err := a.mgr.CreateStore(ctx, backend, location)
	if err != nil {
		return 0, err
	}

	return a.AddStore(store), nil
}

// Retain adds a reference to any handle
func (a *Adapter) Retain(h Handle) error {
	return a.handles.Retain(h)
}

// Release drops a reference to any handle
func (a *Adapter) Release(h Handle) error {
	return a.handles.Release(h)
}

// Status is the status code of key, hard failures return the code of their error kind along with the error
func (a *Adapter) Status(ctx context.Context, h Handle, key string, target string) (int8, error) {
	store, err := a.handles.Store(h)
	if err != nil {
		return int8(model.StatusErrorInternal), err
	}

	k, err := model.ParsePackageKey(key)
	if err != nil {
		return int8(model.StatusErrorInternal), err
	}

	status, err := store.Status(ctx, k, model.InstallTarget(target))

	return model.StatusResult{Status: status, Error: err}.Code(), err
}

// AllStatuses is a JSON object of package id to status code for every package in a repository
func (a *Adapter) AllStatuses(ctx context.Context, h Handle, repo string, target string) ([]byte, error) {
	store, err := a.handles.Store(h)
	if err != nil {
		return nil, err
	}

	rec, err := model.ParseRepoRecord(repo)
	if err != nil {
		return nil, err
	}

	statuses, err := store.AllStatuses(ctx, rec, model.InstallTarget(target))
	if err != nil {
		return nil, err
	}

	res := map[string]int8{}
	for id, status := range statuses {
		if status.Error != nil {
			a.log.Debug("Status query failed", "package", id, "error", status.Error)
		}
		res[id] = status.Code()
	}

	return json.Marshal(res)
}

func (a *Adapter) storeAndKey(h Handle, key string) (model.PackageStore, model.PackageKey, error) {
	store, err := a.handles.Store(h)
	if err != nil {
		return nil, model.PackageKey{}, err
	}

	k, err := model.ParsePackageKey(key)
	if err != nil {
		return nil, model.PackageKey{}, err
	}

	return store, k, nil
}

// Download fetches the payload for key, progress may be nil and can cancel the download by returning false
func (a *Adapter) Download(ctx context.Context, h Handle, key string, progress model.ProgressFunc) (string, error) {
	store, k, err := a.storeAndKey(h, key)
	if err != nil {
		return "", err
	}

	if progress == nil {
		progress = func(uint64, uint64) bool { return true }
	}

	return store.Download(ctx, k, progress)
}

// Import registers a local payload as the cached artifact for key
func (a *Adapter) Import(ctx context.Context, h Handle, key string, path string) (string, error) {
	store, k, err := a.storeAndKey(h, key)
	if err != nil {
		return "", err
	}

	return store.Import(ctx, k, path)
}

// ResolvePackage is the JSON descriptor of key, ErrPackageNotFound when it is not in a cached index
func (a *Adapter) ResolvePackage(h Handle, key string) ([]byte, error) {
	store, k, err := a.storeAndKey(h, key)
	if err != nil {
		return nil, err
	}

	desc, ok := store.ResolvePackage(k)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrPackageNotFound, k)
	}

	return json.Marshal(desc)
}

// ClearCache removes cached payloads and indexes
func (a *Adapter) ClearCache(h Handle) error {
	store, err := a.handles.Store(h)
	if err != nil {
		return err
	}

	return store.ClearCache()
}

// RefreshRepos fetches indexes that expired
func (a *Adapter) RefreshRepos(ctx context.Context, h Handle) error {
	store, err := a.handles.Store(h)
	if err != nil {
		return err
	}

	return store.RefreshRepos(ctx)
}

// ForceRefreshRepos fetches all indexes
func (a *Adapter) ForceRefreshRepos(ctx context.Context, h Handle) error {
	store, err := a.handles.Store(h)
	if err != nil {
		return err
	}

	return store.ForceRefreshRepos(ctx)
}

// RepoIndexes is a JSON object of url#channel to repository index
func (a *Adapter) RepoIndexes(h Handle) ([]byte, error) {
	store, err := a.handles.Store(h)
	if err != nil {
		return nil, err
	}

	return json.Marshal(store.Repos())
}

// Config returns a new handle to the shared configuration of a store
func (a *Adapter) Config(h Handle) (Handle, error) {
	store, err := a.handles.Store(h)
	if err != nil {
		return 0, err
	}

	return a.handles.Add(store.Config(), nil), nil
}

// ConfigGet is the JSON form of a configuration
func (a *Adapter) ConfigGet(h Handle) ([]byte, error) {
	cfg, err := a.handles.Config(h)
	if err != nil {
		return nil, err
	}

	snap := cfg.Snapshot()

	return json.Marshal(&snap)
}

// ConfigSet validates, persists and applies a JSON configuration
func (a *Adapter) ConfigSet(h Handle, data []byte) error {
	cfg, err := a.handles.Config(h)
	if err != nil {
		return err
	}

	var next model.StoreConfig
	err = json.Unmarshal(data, &next)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidConfig, err)
	}

	return cfg.Update(func(c *model.StoreConfig) error {
		*c = next
		return nil
	})
}

// NewTransaction validates a JSON action list against a store, the transaction keeps the store alive until released
func (a *Adapter) NewTransaction(ctx context.Context, h Handle, actions []byte) (Handle, error) {
	store, err := a.handles.Store(h)
	if err != nil {
		return 0, err
	}

	list, err := model.ParseActions(actions)
	if err != nil {
		return 0, err
	}

	tx, err := a.mgr.NewTransaction(ctx, store, list, 0)
	if err != nil {
		return 0, err
	}

	err = a.handles.Retain(h)
	if err != nil {
		return 0, err
	}

	return a.handles.Add(tx, func() error { return a.handles.Release(h) }), nil
}

// TransactionActions is the JSON action list of a transaction
func (a *Adapter) TransactionActions(h Handle) ([]byte, error) {
	tx, err := a.handles.Transaction(h)
	if err != nil {
		return nil, err
	}

	return json.Marshal(tx.Actions())
}

// ProcessTransaction processes a transaction and calls cb on the calling goroutine for every event
func (a *Adapter) ProcessTransaction(ctx context.Context, h Handle, tag uint32, cb Callback) error {
	tx, err := a.handles.Transaction(h)
	if err != nil {
		return err
	}

	err = tx.SetTag(tag)
	if err != nil {
		return err
	}

	events := make(chan model.TransactionEvent, 100)
	errc := make(chan error, 1)

	go func() {
		errc <- tx.Process(ctx, events)
	}()

	for event := range events {
		if cb == nil {
			continue
		}

		key := event.Key.String()
		if event.Key.IsZero() {
			cb(tag, nil, uint32(event.Code))
		} else {
			cb(tag, &key, uint32(event.Code))
		}
	}

	err = <-errc
	if err != nil {
		var ae *transaction.ActionError
		if errors.As(err, &ae) {
			a.log.Warn("Transaction failed", "transaction", tx.ID(), "tag", tag, "action", ae.Index, "error", ae.Err)
		}
	}

	return err
}
