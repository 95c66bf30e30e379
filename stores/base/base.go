// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package base holds the plumbing every package store backend shares: configuration, repository
// indexes, status resolution, downloads, imports and the payload cache
package base

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/choria-io/pkgstore/config"
	"github.com/choria-io/pkgstore/index"
	"github.com/choria-io/pkgstore/internal/backoff"
	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/resolver"
)

const (
	reposDir    = "repos"
	packagesDir = "packages"
)

// Options describe a backend to NewCore
type Options struct {
	// Name is the backend name
	Name string
	// PayloadTypes are the payload types the backend installs
	PayloadTypes []model.PayloadType
	// Targets are the supported install targets, the first is the default
	Targets []model.InstallTarget
	// Receipts records installed packages
	Receipts model.ReceiptStore
	// Backoff is the retry policy for downloads, defaults to backoff.Default
	Backoff *backoff.Policy
}

// Core implements the parts of model.PackageStore that do not depend on the installer
type Core struct {
	name         string
	location     string
	cfg          *model.SharedConfig
	index        *index.Cache
	resolver     *resolver.Resolver
	receipts     model.ReceiptStore
	runner       model.CommandRunner
	facts        map[string]any
	payloadTypes []model.PayloadType
	targets      []model.InstallTarget
	policy       backoff.Policy
	log          model.Logger
}

// LoadConfig opens the configuration of the store in opts.Location, create initializes a new store
func LoadConfig(opts model.StoreOptions, create bool) (*model.SharedConfig, error) {
	if opts.Location == "" {
		return nil, fmt.Errorf("%w: location is required", model.ErrStoreNotFound)
	}

	var (
		cfg model.StoreConfig
		err error
	)

	if create {
		cfg, err = config.Create(opts.Location, opts.Paths)
	} else {
		cfg, err = config.Load(opts.Location, opts.Paths)
	}
	if err != nil {
		return nil, err
	}

	return config.Shared(opts.Location, cfg), nil
}

// NewCore creates the shared core of a store
func NewCore(cfg *model.SharedConfig, so model.StoreOptions, opts Options) (*Core, error) {
	if opts.Receipts == nil {
		return nil, fmt.Errorf("receipt store is required")
	}
	if so.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	log := so.Logger.With("store", opts.Name, "location", so.Location)

	c := &Core{
		name:         opts.Name,
		location:     so.Location,
		cfg:          cfg,
		receipts:     opts.Receipts,
		runner:       so.Runner,
		facts:        so.Facts,
		payloadTypes: slices.Clone(opts.PayloadTypes),
		targets:      slices.Clone(opts.Targets),
		policy:       backoff.Default,
		log:          log,
	}

	if opts.Backoff != nil {
		c.policy = *opts.Backoff
	}

	c.index = index.New(filepath.Join(c.CacheDir(), reposDir), cfg, log, index.WithBackoffPolicy(c.policy))
	c.resolver = resolver.New(c.index, c.receipts, cfg, c.facts, c.payloadTypes, c.targets, log)

	return c, nil
}

func (c *Core) Name() string { return c.name }
func (c *Core) Location() string { return c.location }
func (c *Core) Targets() []model.InstallTarget { return slices.Clone(c.targets) }
func (c *Core) PayloadTypes() []model.PayloadType { return slices.Clone(c.payloadTypes) }
func (c *Core) Config() *model.SharedConfig { return c.cfg }
func (c *Core) Runner() model.CommandRunner { return c.runner }
func (c *Core) Receipts() model.ReceiptStore { return c.receipts }
func (c *Core) Resolver() *resolver.Resolver { return c.resolver }
func (c *Core) Facts() map[string]any { return c.facts }
func (c *Core) Logger() model.Logger { return c.log }
func (c *Core) Repos() map[model.RepoRecord]*model.RepoIndex { return c.index.Repos() }

// CacheDir is the configured cache directory, falling back to the store location
func (c *Core) CacheDir() string {
	dir := c.cfg.CacheDir()
	if dir == "" {
		dir = filepath.Join(c.location, "cache")
	}

	return dir
}

// TmpDir is the configured temporary directory, falling back to the cache directory
func (c *Core) TmpDir() string {
	dir := c.cfg.TmpDir()
	if dir == "" {
		dir = filepath.Join(c.CacheDir(), "tmp")
	}

	return dir
}

// Target resolves the default target and checks the target is supported
func (c *Core) Target(target model.InstallTarget) (model.InstallTarget, error) {
	return c.resolver.Target(target)
}

func (c *Core) Status(ctx context.Context, key model.PackageKey, target model.InstallTarget) (model.PackageStatus, error) {
	return c.resolver.Status(ctx, key, target)
}

func (c *Core) AllStatuses(ctx context.Context, repo model.RepoRecord, target model.InstallTarget) (map[string]model.StatusResult, error) {
	return c.resolver.AllStatuses(ctx, repo, target)
}

func (c *Core) ResolvePackage(key model.PackageKey) (*model.PackageDescriptor, bool) {
	return c.resolver.ResolvePackage(key)
}

func (c *Core) Resolve(ctx context.Context, key model.PackageKey) (*model.ResolvedPackage, error) {
	return c.resolver.Resolve(ctx, key)
}

func (c *Core) RefreshRepos(ctx context.Context) error {
	return c.index.Refresh(ctx)
}

func (c *Core) ForceRefreshRepos(ctx context.Context) error {
	return c.index.ForceRefresh(ctx)
}

// ClearCache removes downloaded payloads and cached repository indexes
func (c *Core) ClearCache() error {
	err := os.RemoveAll(filepath.Join(c.CacheDir(), packagesDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return c.index.Clear()
}

// Close releases the receipt store
func (c *Core) Close() error {
	return c.receipts.Close()
}
