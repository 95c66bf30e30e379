// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
	"time"
)

//go:generate mockgen -destination=modelmocks/store_mock.go -package=modelmocks github.com/choria-io/pkgstore/model PackageStore,StoreFactory,ReceiptStore

// InstallTarget is the scope of an installation, each store supports its own set of targets
type InstallTarget string

const (
	TargetDefault InstallTarget = ""
	TargetSystem  InstallTarget = "system"
	TargetUser    InstallTarget = "user"
	TargetPrefix  InstallTarget = "prefix"
)

// ProgressFunc receives download progress, total is 0 when unknown. Returning false cancels the download.
//
// Implementations must be cheap and must not call back into the store
type ProgressFunc func(current uint64, total uint64) bool

// PackageStore is the capability surface every backend implements
type PackageStore interface {
	// Name is the backend name
	Name() string
	// Location is the directory the store lives in
	Location() string
	// Targets are the install targets supported, the first is the default
	Targets() []InstallTarget
	// PayloadTypes are the payload types the backend can install
	PayloadTypes() []PayloadType

	Status(ctx context.Context, key PackageKey, target InstallTarget) (PackageStatus, error)
	// AllStatuses is the status of every package in repo, failing only when repo can not be loaded
	AllStatuses(ctx context.Context, repo RepoRecord, target InstallTarget) (map[string]StatusResult, error)

	// Download fetches the payload for key into the cache and returns its path
	Download(ctx context.Context, key PackageKey, progress ProgressFunc) (string, error)
	// Import registers a local payload as the cached artifact for key
	Import(ctx context.Context, key PackageKey, path string) (string, error)
	// CachedPath is the path of a complete cached payload for key
	CachedPath(ctx context.Context, key PackageKey) (string, bool)

	ResolvePackage(key PackageKey) (*PackageDescriptor, bool)
	Resolve(ctx context.Context, key PackageKey) (*ResolvedPackage, error)

	// Install runs the backend installer for a downloaded payload and records the receipt
	Install(ctx context.Context, key PackageKey, target InstallTarget, payloadPath string) (*Receipt, error)
	// Uninstall removes the package and its receipt
	Uninstall(ctx context.Context, key PackageKey, target InstallTarget) error
	// Verify runs the verification check of the resolved payload, nil result when it has none
	Verify(ctx context.Context, key PackageKey, target InstallTarget) (*VerifyResult, error)

	ClearCache() error
	RefreshRepos(ctx context.Context) error
	ForceRefreshRepos(ctx context.Context) error
	Repos() map[RepoRecord]*RepoIndex
	Config() *SharedConfig

	// Runner is the command runner used for installers and verification checks
	Runner() CommandRunner
	Close() error
}

// StoreOptions are passed to factories when opening or creating stores
type StoreOptions struct {
	Location string
	Paths    PathProvider
	Logger   Logger
	Runner   CommandRunner
	Facts    map[string]any
}

// StoreFactory creates stores for a backend
type StoreFactory interface {
	Name() string
	IsManageable(facts map[string]any) (bool, int, error)
	Open(ctx context.Context, opts StoreOptions) (PackageStore, error)
	Create(ctx context.Context, opts StoreOptions) (PackageStore, error)
}

// Receipt records what version of a package is installed for a target
type Receipt struct {
	Key         PackageKey    `json:"key"`
	ID          string        `json:"id"`
	Target      InstallTarget `json:"target"`
	Version     string        `json:"version"`
	PayloadType PayloadType   `json:"payload_type"`
	Name        string        `json:"name,omitempty"`
	ProductCode string        `json:"product_code,omitempty"`
	Files       []string      `json:"files,omitempty"`
	InstalledAt time.Time     `json:"installed_at"`
}

// ReceiptStore persists receipts with crash safe replace semantics
type ReceiptStore interface {
	// Get returns the receipt, ErrReceiptNotFound when there is none
	Get(id string, target InstallTarget) (*Receipt, error)
	Put(receipt *Receipt) error
	Remove(id string, target InstallTarget) error
	List(target InstallTarget) ([]*Receipt, error)
	Close() error
}

// PathProvider supplies the default directories, resolved once at startup
type PathProvider interface {
	ConfigDir() string
	CacheDir() string
	TmpDir() string
	LogDir() string
}
