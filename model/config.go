// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/choria-io/fisk"
)

const (
	DefaultIndexTTL        = 15 * time.Minute
	DefaultDownloadRetries = 3
)

// StoreConfig is the persisted configuration of a store
type StoreConfig struct {
	Repos           []RepoRecord      `toml:"repos" json:"repos"`
	CacheDir        string            `toml:"cache_dir" json:"cache_dir"`
	TmpDir          string            `toml:"tmp_dir" json:"tmp_dir"`
	SkippedVersions map[string]string `toml:"skipped_versions,omitempty" json:"skipped_versions,omitempty"`
	IndexTTL        string            `toml:"index_ttl,omitempty" json:"index_ttl,omitempty"`
	DownloadRetries int               `toml:"download_retries,omitempty" json:"download_retries,omitempty"`
}

// Validate checks repositories, skipped version keys and durations
func (c *StoreConfig) Validate() error {
	seen := map[RepoRecord]bool{}
	for _, r := range c.Repos {
		err := r.Validate()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		if seen[r] {
			return fmt.Errorf("%w: duplicate repository %s", ErrInvalidConfig, r)
		}
		seen[r] = true
	}

	for k, v := range c.SkippedVersions {
		_, err := ParsePackageKey(k)
		if err != nil {
			return fmt.Errorf("%w: skipped version: %w", ErrInvalidConfig, err)
		}
		if v == "" {
			return fmt.Errorf("%w: skipped version for %s is empty", ErrInvalidConfig, k)
		}
	}

	if c.IndexTTL != "" {
		_, err := fisk.ParseDuration(c.IndexTTL)
		if err != nil {
			return fmt.Errorf("%w: index_ttl: %w", ErrInvalidConfig, err)
		}
	}

	if c.DownloadRetries < 0 {
		return fmt.Errorf("%w: download_retries may not be negative", ErrInvalidConfig)
	}

	return nil
}

// TTL is the parsed index ttl or the default
func (c *StoreConfig) TTL() time.Duration {
	if c.IndexTTL == "" {
		return DefaultIndexTTL
	}

	d, err := fisk.ParseDuration(c.IndexTTL)
	if err != nil || d <= 0 {
		return DefaultIndexTTL
	}

	return d
}

// Retries is the number of download attempts
func (c *StoreConfig) Retries() int {
	if c.DownloadRetries == 0 {
		return DefaultDownloadRetries
	}

	return c.DownloadRetries
}

// Clone creates a deep copy
func (c *StoreConfig) Clone() StoreConfig {
	res := *c
	res.Repos = slices.Clone(c.Repos)
	res.SkippedVersions = maps.Clone(c.SkippedVersions)

	return res
}

// SharedConfig guards a StoreConfig shared by a store, its status queries and user edits
type SharedConfig struct {
	cfg  StoreConfig
	save func(StoreConfig) error
	mu   sync.RWMutex
}

// NewSharedConfig wraps cfg, save is called with the new configuration on every update and may be nil
func NewSharedConfig(cfg StoreConfig, save func(StoreConfig) error) *SharedConfig {
	return &SharedConfig{cfg: cfg.Clone(), save: save}
}

// Read calls fn with the current configuration under a read lock, fn must not modify it
func (s *SharedConfig) Read(fn func(cfg *StoreConfig)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fn(&s.cfg)
}

// Snapshot returns a copy of the current configuration
func (s *SharedConfig) Snapshot() StoreConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cfg.Clone()
}

// Update edits a copy of the configuration, validates and persists it and only then makes it current
func (s *SharedConfig) Update(fn func(cfg *StoreConfig) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.Clone()
	err := fn(&next)
	if err != nil {
		return err
	}

	err = next.Validate()
	if err != nil {
		return err
	}

	if s.save != nil {
		err = s.save(next)
		if err != nil {
			return err
		}
	}

	s.cfg = next

	return nil
}

// Repos is a copy of the configured repositories
func (s *SharedConfig) Repos() []RepoRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.cfg.Repos)
}

// RepoByURL finds the configured repository for url
func (s *SharedConfig) RepoByURL(url string) (RepoRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.cfg.Repos {
		if r.URL == url {
			return r, true
		}
	}

	return RepoRecord{}, false
}

// SkippedVersion is the version of key the user opted out of
func (s *SharedConfig) SkippedVersion(key PackageKey) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.cfg.SkippedVersions[key.String()]

	return v, ok
}

// CacheDir is the configured cache directory
func (s *SharedConfig) CacheDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cfg.CacheDir
}

// TmpDir is the configured temporary directory
func (s *SharedConfig) TmpDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cfg.TmpDir
}

// AddRepo adds a repository if not already configured
func (s *SharedConfig) AddRepo(repo RepoRecord) error {
	return s.Update(func(cfg *StoreConfig) error {
		if slices.Contains(cfg.Repos, repo) {
			return nil
		}
		cfg.Repos = append(cfg.Repos, repo)
		return nil
	})
}

// RemoveRepo removes a repository
func (s *SharedConfig) RemoveRepo(repo RepoRecord) error {
	return s.Update(func(cfg *StoreConfig) error {
		cfg.Repos = slices.DeleteFunc(cfg.Repos, func(r RepoRecord) bool { return r == repo })
		return nil
	})
}

// SkipVersion records that version of key should not be offered as an update, an empty version clears it
func (s *SharedConfig) SkipVersion(key PackageKey, version string) error {
	return s.Update(func(cfg *StoreConfig) error {
		if version == "" {
			delete(cfg.SkippedVersions, key.String())
			return nil
		}

		if cfg.SkippedVersions == nil {
			cfg.SkippedVersions = map[string]string{}
		}
		cfg.SkippedVersions[key.String()] = version

		return nil
	})
}
