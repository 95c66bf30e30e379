// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package index fetches, validates and caches repository indexes
package index

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/sync/errgroup"

	"github.com/choria-io/pkgstore/internal/backoff"
	iu "github.com/choria-io/pkgstore/internal/util"
	"github.com/choria-io/pkgstore/metrics"
	"github.com/choria-io/pkgstore/model"
)

//go:embed schema.json
var schemaJSON []byte

const (
	// SchemaURL is the identifier of the index schema
	SchemaURL = "https://choria.io/schemas/pkgstore/v1/index.json"

	// FileName is the name of the index document relative to the repository url
	FileName = "index.json"

	metaFileName     = "meta.json"
	maxIndexSize     = 64 << 20
	fetchTimeout     = time.Minute
	refreshLimit     = 4
)

var (
	compiled     *jsonschema.Schema
	compileErr   error
	compiledOnce sync.Once
)

func schema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			compileErr = err
			return
		}

		c := jsonschema.NewCompiler()
		err = c.AddResource(SchemaURL, doc)
		if err != nil {
			compileErr = err
			return
		}

		compiled, compileErr = c.Compile(SchemaURL)
	})

	return compiled, compileErr
}

// Parse validates data against the index schema and decodes it
func Parse(data []byte) (*model.RepoIndex, error) {
	sch, err := schema()
	if err != nil {
		return nil, fmt.Errorf("%w: could not compile schema: %w", model.ErrInvalidIndex, err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidIndex, err)
	}

	err = sch.Validate(inst)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidIndex, err)
	}

	var idx model.RepoIndex
	err = json.Unmarshal(data, &idx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidIndex, err)
	}

	for id, pkg := range idx.Packages {
		if pkg.ID != id {
			return nil, fmt.Errorf("%w: package %q is listed under %q", model.ErrInvalidIndex, pkg.ID, id)
		}
	}

	return &idx, nil
}

type entry struct {
	index   *model.RepoIndex
	fetched time.Time
	etag    string
}

type meta struct {
	URL     string    `json:"url"`
	Fetched time.Time `json:"fetched"`
	ETag    string    `json:"etag,omitempty"`
}

// Cache holds the parsed indexes of the configured repositories.
//
// Entries are replaced whole and never modified once stored so readers can use them without locks
type Cache struct {
	dir     string
	cfg     *model.SharedConfig
	log     model.Logger
	policy  backoff.Policy
	entries map[string]*entry
	mu      sync.RWMutex
}

// Option configures a Cache
type Option func(*Cache)

// WithBackoffPolicy sets the retry policy used for fetches
func WithBackoffPolicy(p backoff.Policy) Option {
	return func(c *Cache) { c.policy = p }
}

// New creates a cache storing index copies below dir and warms it from those copies
func New(dir string, cfg *model.SharedConfig, log model.Logger, opts ...Option) *Cache {
	c := &Cache{
		dir:     dir,
		cfg:     cfg,
		log:     log,
		policy:  backoff.FiveSec,
		entries: make(map[string]*entry),
	}

	for _, opt := range opts {
		opt(c)
	}

	for _, repo := range cfg.Repos() {
		e, err := c.loadCopy(repo.URL)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				c.log.Warn("Could not load cached index", "repository", repo.URL, "error", err)
			}
			continue
		}
		c.entries[repo.URL] = e
	}

	return c
}

// Dir is the directory holding index copies
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) repoDir(u string) string {
	return filepath.Join(c.dir, strconv.FormatUint(xxhash.Sum64String(u), 16))
}

func (c *Cache) loadCopy(u string) (*entry, error) {
	dir := c.repoDir(u)

	mb, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		return nil, err
	}

	var m meta
	err = json.Unmarshal(mb, &m)
	if err != nil {
		return nil, err
	}
	if m.URL != u {
		return nil, fmt.Errorf("cached index belongs to %s", m.URL)
	}

	ib, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}

	idx, err := Parse(ib)
	if err != nil {
		return nil, err
	}

	return &entry{index: idx, fetched: m.Fetched, etag: m.ETag}, nil
}

func (c *Cache) saveCopy(u string, data []byte, e *entry) error {
	dir := c.repoDir(u)

	err := iu.AtomicWriteFile(filepath.Join(dir, FileName), data, 0644)
	if err != nil {
		return err
	}

	mb, err := json.Marshal(meta{URL: u, Fetched: e.fetched, ETag: e.etag})
	if err != nil {
		return err
	}

	return iu.AtomicWriteFile(filepath.Join(dir, metaFileName), mb, 0644)
}

func (c *Cache) saveMeta(u string, e *entry) error {
	mb, err := json.Marshal(meta{URL: u, Fetched: e.fetched, ETag: e.etag})
	if err != nil {
		return err
	}

	return iu.AtomicWriteFile(filepath.Join(c.repoDir(u), metaFileName), mb, 0644)
}

func (c *Cache) get(u string) *entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.entries[u]
}

func (c *Cache) set(u string, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[u] = e
}

// Get returns the cached index for a repository url
func (c *Cache) Get(u string) (*model.RepoIndex, bool) {
	e := c.get(u)
	if e == nil {
		return nil, false
	}

	return e.index, true
}

// GetRecord returns the cached index for a repository record
func (c *Cache) GetRecord(repo model.RepoRecord) (*model.RepoIndex, bool) {
	return c.Get(repo.URL)
}

// Ensure returns the index for a configured repository, fetching it when it is not cached
func (c *Cache) Ensure(ctx context.Context, u string) (*model.RepoIndex, model.RepoRecord, error) {
	repo, ok := c.cfg.RepoByURL(u)
	if !ok {
		return nil, model.RepoRecord{}, fmt.Errorf("%w: %s is not configured", model.ErrRepositoryNotFound, u)
	}

	idx, ok := c.Get(u)
	if ok {
		return idx, repo, nil
	}

	err := c.refresh(ctx, repo, true)
	if err != nil {
		return nil, repo, fmt.Errorf("%w: %w", model.ErrRepositoryNotFound, err)
	}

	idx, ok = c.Get(u)
	if !ok {
		return nil, repo, fmt.Errorf("%w: %s", model.ErrRepositoryNotFound, u)
	}

	return idx, repo, nil
}

// Repos is a snapshot of the indexes of all configured repositories that are cached
func (c *Cache) Repos() map[model.RepoRecord]*model.RepoIndex {
	res := make(map[model.RepoRecord]*model.RepoIndex)

	c.mu.RLock()
	entries := maps.Clone(c.entries)
	c.mu.RUnlock()

	for _, repo := range c.cfg.Repos() {
		e, ok := entries[repo.URL]
		if ok {
			res[repo] = e.index
		}
	}

	return res
}

// Refresh fetches indexes that are missing or older than the configured ttl
func (c *Cache) Refresh(ctx context.Context) error {
	return c.refreshAll(ctx, false)
}

// ForceRefresh fetches the indexes of all configured repositories
func (c *Cache) ForceRefresh(ctx context.Context) error {
	return c.refreshAll(ctx, true)
}

func (c *Cache) refreshAll(ctx context.Context, force bool) error {
	var (
		errs []error
		mu   sync.Mutex
	)

	g := errgroup.Group{}
	g.SetLimit(refreshLimit)

	for _, repo := range c.cfg.Repos() {
		g.Go(func() error {
			err := c.refresh(ctx, repo, force)
			if err != nil {
				c.log.Error("Could not refresh repository", "repository", iu.RedactUrlString(repo.URL), "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", repo.URL, err))
				mu.Unlock()
			}

			// failures are isolated per repository
			return nil
		})
	}

	g.Wait()

	return errors.Join(errs...)
}

func (c *Cache) refresh(ctx context.Context, repo model.RepoRecord, force bool) error {
	existing := c.get(repo.URL)
	cfg := c.cfg.Snapshot()

	if !force && existing != nil && time.Since(existing.fetched) < cfg.TTL() {
		return nil
	}

	timer := prometheus.NewTimer(metrics.IndexRefreshTime.WithLabelValues(repo.URL))
	defer timer.ObserveDuration()

	retries := cfg.Retries()

	err := c.policy.Retry(ctx, retries, func(try int) error {
		err := c.fetch(ctx, repo.URL, existing)
		if err != nil {
			metrics.IndexRefreshFailureCount.WithLabelValues(repo.URL).Inc()
			c.log.Warn("Fetching repository index failed", "repository", iu.RedactUrlString(repo.URL), "try", try, "error", err)
		}
		if errors.Is(err, model.ErrInvalidIndex) || errors.Is(err, model.ErrInvalidRepository) {
			return backoff.Permanent(err)
		}

		return err
	})

	return err
}

func (c *Cache) fetch(ctx context.Context, u string, existing *entry) error {
	parsed, err := url.Parse(u)
	if err != nil {
		return err
	}

	var (
		data []byte
		etag string
	)

	switch parsed.Scheme {
	case "file":
		data, err = os.ReadFile(filepath.Join(FilePath(parsed), FileName))
		if err != nil {
			return err
		}

	case "http", "https":
		hdr := http.Header{}
		hdr.Set("Accept", "application/json")
		if existing != nil && existing.etag != "" {
			hdr.Set("If-None-Match", existing.etag)
		}

		resp, cancel, err := iu.HttpGetResponse(ctx, u+FileName, fetchTimeout, hdr)
		if err != nil {
			return err
		}
		defer cancel()
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotModified && existing != nil {
			e := &entry{index: existing.index, fetched: time.Now(), etag: existing.etag}
			c.set(u, e)
			return c.saveMeta(u, e)
		}

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP request failed with status %d: %s", resp.StatusCode, resp.Status)
		}

		data, err = io.ReadAll(io.LimitReader(resp.Body, maxIndexSize+1))
		if err != nil {
			return err
		}
		if len(data) > maxIndexSize {
			return fmt.Errorf("%w: index exceeds %d bytes", model.ErrInvalidIndex, maxIndexSize)
		}

		etag = resp.Header.Get("ETag")

	default:
		return fmt.Errorf("%w: unsupported scheme %q", model.ErrInvalidRepository, parsed.Scheme)
	}

	idx, err := Parse(data)
	if err != nil {
		return err
	}

	e := &entry{index: idx, fetched: time.Now(), etag: etag}
	c.set(u, e)

	err = c.saveCopy(u, data, e)
	if err != nil {
		c.log.Warn("Could not save index copy", "repository", iu.RedactUrlString(u), "error", err)
	}

	c.log.Debug("Fetched repository index", "repository", iu.RedactUrlString(u), "packages", len(idx.Packages))

	return nil
}

// Clear drops all cached indexes from memory and disk
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()

	err := os.RemoveAll(c.dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// FilePath converts a file url to a local path
func FilePath(u *url.URL) string {
	p := u.Path
	if runtime.GOOS == "windows" {
		p = strings.TrimPrefix(p, "/")
	}

	return filepath.FromSlash(p)
}
