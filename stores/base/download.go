// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package base

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/choria-io/pkgstore/index"
	"github.com/choria-io/pkgstore/internal/backoff"
	iu "github.com/choria-io/pkgstore/internal/util"
	"github.com/choria-io/pkgstore/metrics"
	"github.com/choria-io/pkgstore/model"
)

const partSuffix = ".part-"

type httpStatusError struct {
	code   int
	status string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("HTTP request failed with status %d: %s", e.code, e.status)
}

// progressWriter reports every write to a ProgressFunc and fails the copy when it asks to stop
type progressWriter struct {
	w        io.Writer
	current  uint64
	total    uint64
	progress model.ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.current += uint64(n)
	if err != nil {
		return n, err
	}

	if p.progress != nil && !p.progress(p.current, p.total) {
		return n, model.ErrDownloadCancelled
	}

	return n, nil
}

// PackagePath is where the payload of a resolved package is cached
func (c *Core) PackagePath(res *model.ResolvedPackage) (string, error) {
	payload := res.Payload()
	if payload == nil {
		return "", fmt.Errorf("%w: %s", model.ErrNoInstaller, res.Key)
	}

	name := payload.FileName()
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("%w: payload url %q has no file name", model.ErrInvalidIndex, payload.URL)
	}

	// epochs use colons which are not valid in windows file names
	version := strings.ReplaceAll(res.Version(), ":", "_")

	p, err := iu.SafeJoin(filepath.Join(c.CacheDir(), packagesDir), filepath.Join(res.Key.ID, version, name))
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrInvalidIndex, err)
	}

	return p, nil
}

func verifyPayload(path string, payload *model.Payload) error {
	err := iu.VerifyFile(path, payload.Checksum, uint64(max(payload.Size, 0)))
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrChecksumMismatch, err)
	}

	return nil
}

// CachedPath is the path of the cached payload for key when it is present and verifies
func (c *Core) CachedPath(ctx context.Context, key model.PackageKey) (string, bool) {
	res, err := c.Resolve(ctx, key)
	if err != nil {
		return "", false
	}

	return c.cachedPath(res)
}

func (c *Core) cachedPath(res *model.ResolvedPackage) (string, bool) {
	dest, err := c.PackagePath(res)
	if err != nil || !iu.FileExists(dest) {
		return "", false
	}

	err = verifyPayload(dest, res.Payload())
	if err != nil {
		c.log.Warn("Cached payload does not verify", "path", dest, "error", err)
		return "", false
	}

	return dest, true
}

// Download fetches the payload for key into the cache, verified payloads already present are returned immediately
func (c *Core) Download(ctx context.Context, key model.PackageKey, progress model.ProgressFunc) (string, error) {
	res, err := c.Resolve(ctx, key)
	if err != nil {
		return "", err
	}

	if dest, ok := c.cachedPath(res); ok {
		c.log.Debug("Using cached payload", "package", key.String(), "path", dest)
		return dest, nil
	}

	dest, err := c.PackagePath(res)
	if err != nil {
		return "", err
	}

	u, err := res.PayloadURL()
	if err != nil {
		return "", err
	}

	timer := prometheus.NewTimer(metrics.DownloadTime.WithLabelValues(c.name))
	defer timer.ObserveDuration()

	c.log.Info("Downloading payload", "package", key.String(), "version", res.Version(), "url", iu.RedactUrlCredentials(u))

	cfg := c.cfg.Snapshot()

	err = c.policy.Retry(ctx, cfg.Retries(), func(try int) error {
		err := c.fetch(ctx, u, dest, res.Payload(), progress)
		if err == nil {
			return nil
		}

		metrics.DownloadFailureCount.WithLabelValues(c.name).Inc()
		c.log.Warn("Download failed", "package", key.String(), "try", try, "error", err)

		var hse *httpStatusError
		switch {
		case errors.Is(err, model.ErrDownloadCancelled), errors.Is(err, os.ErrNotExist):
			return backoff.Permanent(err)
		case errors.As(err, &hse) && hse.code >= 400 && hse.code < 500:
			return backoff.Permanent(err)
		}

		return err
	})

	switch {
	case err == nil:
		return dest, nil
	case errors.Is(err, model.ErrDownloadCancelled):
		return "", fmt.Errorf("%w: %s", model.ErrDownloadCancelled, key)
	case ctx.Err() != nil:
		return "", ctx.Err()
	default:
		return "", fmt.Errorf("%w: %s: %w", model.ErrDownloadFailed, key, err)
	}
}

func (c *Core) fetch(ctx context.Context, u *url.URL, dest string, payload *model.Payload, progress model.ProgressFunc) error {
	var (
		body  io.Reader
		total = uint64(max(payload.Size, 0))
	)

	switch u.Scheme {
	case "file":
		f, err := os.Open(index.FilePath(u))
		if err != nil {
			return err
		}
		defer f.Close()

		if total == 0 {
			if st, err := f.Stat(); err == nil {
				total = uint64(st.Size())
			}
		}
		body = f

	case "http", "https":
		resp, cancel, err := iu.HttpGetResponse(ctx, u.String(), 0, nil)
		if err != nil {
			return err
		}
		defer cancel()
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &httpStatusError{code: resp.StatusCode, status: resp.Status}
		}

		if total == 0 && resp.ContentLength > 0 {
			total = uint64(resp.ContentLength)
		}
		body = resp.Body

	default:
		return backoff.Permanent(fmt.Errorf("unsupported payload url scheme %q", u.Scheme))
	}

	return c.writePayload(ctx, body, dest, total, payload, progress)
}

// writePayload copies r into a temporary file next to dest, verifies it and renames it into place
func (c *Core) writePayload(ctx context.Context, r io.Reader, dest string, total uint64, payload *model.Payload, progress model.ProgressFunc) error {
	err := os.MkdirAll(filepath.Dir(dest), 0755)
	if err != nil {
		return err
	}

	tf, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+partSuffix+"*")
	if err != nil {
		return err
	}
	defer os.Remove(tf.Name())

	if progress != nil && !progress(0, total) {
		tf.Close()
		return model.ErrDownloadCancelled
	}

	pw := &progressWriter{w: tf, total: total, progress: progress}
	copied, err := io.Copy(pw, contextReader{ctx: ctx, r: r})
	if err != nil {
		tf.Close()
		return err
	}

	err = tf.Sync()
	if err != nil {
		tf.Close()
		return err
	}

	err = tf.Close()
	if err != nil {
		return err
	}

	err = verifyPayload(tf.Name(), payload)
	if err != nil {
		return err
	}

	metrics.DownloadBytes.WithLabelValues(c.name).Add(float64(copied))

	return os.Rename(tf.Name(), dest)
}

// contextReader stops reads once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}

	return r.r.Read(p)
}
