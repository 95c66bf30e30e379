// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package base

import (
	"context"
	"fmt"
	"os"

	"github.com/choria-io/pkgstore/internal/archive"
	"github.com/choria-io/pkgstore/internal/versions"
	"github.com/choria-io/pkgstore/model"
)

// Import validates a local payload against the resolved release of key and copies it into the cache
func (c *Core) Import(ctx context.Context, key model.PackageKey, path string) (string, error) {
	res, err := c.Resolve(ctx, key)
	if err != nil {
		return "", err
	}

	payload := res.Payload()

	st, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if st.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", model.ErrImportMismatch, path)
	}

	// without a checksum, size or package identity nothing ties the file to the release
	if payload.Checksum == "" && payload.Size <= 0 && !hasIdentity(payload.Type) {
		return "", fmt.Errorf("%w: %s %s publishes no checksum or size to validate %s against", model.ErrImportMismatch, key, res.Version(), path)
	}

	if payload.Size > 0 && st.Size() != payload.Size {
		return "", fmt.Errorf("%w: %s has size %d expected %d", model.ErrImportMismatch, path, st.Size(), payload.Size)
	}

	err = verifyPayload(path, payload)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrImportMismatch, err)
	}

	err = checkIdentity(res, path)
	if err != nil {
		return "", err
	}

	dest, err := c.PackagePath(res)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	err = c.writePayload(ctx, f, dest, uint64(st.Size()), payload, nil)
	if err != nil {
		return "", err
	}

	c.log.Info("Imported payload", "package", key.String(), "version", res.Version(), "path", dest)

	return dest, nil
}

// hasIdentity is true for payload types whose files embed their package name and version
func hasIdentity(pt model.PayloadType) bool {
	return pt == model.DebianPackage || pt == model.RpmPackage
}

// checkIdentity confirms native packages carry the name and version the index promises
func checkIdentity(res *model.ResolvedPackage, path string) error {
	payload := res.Payload()

	var (
		id  *archive.Identity
		err error
	)

	switch payload.Type {
	case model.DebianPackage:
		id, err = archive.DebIdentity(path)
	case model.RpmPackage:
		id, err = archive.RpmIdentity(path)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrImportMismatch, err)
	}

	name := payload.Name
	if name == "" {
		name = res.Key.ID
	}

	if id.Name != name {
		return fmt.Errorf("%w: package name %q does not match %q", model.ErrImportMismatch, id.Name, name)
	}

	if !identityVersionMatches(payload.Type, id, res.Version()) {
		return fmt.Errorf("%w: package version %q does not match %q", model.ErrImportMismatch, id.FullVersion(), res.Version())
	}

	return nil
}

func identityVersionMatches(pt model.PayloadType, id *archive.Identity, want string) bool {
	if id.Version == want || id.FullVersion() == want {
		return true
	}

	scheme := model.VersioningRpm
	if pt == model.DebianPackage {
		scheme = model.VersioningDebian
	}

	return versions.Equal(scheme, id.FullVersion(), want)
}
