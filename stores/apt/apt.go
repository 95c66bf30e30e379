// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package apt installs Debian packages using apt-get and dpkg
package apt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/choria-io/pkgstore/internal/versions"
	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/stores/base"
)

const BackendName = "apt"

var aptEnvironment = []string{
	"DEBIAN_FRONTEND=noninteractive",
	"APT_LISTBUGS_FRONTEND=none",
	"APT_LISTCHANGES_FRONTEND=none",
}

var _ model.PackageStore = (*Store)(nil)

// Store installs DebianPackage payloads system wide
type Store struct {
	*base.Core
}

// Open attaches to the apt store in opts.Location
func Open(ctx context.Context, opts model.StoreOptions) (*Store, error) {
	return open(opts, false)
}

// Create initializes an apt store in opts.Location
func Create(ctx context.Context, opts model.StoreOptions) (*Store, error) {
	return open(opts, true)
}

func open(opts model.StoreOptions, create bool) (*Store, error) {
	core, err := base.OpenPlatform(opts, create, base.Options{
		Name:         BackendName,
		PayloadTypes: []model.PayloadType{model.DebianPackage},
		Targets:      []model.InstallTarget{model.TargetSystem},
	})
	if err != nil {
		return nil, err
	}

	return &Store{Core: core}, nil
}

type dpkgStatus struct {
	name      string
	version   string
	arch      string
	status    string
	installed bool
}

// query reports the dpkg database state of pkg
func (s *Store) query(ctx context.Context, pkg string) (*dpkgStatus, error) {
	stdout, _, exitcode, err := s.Execute(ctx, model.ExtendedExecOptions{
		Command: "dpkg-query",
		Args:    []string{"-W", "-f=${Package} ${Version} ${Architecture} ${db:Status-Status}", pkg},
	})
	if err != nil {
		return nil, err
	}

	return parseQuery(pkg, exitcode, string(stdout))
}

func parseQuery(pkg string, exitcode int, output string) (*dpkgStatus, error) {
	res := &dpkgStatus{name: pkg, status: "unknown"}

	if exitcode != 0 {
		return res, nil
	}

	parts := strings.Fields(strings.TrimSpace(output))
	if len(parts) != 4 {
		return nil, fmt.Errorf("failed to parse dpkg-query output for %s", pkg)
	}

	res.name = parts[0]
	res.version = parts[1]
	res.arch = parts[2]
	res.status = parts[3]
	res.installed = res.status == "installed"

	return res, nil
}

// Install installs the .deb at payloadPath and confirms dpkg reports the expected version
func (s *Store) Install(ctx context.Context, key model.PackageKey, target model.InstallTarget, payloadPath string) (*model.Receipt, error) {
	res, target, err := s.InstallFor(ctx, key, target)
	if err != nil {
		return nil, err
	}

	name := base.PackageName(res)

	// apt-get only treats arguments containing a path separator as files
	path, err := filepath.Abs(payloadPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInstallerFailed, err)
	}

	_, err = s.Run(ctx, model.ErrInstallerFailed, aptEnvironment, "apt-get", "install", "-y", "-q", "-o", "DPkg::Options::=--force-confold", "--allow-downgrades", path)
	if err != nil {
		return nil, err
	}

	st, err := s.query(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInstallerFailed, err)
	}

	if !st.installed {
		return nil, fmt.Errorf("%w: dpkg reports %s as %s after install", model.ErrInstallerFailed, name, st.status)
	}

	if !versions.Equal(model.VersioningDebian, st.version, res.Version()) {
		return nil, fmt.Errorf("%w: dpkg reports %s at version %s expected %s", model.ErrInstallerFailed, name, st.version, res.Version())
	}

	r := base.NewReceipt(res, target, name)

	return s.Commit(ctx, res, r)
}

// Uninstall removes the package with apt-get
func (s *Store) Uninstall(ctx context.Context, key model.PackageKey, target model.InstallTarget) error {
	r, target, err := s.InstalledReceipt(key, target)
	if err != nil {
		return err
	}

	name := r.Name
	if name == "" {
		name = key.ID
	}

	_, err = s.Run(ctx, model.ErrUninstallFailed, aptEnvironment, "apt-get", "-q", "-y", "remove", name)
	if err != nil {
		return err
	}

	return s.Forget(key, target)
}
