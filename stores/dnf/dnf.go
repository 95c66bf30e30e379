// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package dnf installs RPM packages using dnf and rpm
package dnf

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/choria-io/pkgstore/internal/versions"
	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/stores/base"
)

const (
	BackendName = "dnf"

	nevraQueryFormat = `%{NAME} %|EPOCH?{%{EPOCH}}:{0}| %{VERSION} %{RELEASE} %{ARCH}`
)

// name epoch version release arch, rpm reports a missing epoch as (none)
var nevraRe = regexp.MustCompile(`^([A-Za-z0-9._+-]+) (\d+|\(none\)) ([A-Za-z0-9][A-Za-z0-9._+~^]*) ([A-Za-z0-9][A-Za-z0-9._+~^]*) ([A-Za-z0-9_]+)$`)

var _ model.PackageStore = (*Store)(nil)

// Store installs RpmPackage payloads system wide
type Store struct {
	*base.Core
}

// Open attaches to the dnf store in opts.Location
func Open(ctx context.Context, opts model.StoreOptions) (*Store, error) {
	return open(opts, false)
}

// Create initializes a dnf store in opts.Location
func Create(ctx context.Context, opts model.StoreOptions) (*Store, error) {
	return open(opts, true)
}

func open(opts model.StoreOptions, create bool) (*Store, error) {
	core, err := base.OpenPlatform(opts, create, base.Options{
		Name:         BackendName,
		PayloadTypes: []model.PayloadType{model.RpmPackage},
		Targets:      []model.InstallTarget{model.TargetSystem},
	})
	if err != nil {
		return nil, err
	}

	return &Store{Core: core}, nil
}

// nevra is the installed identity of a package as reported by rpm
type nevra struct {
	name    string
	epoch   string
	version string
	release string
	arch    string
}

func (n *nevra) matches(want string) bool {
	for _, have := range []string{n.version, n.version + "-" + n.release, n.epoch + ":" + n.version + "-" + n.release} {
		if have == want || versions.Equal(model.VersioningRpm, have, want) {
			return true
		}
	}

	return false
}

func (s *Store) query(ctx context.Context, pkg string) (*nevra, error) {
	stdout, _, exitcode, err := s.Execute(ctx, model.ExtendedExecOptions{
		Command: "rpm",
		Args:    []string{"-q", pkg, "--queryformat", nevraQueryFormat},
	})
	if err != nil {
		return nil, err
	}

	if exitcode != 0 {
		return nil, nil
	}

	return parseNevra(pkg, string(stdout))
}

func parseNevra(pkg string, output string) (*nevra, error) {
	matches := nevraRe.FindStringSubmatch(strings.TrimSpace(output))
	if len(matches) != 6 {
		return nil, fmt.Errorf("failed to parse rpm -q output for %s", pkg)
	}

	epoch := matches[2]
	if epoch == "(none)" {
		epoch = "0"
	}

	return &nevra{name: matches[1], epoch: epoch, version: matches[3], release: matches[4], arch: matches[5]}, nil
}

// Install installs the .rpm at payloadPath and confirms rpm reports the expected version
func (s *Store) Install(ctx context.Context, key model.PackageKey, target model.InstallTarget, payloadPath string) (*model.Receipt, error) {
	res, target, err := s.InstallFor(ctx, key, target)
	if err != nil {
		return nil, err
	}

	name := base.PackageName(res)

	path, err := filepath.Abs(payloadPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInstallerFailed, err)
	}

	_, err = s.Run(ctx, model.ErrInstallerFailed, nil, "dnf", "install", "-y", path)
	if err != nil {
		return nil, err
	}

	installed, err := s.query(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInstallerFailed, err)
	}

	if installed == nil {
		return nil, fmt.Errorf("%w: rpm does not report %s as installed", model.ErrInstallerFailed, name)
	}

	if !installed.matches(res.Version()) {
		return nil, fmt.Errorf("%w: rpm reports %s at version %s-%s expected %s", model.ErrInstallerFailed, name, installed.version, installed.release, res.Version())
	}

	r := base.NewReceipt(res, target, name)

	return s.Commit(ctx, res, r)
}

// Uninstall removes the package with dnf
func (s *Store) Uninstall(ctx context.Context, key model.PackageKey, target model.InstallTarget) error {
	r, target, err := s.InstalledReceipt(key, target)
	if err != nil {
		return err
	}

	name := r.Name
	if name == "" {
		name = key.ID
	}

	_, err = s.Run(ctx, model.ErrUninstallFailed, nil, "dnf", "remove", "-y", name)
	if err != nil {
		return err
	}

	return s.Forget(key, target)
}
