// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package macos installs flat packages using installer and pkgutil
package macos

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	iu "github.com/choria-io/pkgstore/internal/util"
	"github.com/choria-io/pkgstore/internal/versions"
	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/stores/base"
)

const (
	BackendName = "macos"

	systemVolume = "/"
)

var _ model.PackageStore = (*Store)(nil)

// Store installs MacOSPackage payloads for the system or the current user
type Store struct {
	*base.Core

	home func() (string, error)
}

// Open attaches to the macos store in opts.Location
func Open(ctx context.Context, opts model.StoreOptions) (*Store, error) {
	return open(opts, false)
}

// Create initializes a macos store in opts.Location
func Create(ctx context.Context, opts model.StoreOptions) (*Store, error) {
	return open(opts, true)
}

func open(opts model.StoreOptions, create bool) (*Store, error) {
	core, err := base.OpenPlatform(opts, create, base.Options{
		Name:         BackendName,
		PayloadTypes: []model.PayloadType{model.MacOSPackage},
		Targets:      []model.InstallTarget{model.TargetSystem, model.TargetUser},
	})
	if err != nil {
		return nil, err
	}

	return &Store{Core: core, home: os.UserHomeDir}, nil
}

// pkgInfo is the receipt pkgutil keeps for an installed package
type pkgInfo struct {
	id       string
	version  string
	volume   string
	location string
}

// root is the directory the files listed by pkgutil are relative to
func (p *pkgInfo) root() string {
	return filepath.Join(p.volume, p.location)
}

func parsePkgInfo(output string) (*pkgInfo, error) {
	info := &pkgInfo{}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		k, v, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}

		v = strings.TrimSpace(v)

		switch strings.TrimSpace(k) {
		case "package-id":
			info.id = v
		case "version":
			info.version = v
		case "volume":
			info.volume = v
		case "location":
			info.location = v
		}
	}

	if info.id == "" || info.version == "" {
		return nil, fmt.Errorf("failed to parse pkgutil output")
	}

	if info.volume == "" {
		info.volume = systemVolume
	}

	return info, nil
}

func (s *Store) volume(target model.InstallTarget) (string, error) {
	if target == model.TargetUser {
		return s.home()
	}

	return systemVolume, nil
}

func installerTarget(target model.InstallTarget) string {
	if target == model.TargetUser {
		return "CurrentUserHomeDirectory"
	}

	return systemVolume
}

func (s *Store) pkgInfo(ctx context.Context, failure error, id string, volume string) (*pkgInfo, error) {
	out, err := s.Run(ctx, failure, nil, "pkgutil", "--pkg-info", id, "--volume", volume)
	if err != nil {
		return nil, err
	}

	info, err := parsePkgInfo(string(out))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", failure, id, err)
	}

	return info, nil
}

// Install runs installer for the package and confirms pkgutil reports the expected version
func (s *Store) Install(ctx context.Context, key model.PackageKey, target model.InstallTarget, payloadPath string) (*model.Receipt, error) {
	res, target, err := s.InstallFor(ctx, key, target)
	if err != nil {
		return nil, err
	}

	id := base.PackageName(res)

	volume, err := s.volume(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInstallerFailed, err)
	}

	path, err := filepath.Abs(payloadPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInstallerFailed, err)
	}

	_, err = s.Run(ctx, model.ErrInstallerFailed, nil, "installer", "-pkg", path, "-target", installerTarget(target))
	if err != nil {
		return nil, err
	}

	info, err := s.pkgInfo(ctx, model.ErrInstallerFailed, id, volume)
	if err != nil {
		return nil, err
	}

	if info.version != res.Version() && !versions.Equal(model.VersioningLoose, info.version, res.Version()) {
		return nil, fmt.Errorf("%w: pkgutil reports %s at version %s expected %s", model.ErrInstallerFailed, id, info.version, res.Version())
	}

	r := base.NewReceipt(res, target, id)

	return s.Commit(ctx, res, r)
}

// Uninstall removes the files pkgutil lists for the package and forgets it
func (s *Store) Uninstall(ctx context.Context, key model.PackageKey, target model.InstallTarget) error {
	r, target, err := s.InstalledReceipt(key, target)
	if err != nil {
		return err
	}

	id := r.Name
	if id == "" {
		id = key.ID
	}

	volume, err := s.volume(target)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrUninstallFailed, err)
	}

	info, err := s.pkgInfo(ctx, model.ErrUninstallFailed, id, volume)
	if err != nil {
		return err
	}

	out, err := s.Run(ctx, model.ErrUninstallFailed, nil, "pkgutil", "--files", id, "--volume", volume)
	if err != nil {
		return err
	}

	err = removeFiles(info.root(), strings.Split(strings.TrimSpace(string(out)), "\n"))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", model.ErrUninstallFailed, key, err)
	}

	_, err = s.Run(ctx, model.ErrUninstallFailed, nil, "pkgutil", "--forget", id, "--volume", volume)
	if err != nil {
		return err
	}

	return s.Forget(key, target)
}

// removeFiles deletes files below root deepest first, directories are only removed once empty
func removeFiles(root string, files []string) error {
	var paths []string
	for _, f := range files {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}

		p, err := iu.SafeJoin(root, f)
		if err != nil {
			return err
		}
		paths = append(paths, p)
	}

	slices.SortFunc(paths, func(a, b string) int { return len(b) - len(a) })

	for _, p := range paths {
		st, err := os.Lstat(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}

		if st.IsDir() {
			entries, err := os.ReadDir(p)
			if err != nil || len(entries) > 0 {
				continue
			}
		}

		err = os.Remove(p)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	return nil
}
