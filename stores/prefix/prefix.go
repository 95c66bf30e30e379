// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package prefix installs tarball payloads into a self contained directory
package prefix

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/choria-io/pkgstore/internal/archive"
	iu "github.com/choria-io/pkgstore/internal/util"
	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/receipts"
	"github.com/choria-io/pkgstore/stores/base"
)

const (
	BackendName = "prefix"

	packagesDir  = "pkg"
	stagingDir   = ".staging"
	receiptsFile = "receipts.db"
)

var _ model.PackageStore = (*Store)(nil)

// Store installs TarballPackage payloads into <prefix>/pkg/<id>
type Store struct {
	*base.Core

	receipts *receipts.SQLiteStore
	pkgDir   string
	staging  string
	mu       sync.Mutex
}

// Open attaches to the prefix store in opts.Location
func Open(ctx context.Context, opts model.StoreOptions) (*Store, error) {
	return open(opts, false)
}

// Create initializes a prefix store in opts.Location
func Create(ctx context.Context, opts model.StoreOptions) (*Store, error) {
	return open(opts, true)
}

func open(opts model.StoreOptions, create bool) (*Store, error) {
	cfg, err := base.LoadConfig(opts, create)
	if err != nil {
		return nil, err
	}

	if opts.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	s := &Store{
		pkgDir:  filepath.Join(opts.Location, packagesDir),
		staging: filepath.Join(opts.Location, stagingDir),
	}

	log := opts.Logger.With("store", BackendName, "location", opts.Location)

	s.receipts, err = receipts.NewSQLiteStore(filepath.Join(opts.Location, receiptsFile), func(pending *model.Receipt) error {
		log.Warn("Discarding interrupted install", "package", pending.ID, "version", pending.Version)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// anything left in staging belongs to an install or uninstall that did not finish
	err = os.RemoveAll(s.staging)
	if err != nil {
		s.receipts.Close()
		return nil, err
	}

	s.Core, err = base.NewCore(cfg, opts, base.Options{
		Name:         BackendName,
		PayloadTypes: []model.PayloadType{model.TarballPackage},
		Targets:      []model.InstallTarget{model.TargetPrefix},
		Receipts:     s.receipts,
	})
	if err != nil {
		s.receipts.Close()
		return nil, err
	}

	return s, nil
}

// PackageDir is where the files of package id are installed
func (s *Store) PackageDir(id string) (string, error) {
	return iu.SafeJoin(s.pkgDir, id)
}

// Install extracts payloadPath into the package directory and records the receipt
func (s *Store) Install(ctx context.Context, key model.PackageKey, target model.InstallTarget, payloadPath string) (*model.Receipt, error) {
	target, err := s.Target(target)
	if err != nil {
		return nil, err
	}

	res, err := s.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	if res.Payload().Type != model.TarballPackage {
		return nil, fmt.Errorf("%w: %s: unsupported payload type %s", model.ErrInstallerFailed, key, res.Payload().Type)
	}

	dest, err := s.PackageDir(key.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInstallerFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = os.MkdirAll(s.staging, 0755)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInstallerFailed, err)
	}

	work, err := os.MkdirTemp(s.staging, key.ID+"-")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInstallerFailed, err)
	}
	defer os.RemoveAll(work)

	extracted := filepath.Join(work, "new")
	files, err := archive.ExtractTarFile(ctx, payloadPath, extracted)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrInstallerFailed, key, err)
	}

	receipt := &model.Receipt{
		Key:         key,
		ID:          key.ID,
		Target:      target,
		Version:     res.Version(),
		PayloadType: model.TarballPackage,
		Files:       files,
		InstalledAt: time.Now().UTC(),
	}

	err = s.receipts.BeginInstall(receipt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInstallerFailed, err)
	}

	old := filepath.Join(work, "old")
	hadOld, err := s.swap(extracted, dest, old)
	if err != nil {
		s.receipts.AbortInstall(key.ID, target)
		return nil, fmt.Errorf("%w: %s: %w", model.ErrInstallerFailed, key, err)
	}

	err = s.CheckInstall(ctx, res, target)
	if err != nil {
		s.rollback(dest, old, hadOld)
		s.receipts.AbortInstall(key.ID, target)
		return nil, err
	}

	err = s.receipts.CommitInstall(key.ID, target)
	if err != nil {
		s.rollback(dest, old, hadOld)
		return nil, fmt.Errorf("%w: %s: %w", model.ErrInstallerFailed, key, err)
	}

	s.Logger().Info("Installed package", "package", key.String(), "version", receipt.Version, "files", len(files), "dir", dest)

	return receipt, nil
}

// swap moves next into dest, parking a previous install in old and restoring it on failure
func (s *Store) swap(next string, dest string, old string) (bool, error) {
	err := os.MkdirAll(filepath.Dir(dest), 0755)
	if err != nil {
		return false, err
	}

	hadOld := iu.IsDirectory(dest)
	if hadOld {
		err = os.Rename(dest, old)
		if err != nil {
			return false, err
		}
	}

	err = os.Rename(next, dest)
	if err != nil {
		if hadOld {
			os.Rename(old, dest)
		}
		return false, err
	}

	return hadOld, nil
}

// rollback removes a failed install from dest and restores the previous one parked in old
func (s *Store) rollback(dest string, old string, hadOld bool) {
	err := os.RemoveAll(dest)
	if err != nil {
		s.Logger().Error("Could not remove failed install", "dir", dest, "error", err)
		return
	}

	if !hadOld {
		return
	}

	err = os.Rename(old, dest)
	if err != nil {
		s.Logger().Error("Could not restore previous install", "dir", dest, "error", err)
	}
}

// Uninstall removes the receipt and then the package directory, an interrupted uninstall
// leaves files without a receipt that a later install replaces
func (s *Store) Uninstall(ctx context.Context, key model.PackageKey, target model.InstallTarget) error {
	target, err := s.Target(target)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.receipts.Get(key.ID, target)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", model.ErrUninstallFailed, key, err)
	}

	dest, err := s.PackageDir(key.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrUninstallFailed, err)
	}

	err = s.receipts.Remove(key.ID, target)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", model.ErrUninstallFailed, key, err)
	}

	if iu.IsDirectory(dest) {
		err = os.MkdirAll(s.staging, 0755)
		if err != nil {
			return fmt.Errorf("%w: %w", model.ErrUninstallFailed, err)
		}

		work, err := os.MkdirTemp(s.staging, key.ID+"-")
		if err != nil {
			return fmt.Errorf("%w: %w", model.ErrUninstallFailed, err)
		}
		defer os.RemoveAll(work)

		err = os.Rename(dest, filepath.Join(work, "old"))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s: %w", model.ErrUninstallFailed, key, err)
		}
	}

	s.Logger().Info("Uninstalled package", "package", key.String(), "dir", dest)

	return nil
}
