// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"errors"
)

var (
	ErrInvalidPackageKey    = errors.New("invalid package key")
	ErrInvalidRepository    = errors.New("invalid repository")
	ErrInvalidVersion       = errors.New("invalid version")
	ErrInvalidIndex         = errors.New("invalid repository index")
	ErrInvalidAction        = errors.New("invalid package action")
	ErrInvalidConfig        = errors.New("invalid store configuration")
	ErrRepositoryNotFound   = errors.New("repository not found")
	ErrPackageNotFound      = errors.New("package not found")
	ErrNoConcretePackage    = errors.New("package is virtual")
	ErrNoInstaller          = errors.New("no installer for this platform")
	ErrUnsupportedTarget    = errors.New("install target not supported by store")
	ErrStoreNotFound        = errors.New("store not found")
	ErrStoreExists          = errors.New("store already exists")
	ErrDownloadFailed       = errors.New("download failed")
	ErrDownloadCancelled    = errors.New("download cancelled")
	ErrChecksumMismatch     = errors.New("checksum mismatch")
	ErrImportMismatch       = errors.New("payload does not match package")
	ErrNotCached            = errors.New("payload not cached")
	ErrInstallerFailed      = errors.New("installer failed")
	ErrUninstallFailed      = errors.New("uninstaller failed")
	ErrVerificationFailed   = errors.New("verification failed")
	ErrReceiptNotFound      = errors.New("receipt not found")
	ErrTransactionInvalid   = errors.New("invalid transaction")
	ErrTransactionProcessed = errors.New("transaction already processed")
	ErrInvalidHandle        = errors.New("invalid handle")
	ErrBackendNotFound      = errors.New("backend not found")
	ErrBackendNotManageable = errors.New("backend is not manageable")
	ErrNoSuitableBackend    = errors.New("no suitable backend found")
	ErrDuplicateBackend     = errors.New("backend already exists")
)
