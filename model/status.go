// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"errors"
	"fmt"
)

// PackageStatus describes the install state of a package for a target.
//
// The numeric values cross the foreign boundary and must never be renumbered
type PackageStatus int8

const (
	StatusNotInstalled        PackageStatus = 0
	StatusUpToDate            PackageStatus = 1
	StatusRequiresUpdate      PackageStatus = 2
	StatusVersionSkipped      PackageStatus = 3
	StatusErrorNoInstaller    PackageStatus = -2
	StatusErrorWrongPlatform  PackageStatus = -3
	StatusErrorParsingVersion PackageStatus = -4
)

func (s PackageStatus) String() string {
	switch s {
	case StatusNotInstalled:
		return "not_installed"
	case StatusUpToDate:
		return "up_to_date"
	case StatusRequiresUpdate:
		return "requires_update"
	case StatusVersionSkipped:
		return "version_skipped"
	case StatusErrorNoInstaller:
		return "error_no_installer"
	case StatusErrorWrongPlatform:
		return "error_wrong_platform"
	case StatusErrorParsingVersion:
		return "error_parsing_version"
	default:
		return fmt.Sprintf("unknown(%d)", int8(s))
	}
}

// IsError is true for the statuses that describe a problem rather than an install state
func (s PackageStatus) IsError() bool {
	return s < 0
}

// IsInstalled is true when a receipt exists for the package
func (s PackageStatus) IsInstalled() bool {
	switch s {
	case StatusUpToDate, StatusRequiresUpdate, StatusVersionSkipped:
		return true
	default:
		return false
	}
}

// StatusErrorKind classifies hard status failures, values are negative so they never overlap
// with a PackageStatus on the boundary
type StatusErrorKind int8

const (
	StatusErrorInternal        StatusErrorKind = -1
	StatusErrorNoRepository    StatusErrorKind = -10
	StatusErrorNoPackage       StatusErrorKind = -11
	StatusErrorNoConcrete      StatusErrorKind = -12
	StatusErrorInvalidMetadata StatusErrorKind = -13
	StatusErrorReceipt         StatusErrorKind = -14
)

func (k StatusErrorKind) String() string {
	switch k {
	case StatusErrorNoRepository:
		return "no repository"
	case StatusErrorNoPackage:
		return "no package"
	case StatusErrorNoConcrete:
		return "no concrete package"
	case StatusErrorInvalidMetadata:
		return "invalid metadata"
	case StatusErrorReceipt:
		return "receipt unreadable"
	default:
		return "internal error"
	}
}

// PackageStatusError is a hard failure of a status query, it never means the package is not installed
type PackageStatusError struct {
	Key  PackageKey
	Kind StatusErrorKind
	Err  error
}

// NewStatusError creates a PackageStatusError
func NewStatusError(key PackageKey, kind StatusErrorKind, err error) *PackageStatusError {
	return &PackageStatusError{Key: key, Kind: kind, Err: err}
}

func (e *PackageStatusError) Error() string {
	return fmt.Sprintf("status of %s failed: %s: %v", e.Key, e.Kind, e.Err)
}

func (e *PackageStatusError) Unwrap() error {
	return e.Err
}

// StatusResult is the outcome of one status query in a batch
type StatusResult struct {
	Status PackageStatus `json:"status"`
	Error  error         `json:"-"`
}

// Code is the boundary code for the result, hard errors map to their StatusErrorKind
func (r StatusResult) Code() int8 {
	if r.Error == nil {
		return int8(r.Status)
	}

	var se *PackageStatusError
	if errors.As(r.Error, &se) {
		return int8(se.Kind)
	}

	return int8(StatusErrorInternal)
}
