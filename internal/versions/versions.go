// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package versions compares package versions under the schemes repositories may declare
package versions

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	rpmutils "github.com/sassoftware/go-rpmutils"

	iu "github.com/choria-io/pkgstore/internal/util"
	"github.com/choria-io/pkgstore/model"
)

// Validate checks that v parses under scheme
func Validate(scheme string, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: empty version", model.ErrInvalidVersion)
	}

	switch scheme {
	case model.VersioningSemver, "":
		_, err := semver.NewVersion(v)
		if err != nil {
			return fmt.Errorf("%w: %q: %w", model.ErrInvalidVersion, v, err)
		}

	case model.VersioningDebian:
		_, err := ParseDebian(v)
		if err != nil {
			return fmt.Errorf("%w: %w", model.ErrInvalidVersion, err)
		}

	case model.VersioningLoose, model.VersioningRpm:

	default:
		return fmt.Errorf("%w: unknown versioning scheme %q", model.ErrInvalidVersion, scheme)
	}

	return nil
}

// Compare returns -1, 0 or 1 when a is lower, equal or higher than b under scheme
func Compare(scheme string, a string, b string) (int, error) {
	err := Validate(scheme, a)
	if err != nil {
		return 0, err
	}

	err = Validate(scheme, b)
	if err != nil {
		return 0, err
	}

	switch scheme {
	case model.VersioningDebian:
		va, _ := ParseDebian(a)
		vb, _ := ParseDebian(b)
		return va.Compare(vb), nil

	case model.VersioningLoose:
		return iu.VersionCmp(a, b, true), nil

	case model.VersioningRpm:
		return rpmutils.Vercmp(a, b), nil

	default:
		va, _ := semver.NewVersion(a)
		vb, _ := semver.NewVersion(b)
		return va.Compare(vb), nil
	}
}

// Equal reports if a and b are the same version under scheme, unparsable versions compare as strings
func Equal(scheme string, a string, b string) bool {
	cmp, err := Compare(scheme, a, b)
	if err != nil {
		return a == b
	}

	return cmp == 0
}
