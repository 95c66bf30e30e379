// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package dnf

import (
	"context"

	"github.com/choria-io/pkgstore/internal/facts"
	"github.com/choria-io/pkgstore/internal/registry"
	"github.com/choria-io/pkgstore/model"
)

// Register registers this backend with the registry
func Register() {
	registry.MustRegister(&factory{})
}

type factory struct{}

func (f *factory) Name() string { return BackendName }

func (f *factory) IsManageable(fct map[string]any) (bool, int, error) {
	platform, _ := facts.Platform(fct)
	if platform != "linux" {
		return false, 0, nil
	}

	for _, tool := range []string{"dnf", "rpm"} {
		if !facts.HasTool(fct, tool) {
			return false, 0, nil
		}
	}

	return true, 1, nil
}

func (f *factory) Open(ctx context.Context, opts model.StoreOptions) (model.PackageStore, error) {
	s, err := Open(ctx, opts)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (f *factory) Create(ctx context.Context, opts model.StoreOptions) (model.PackageStore, error) {
	s, err := Create(ctx, opts)
	if err != nil {
		return nil, err
	}

	return s, nil
}
