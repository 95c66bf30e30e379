// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package registry holds the store backends compiled into the binary
package registry

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/choria-io/pkgstore/model"
)

var (
	factories = make(map[string]model.StoreFactory)
	mu        sync.Mutex
)

// Clear removes all registered backends
func Clear() {
	mu.Lock()
	defer mu.Unlock()

	factories = make(map[string]model.StoreFactory)
}

// Register registers a store backend, names must be unique
func Register(f model.StoreFactory) error {
	mu.Lock()
	defer mu.Unlock()

	name := f.Name()
	if name == "" {
		return fmt.Errorf("%w: backend has no name", model.ErrBackendNotFound)
	}

	_, ok := factories[name]
	if ok {
		return model.ErrDuplicateBackend
	}

	factories[name] = f

	return nil
}

// MustRegister registers a backend and panics if registration fails
func MustRegister(f model.StoreFactory) {
	err := Register(f)
	if err != nil {
		panic(err)
	}
}

// Backends returns the sorted names of all registered backends
func Backends() []string {
	mu.Lock()
	defer mu.Unlock()

	return slices.Sorted(maps.Keys(factories))
}

// selectFactories returns the backends that can manage the machine described by facts, lowest priority value first
func selectFactories(facts map[string]any, log model.Logger) []model.StoreFactory {
	mu.Lock()
	defer mu.Unlock()

	type matched struct {
		prio    int
		factory model.StoreFactory
	}

	var found []matched

	for _, f := range factories {
		ok, priority, err := f.IsManageable(facts)
		if err != nil {
			log.Warn("Could not check if backend is manageable", "backend", f.Name(), "err", err)
			continue
		}

		if ok {
			found = append(found, matched{priority, f})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].prio == found[j].prio {
			return found[i].factory.Name() < found[j].factory.Name()
		}
		return found[i].prio < found[j].prio
	})

	var result []model.StoreFactory
	for _, v := range found {
		result = append(result, v.factory)
	}

	return result
}

// selectFactory finds a backend by name and checks it's manageable before returning it
func selectFactory(name string, facts map[string]any, log model.Logger) (model.StoreFactory, error) {
	mu.Lock()
	defer mu.Unlock()

	f, ok := factories[name]
	if !ok {
		log.Debug("No backend found", "backend", name)
		return nil, fmt.Errorf("%w: %s", model.ErrBackendNotFound, name)
	}

	ok, _, err := f.IsManageable(facts)
	if err != nil {
		log.Debug("Backend detection failed", "backend", name, "err", err)
		return nil, fmt.Errorf("%w: %w", model.ErrBackendNotManageable, err)
	}

	if !ok {
		log.Debug("Backend cannot be used", "backend", name)
		return nil, fmt.Errorf("%w: %s is not applicable to this machine", model.ErrBackendNotManageable, name)
	}

	return f, nil
}

// FindSuitableBackend selects the named backend, or when name is empty the most suitable one for the machine
func FindSuitableBackend(name string, facts map[string]any, log model.Logger) (model.StoreFactory, error) {
	if name != "" {
		return selectFactory(name, facts, log)
	}

	found := selectFactories(facts, log)
	if len(found) == 0 {
		return nil, model.ErrNoSuitableBackend
	}

	log.Debug("Selected backend", "backend", found[0].Name(), "candidates", len(found))

	return found[0], nil
}
