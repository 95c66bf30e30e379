// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package boundary

import (
	"fmt"
	"sync"

	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/transaction"
)

// Handle is an opaque reference to an object owned by a Table, 0 is never a valid handle
type Handle uint64

type entry struct {
	value   any
	refs    int
	release func() error
}

// Table holds reference counted objects handed out across the boundary
type Table struct {
	next    uint64
	entries map[Handle]*entry
	mu      sync.Mutex
}

// NewTable creates an empty handle table
func NewTable() *Table {
	return &Table{entries: make(map[Handle]*entry)}
}

// Add stores value with a reference count of 1, release is called when the count drops to zero and may be nil
func (t *Table) Add(value any, release func() error) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	h := Handle(t.next)
	t.entries[h] = &entry{value: value, refs: 1, release: release}

	return h
}

// Retain adds a reference to h
func (t *Table) Retain(h Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[h]
	if !ok {
		return fmt.Errorf("%w: %d", model.ErrInvalidHandle, h)
	}
	e.refs++

	return nil
}

// Release drops a reference to h, the object is released once no references remain
func (t *Table) Release(h Handle) error {
	t.mu.Lock()
	e, ok := t.entries[h]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", model.ErrInvalidHandle, h)
	}

	e.refs--
	if e.refs > 0 {
		t.mu.Unlock()
		return nil
	}
	delete(t.entries, h)
	t.mu.Unlock()

	if e.release != nil {
		return e.release()
	}

	return nil
}

// Len is the number of live handles
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}

func (t *Table) get(h Handle) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidHandle, h)
	}

	return e.value, nil
}

func lookup[T any](t *Table, h Handle, kind string) (T, error) {
	var zero T

	v, err := t.get(h)
	if err != nil {
		return zero, err
	}

	res, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %d is not a %s", model.ErrInvalidHandle, h, kind)
	}

	return res, nil
}

// Store looks up a store handle
func (t *Table) Store(h Handle) (model.PackageStore, error) {
	return lookup[model.PackageStore](t, h, "store")
}

// Transaction looks up a transaction handle
func (t *Table) Transaction(h Handle) (*transaction.Transaction, error) {
	return lookup[*transaction.Transaction](t, h, "transaction")
}

// Config looks up a configuration handle
func (t *Table) Config(h Handle) (*model.SharedConfig, error) {
	return lookup[*model.SharedConfig](t, h, "config")
}
