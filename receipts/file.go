// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package receipts persists records of installed packages
package receipts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	iu "github.com/choria-io/pkgstore/internal/util"
	"github.com/choria-io/pkgstore/model"
)

const fileExt = ".json"

// FileStore keeps one JSON document per package and target below a directory.
//
// Documents are replaced atomically so a crash leaves either the old or the new receipt
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

var _ model.ReceiptStore = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir, the directory is created on first write
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(id string, target model.InstallTarget) (string, error) {
	if target == model.TargetDefault {
		return "", fmt.Errorf("%w: receipts require a target", model.ErrUnsupportedTarget)
	}

	p, err := iu.SafeJoin(s.dir, filepath.Join(string(target), id+fileExt))
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrInvalidPackageKey, err)
	}

	return p, nil
}

func (s *FileStore) Get(id string, target model.InstallTarget) (*model.Receipt, error) {
	p, err := s.path(id, target)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return readReceipt(p)
}

func readReceipt(p string) (*model.Receipt, error) {
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, model.ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}

	var r model.Receipt
	err = json.Unmarshal(b, &r)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt %s: %w", p, err)
	}

	return &r, nil
}

func (s *FileStore) Put(receipt *model.Receipt) error {
	p, err := s.path(receipt.ID, receipt.Target)
	if err != nil {
		return err
	}

	j, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return iu.AtomicWriteFile(p, j, 0644)
}

func (s *FileStore) Remove(id string, target model.InstallTarget) error {
	p, err := s.path(id, target)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = os.Remove(p)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return err
	}

	return iu.SyncDir(filepath.Dir(p))
}

func (s *FileStore) List(target model.InstallTarget) ([]*model.Receipt, error) {
	if target == model.TargetDefault {
		return nil, fmt.Errorf("%w: receipts require a target", model.ErrUnsupportedTarget)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := filepath.Join(s.dir, string(target))
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var res []*model.Receipt
	for _, entry := range entries {
		// temp files from interrupted writes start with a dot
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || filepath.Ext(entry.Name()) != fileExt {
			continue
		}

		r, err := readReceipt(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })

	return res, nil
}

func (s *FileStore) Close() error { return nil }
