// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package receipts

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/choria-io/pkgstore/model"
)

const (
	statusPending   = "pending"
	statusInstalled = "installed"
)

const schema = `
CREATE TABLE IF NOT EXISTS receipts (
    id           TEXT NOT NULL,
    target       TEXT NOT NULL,
    status       TEXT NOT NULL DEFAULT 'installed',
    key          TEXT NOT NULL,
    version      TEXT NOT NULL,
    payload_type TEXT NOT NULL DEFAULT '',
    name         TEXT NOT NULL DEFAULT '',
    product_code TEXT NOT NULL DEFAULT '',
    files        TEXT NOT NULL DEFAULT '[]',
    installed_at TEXT NOT NULL,
    PRIMARY KEY (id, target, status)
);
`

// SQLiteStore keeps receipts in a sqlite database.
//
// Installs are two phase: BeginInstall records a pending row which CommitInstall promotes, rows left
// pending by a crash are handed to the recovery function when the store is opened
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

var _ model.ReceiptStore = (*SQLiteStore)(nil)

// RecoverFunc cleans up after an install that was interrupted, it receives the pending receipt
type RecoverFunc func(pending *model.Receipt) error

// NewSQLiteStore opens or creates the database at path and recovers interrupted installs
func NewSQLiteStore(path string, recover RecoverFunc) (*SQLiteStore, error) {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create receipt directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a single connection serializes writers without busy errors
	db.SetMaxOpenConns(1)

	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}

	err = s.recover(recover)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to recover: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) recover(fn RecoverFunc) error {
	pending, err := s.list(statusPending, "")
	if err != nil {
		return err
	}

	for _, r := range pending {
		if fn != nil {
			err = fn(r)
			if err != nil {
				return fmt.Errorf("%s: %w", r.ID, err)
			}
		}

		_, err = s.db.Exec("DELETE FROM receipts WHERE id = ? AND target = ? AND status = ?", r.ID, string(r.Target), statusPending)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLiteStore) insert(tx *sql.Tx, r *model.Receipt, status string) error {
	files, err := json.Marshal(r.Files)
	if err != nil {
		return err
	}
	if r.Files == nil {
		files = []byte("[]")
	}

	installedAt := r.InstalledAt
	if installedAt.IsZero() {
		installedAt = time.Now().UTC()
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO receipts (id, target, status, key, version, payload_type, name, product_code, files, installed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Target), status, r.Key.String(), r.Version, string(r.PayloadType), r.Name, r.ProductCode, string(files), installedAt.Format(time.RFC3339Nano))

	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row scanner) (*model.Receipt, error) {
	var (
		r                                          model.Receipt
		target, key, payloadType, files, installed string
	)

	err := row.Scan(&r.ID, &target, &key, &r.Version, &payloadType, &r.Name, &r.ProductCode, &files, &installed)
	if err != nil {
		return nil, err
	}

	r.Target = model.InstallTarget(target)
	r.PayloadType = model.PayloadType(payloadType)

	r.Key, err = model.ParsePackageKey(key)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt for %s: %w", r.ID, err)
	}

	err = json.Unmarshal([]byte(files), &r.Files)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt for %s: %w", r.ID, err)
	}

	r.InstalledAt, err = time.Parse(time.RFC3339Nano, installed)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt for %s: %w", r.ID, err)
	}

	return &r, nil
}

const selectColumns = "SELECT id, target, key, version, payload_type, name, product_code, files, installed_at FROM receipts"

func (s *SQLiteStore) Get(id string, target model.InstallTarget) (*model.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanReceipt(s.db.QueryRow(selectColumns+" WHERE id = ? AND target = ? AND status = ?", id, string(target), statusInstalled))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrReceiptNotFound
	}

	return r, err
}

// Put records an installed receipt, replacing any previous one
func (s *SQLiteStore) Put(receipt *model.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = s.insert(tx, receipt, statusInstalled)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// BeginInstall records receipt as pending, the installed receipt if any stays current
func (s *SQLiteStore) BeginInstall(receipt *model.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = s.insert(tx, receipt, statusPending)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// CommitInstall replaces the installed receipt with the pending one in a single transaction
func (s *SQLiteStore) CommitInstall(id string, target model.InstallTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec("DELETE FROM receipts WHERE id = ? AND target = ? AND status = ?", id, string(target), statusInstalled)
	if err != nil {
		return err
	}

	res, err := tx.Exec("UPDATE receipts SET status = ? WHERE id = ? AND target = ? AND status = ?", statusInstalled, id, string(target), statusPending)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w: no pending install of %s", model.ErrReceiptNotFound, id)
	}

	return tx.Commit()
}

// AbortInstall discards a pending receipt
func (s *SQLiteStore) AbortInstall(id string, target model.InstallTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM receipts WHERE id = ? AND target = ? AND status = ?", id, string(target), statusPending)

	return err
}

func (s *SQLiteStore) Remove(id string, target model.InstallTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM receipts WHERE id = ? AND target = ? AND status = ?", id, string(target), statusInstalled)

	return err
}

func (s *SQLiteStore) List(target model.InstallTarget) ([]*model.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.list(statusInstalled, target)
}

// Pending lists installs that were started but not committed
func (s *SQLiteStore) Pending() ([]*model.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.list(statusPending, "")
}

func (s *SQLiteStore) list(status string, target model.InstallTarget) ([]*model.Receipt, error) {
	query := selectColumns + " WHERE status = ?"
	args := []any{status}
	if target != model.TargetDefault {
		query += " AND target = ?"
		args = append(args, string(target))
	}
	query += " ORDER BY id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*model.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}

	return res, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
