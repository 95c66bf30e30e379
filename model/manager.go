// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
	"encoding/json"
)

//go:generate mockgen -destination=modelmocks/manager_mock.go -package=modelmocks github.com/choria-io/pkgstore/model Logger,Manager

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

type Manager interface {
	FactsRaw(ctx context.Context) (json.RawMessage, error)
	Facts(ctx context.Context) (map[string]any, error)
	Logger(args ...any) (Logger, error)
	NewRunner() (CommandRunner, error)
	Paths() PathProvider

	// OpenStore attaches to an existing store, an empty backend selects one suitable for the machine
	OpenStore(ctx context.Context, backend string, location string) (PackageStore, error)
	// CreateStore initializes a new store, an empty backend selects one suitable for the machine
	CreateStore(ctx context.Context, backend string, location string) (PackageStore, error)

	Session() SessionStore
	RecordEvent(event SessionEvent) error
}
