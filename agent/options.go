// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"fmt"
	"time"
)

// Option configures an Agent
type Option func(a *Agent) error

// WithRefreshInterval sets the time between repository index refreshes
func WithRefreshInterval(i time.Duration) Option {
	return func(a *Agent) error {
		if i < MinRefreshInterval {
			return fmt.Errorf("refresh interval must be at least %v", MinRefreshInterval)
		}

		a.cfg.refreshIntervalDuration = i
		return nil
	}
}

// WithStore sets the backend and location of the store to serve
func WithStore(backend string, location string) Option {
	return func(a *Agent) error {
		a.cfg.Backend = backend
		a.cfg.Location = location
		return nil
	}
}

// WithSubjectPrefix sets the NATS subject prefix
func WithSubjectPrefix(prefix string) Option {
	return func(a *Agent) error {
		if prefix == "" {
			return fmt.Errorf("subject prefix is required")
		}

		a.cfg.SubjectPrefix = prefix
		return nil
	}
}
