// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"fmt"
	"maps"

	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/session"
)

// Option is a functional option for configuring the Manager
type Option func(*Manager) error

// WithSessionDirectory keeps the session journal in a directory so history survives restarts
func WithSessionDirectory(path string) Option {
	return func(m *Manager) error {
		log, err := m.Logger("session", "directory", "path", path)
		if err != nil {
			return err
		}

		sess, err := session.NewDirectorySessionStore(path, log)
		if err != nil {
			return err
		}

		m.session = sess

		return nil
	}
}

// WithSession sets the session store to use
func WithSession(sess model.SessionStore) Option {
	return func(m *Manager) error {
		if sess == nil {
			return fmt.Errorf("session store is required")
		}

		m.session = sess

		return nil
	}
}

// WithPaths overrides the default directories
func WithPaths(paths model.PathProvider) Option {
	return func(m *Manager) error {
		if paths == nil {
			return fmt.Errorf("path provider is required")
		}

		m.paths = paths

		return nil
	}
}

// WithFactsDirectories sets the directories searched for facts.json and facts.yaml
func WithFactsDirectories(dirs ...string) Option {
	return func(m *Manager) error {
		m.factsDirs = append([]string{}, dirs...)
		return nil
	}
}

// WithFacts uses facts instead of gathering them from the machine
func WithFacts(facts map[string]any) Option {
	return func(m *Manager) error {
		if facts == nil {
			return fmt.Errorf("facts are required")
		}

		m.facts = maps.Clone(facts)

		return nil
	}
}

// WithRunner sets the command runner given to stores
func WithRunner(runner model.CommandRunner) Option {
	return func(m *Manager) error {
		m.runner = runner
		return nil
	}
}
