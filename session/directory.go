// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/segmentio/ksuid"

	iu "github.com/choria-io/pkgstore/internal/util"
	"github.com/choria-io/pkgstore/model"
)

var _ model.SessionStore = (*DirectorySessionStore)(nil)

// DirectorySessionStore stores transaction events in a directory of files, one file per event
type DirectorySessionStore struct {
	directory string
	log       model.Logger
	mu        sync.Mutex
}

// NewDirectorySessionStore creates a new directory of files based session store
func NewDirectorySessionStore(directory string, logger model.Logger) (*DirectorySessionStore, error) {
	if directory == "" {
		return nil, fmt.Errorf("session directory path cannot be empty")
	}

	// absolute and clean to avoid traversal through the configured path
	absDir, err := filepath.Abs(filepath.Clean(directory))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory path: %w", err)
	}

	logger.Debug("Creating new session store", "store", "directory", "path", absDir)

	return &DirectorySessionStore{
		log:       logger,
		directory: absDir,
	}, nil
}

// Directory is the directory events are stored in
func (s *DirectorySessionStore) Directory() string {
	return s.directory
}

// StartSession records the start of a transaction, creating the directory when needed
func (s *DirectorySessionStore) StartSession(transactionID string, actions []model.PackageAction) error {
	s.log.Debug("Creating new session record", "transaction", transactionID, "actions", len(actions), "store", "directory")

	s.mu.Lock()
	err := os.MkdirAll(s.directory, 0755)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return s.RecordEvent(model.NewSessionStartEvent(transactionID, actions))
}

// EventsForPackage returns all events for key, sorted in time order with the latest event at the end
func (s *DirectorySessionStore) EventsForPackage(key model.PackageKey) ([]model.TransactionEvent, error) {
	allEvents, err := s.AllEvents()
	if err != nil {
		return nil, err
	}

	return filterEvents(allEvents, key), nil
}

// EventsForTransaction returns the start event and all events of one transaction
func (s *DirectorySessionStore) EventsForTransaction(transactionID string) ([]model.SessionEvent, error) {
	allEvents, err := s.AllEvents()
	if err != nil {
		return nil, err
	}

	return transactionEvents(allEvents, transactionID), nil
}

// RecordEvent writes event to <event id>.event
func (s *DirectorySessionStore) RecordEvent(event model.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// ksuids are base62 so a valid id can not traverse out of the directory
	_, err := ksuid.Parse(event.SessionEventID())
	if err != nil {
		return fmt.Errorf("invalid event ID: %w", err)
	}

	if !iu.IsDirectory(s.directory) {
		return fmt.Errorf("session store %s does not exist", s.directory)
	}

	data, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return err
	}

	filename := filepath.Join(s.directory, event.SessionEventID()+".event")
	s.log.Debug("Recording event", "filename", filename)

	return iu.AtomicWriteFile(filename, data, 0644)
}

// StopSession summarizes all recorded events, destroy removes the directory
func (s *DirectorySessionStore) StopSession(destroy bool) (*model.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := s.allEventsUnlocked()
	if err != nil {
		return nil, err
	}

	summary := model.BuildSessionSummary(events)

	if destroy && iu.IsDirectory(s.directory) {
		err = os.RemoveAll(s.directory)
		if err != nil {
			s.log.Error("Failed to remove session directory", "error", err)
		}
	}

	return summary, nil
}

// AllEvents returns all events in the session sorted by time order, oldest first
func (s *DirectorySessionStore) AllEvents() ([]model.SessionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.allEventsUnlocked()
}

func (s *DirectorySessionStore) allEventsUnlocked() ([]model.SessionEvent, error) {
	var events []model.SessionEvent

	entries, err := os.ReadDir(s.directory)
	if err != nil {
		if os.IsNotExist(err) {
			return events, nil
		}
		return nil, fmt.Errorf("failed to read session directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".event") {
			continue
		}

		filename := filepath.Join(s.directory, entry.Name())
		data, err := os.ReadFile(filename)
		if err != nil {
			s.log.Error("Failed to read event file", "filename", filename, "error", err)
			continue
		}

		var eventType struct {
			Protocol string `json:"protocol"`
		}
		err = json.Unmarshal(data, &eventType)
		if err != nil {
			s.log.Error("Failed to parse event type", "filename", filename, "error", err)
			continue
		}

		var event model.SessionEvent
		switch eventType.Protocol {
		case model.SessionStartEventProtocol:
			var startEvent model.SessionStartEvent
			err = json.Unmarshal(data, &startEvent)
			if err != nil {
				s.log.Error("Failed to parse session start event", "filename", filename, "error", err)
				continue
			}
			event = &startEvent

		case model.TransactionEventProtocol:
			var txEvent model.TransactionEvent
			err = json.Unmarshal(data, &txEvent)
			if err != nil {
				s.log.Error("Failed to parse transaction event", "filename", filename, "error", err)
				continue
			}
			event = &txEvent

		default:
			s.log.Warn("Unknown event protocol", "filename", filename, "protocol", eventType.Protocol)
			continue
		}

		events = append(events, event)
	}

	// ksuids only sort by the second, timestamps order events within it
	sort.SliceStable(events, func(i, j int) bool {
		ti, tj := eventTime(events[i]), eventTime(events[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return events[i].SessionEventID() < events[j].SessionEventID()
	})

	return events, nil
}
