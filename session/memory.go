// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"sync"

	"github.com/choria-io/pkgstore/model"
)

var _ model.SessionStore = (*MemorySessionStore)(nil)

// MemorySessionStore keeps transaction events in memory for the life of the process
type MemorySessionStore struct {
	events []model.SessionEvent
	log    model.Logger
	mu     sync.Mutex
}

// NewMemorySessionStore creates a new in-memory session store
func NewMemorySessionStore(logger model.Logger) (*MemorySessionStore, error) {
	logger.Debug("Creating new session store", "store", "memory")

	return &MemorySessionStore{
		log:    logger,
		events: make([]model.SessionEvent, 0),
	}, nil
}

// StartSession records the start of a transaction
func (s *MemorySessionStore) StartSession(transactionID string, actions []model.PackageAction) error {
	s.log.Debug("Creating new session record", "transaction", transactionID, "actions", len(actions), "store", "memory")

	return s.RecordEvent(model.NewSessionStartEvent(transactionID, actions))
}

// RecordEvent adds an event to the session
func (s *MemorySessionStore) RecordEvent(event model.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)

	return nil
}

// StopSession summarizes all recorded events, destroy discards them
func (s *MemorySessionStore) StopSession(destroy bool) (*model.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := model.BuildSessionSummary(s.events)

	if destroy {
		s.events = make([]model.SessionEvent, 0)
	}

	return summary, nil
}

// EventsForPackage returns all events for key in time order with the latest event at the end
func (s *MemorySessionStore) EventsForPackage(key model.PackageKey) ([]model.TransactionEvent, error) {
	allEvents, err := s.AllEvents()
	if err != nil {
		return nil, err
	}

	return filterEvents(allEvents, key), nil
}

// EventsForTransaction returns the start event and all events of one transaction
func (s *MemorySessionStore) EventsForTransaction(transactionID string) ([]model.SessionEvent, error) {
	allEvents, err := s.AllEvents()
	if err != nil {
		return nil, err
	}

	return transactionEvents(allEvents, transactionID), nil
}

// AllEvents returns all events in the session in time order
func (s *MemorySessionStore) AllEvents() ([]model.SessionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eventsCopy := make([]model.SessionEvent, len(s.events))
	copy(eventsCopy, s.events)

	return eventsCopy, nil
}
