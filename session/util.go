// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"time"

	"github.com/choria-io/pkgstore/model"
)

func filterEvents(allEvents []model.SessionEvent, key model.PackageKey) []model.TransactionEvent {
	var filtered []model.TransactionEvent
	for _, event := range allEvents {
		txEvent, ok := event.(*model.TransactionEvent)
		if !ok {
			continue
		}

		if txEvent.Key == key {
			filtered = append(filtered, *txEvent)
		}
	}

	return filtered
}

func transactionEvents(allEvents []model.SessionEvent, transactionID string) []model.SessionEvent {
	var filtered []model.SessionEvent
	for _, event := range allEvents {
		switch e := event.(type) {
		case *model.TransactionEvent:
			if e.TransactionID == transactionID {
				filtered = append(filtered, e)
			}
		case *model.SessionStartEvent:
			if e.TransactionID == transactionID {
				filtered = append(filtered, e)
			}
		}
	}

	return filtered
}

func eventTime(event model.SessionEvent) time.Time {
	switch e := event.(type) {
	case *model.TransactionEvent:
		return e.TimeStamp
	case *model.SessionStartEvent:
		return e.TimeStamp
	default:
		return time.Time{}
	}
}
