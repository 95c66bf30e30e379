// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
)

//go:generate mockgen -destination=modelmocks/session_mock.go -package=modelmocks github.com/choria-io/pkgstore/model SessionStore

type SessionEvent interface {
	SessionEventID() string
	String() string
}

// SessionStore records the events of processed transactions
type SessionStore interface {
	StartSession(transactionID string, actions []PackageAction) error
	StopSession(destroy bool) (*SessionSummary, error)
	RecordEvent(SessionEvent) error
	EventsForPackage(key PackageKey) ([]TransactionEvent, error)
	AllEvents() ([]SessionEvent, error)
}

const TransactionEventProtocol = "io.choria.pkgstore.v1.transaction.event"
const SessionStartEventProtocol = "io.choria.pkgstore.v1.session.start"

// EventCode is the event number sent across the foreign boundary.
//
// Codes are append only, existing codes are never renumbered
type EventCode uint32

const (
	EventNotStarted       EventCode = 0
	EventUninstalling     EventCode = 1
	EventInstalling       EventCode = 2
	EventCompleted        EventCode = 3
	EventError            EventCode = 4
	EventDownloading      EventCode = 5
	EventDownloadProgress EventCode = 6
	EventVerifying        EventCode = 7
)

func (c EventCode) String() string {
	switch c {
	case EventNotStarted:
		return "not_started"
	case EventUninstalling:
		return "uninstalling"
	case EventInstalling:
		return "installing"
	case EventCompleted:
		return "completed"
	case EventError:
		return "error"
	case EventDownloading:
		return "downloading"
	case EventDownloadProgress:
		return "download_progress"
	case EventVerifying:
		return "verifying"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(c))
	}
}

// ErrorKind tells which stage of an action failed
type ErrorKind string

const (
	ErrorKindDownload  ErrorKind = "download"
	ErrorKindInstall   ErrorKind = "install"
	ErrorKindUninstall ErrorKind = "uninstall"
	ErrorKindVerify    ErrorKind = "verify"
)

// **NOTE** If this change also update metrics, event summary and cmd

// TransactionEvent is a single progress event of a transaction
type TransactionEvent struct {
	Protocol      string        `json:"protocol" yaml:"protocol"`
	EventID       string        `json:"event_id" yaml:"event_id"`
	TransactionID string        `json:"transaction_id" yaml:"transaction_id"`
	TimeStamp     time.Time     `json:"timestamp" yaml:"timestamp"`
	Tag           uint32        `json:"tag" yaml:"tag"`
	Store         string        `json:"store" yaml:"store"`
	Key           PackageKey    `json:"key" yaml:"key"`
	Target        InstallTarget `json:"target,omitempty" yaml:"target,omitempty"`
	Action        ActionKind    `json:"action" yaml:"action"`
	Code          EventCode     `json:"code" yaml:"code"`
	Version       string        `json:"version,omitempty" yaml:"version,omitempty"`
	Downloaded    uint64        `json:"downloaded,omitempty" yaml:"downloaded,omitempty"`
	Total         uint64        `json:"total,omitempty" yaml:"total,omitempty"`
	Duration      time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	ErrorKind     ErrorKind     `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error         string        `json:"error,omitempty" yaml:"error,omitempty"`
}

type SessionStartEvent struct {
	Protocol      string          `json:"protocol" yaml:"protocol"`
	EventID       string          `json:"event_id" yaml:"event_id"`
	TransactionID string          `json:"transaction_id" yaml:"transaction_id"`
	TimeStamp     time.Time       `json:"timestamp" yaml:"timestamp"`
	Actions       []PackageAction `json:"actions" yaml:"actions"`
}

func NewSessionStartEvent(transactionID string, actions []PackageAction) *SessionStartEvent {
	return &SessionStartEvent{
		Protocol:      SessionStartEventProtocol,
		EventID:       ksuid.New().String(),
		TransactionID: transactionID,
		TimeStamp:     time.Now().UTC(),
		Actions:       actions,
	}
}

func NewTransactionEvent(transactionID string, action PackageAction, code EventCode) *TransactionEvent {
	return &TransactionEvent{
		Protocol:      TransactionEventProtocol,
		EventID:       ksuid.New().String(),
		TransactionID: transactionID,
		TimeStamp:     time.Now().UTC(),
		Key:           action.Key,
		Target:        action.Target,
		Action:        action.Action,
		Code:          code,
	}
}

func (t *SessionStartEvent) SessionEventID() string { return t.EventID }
func (t *SessionStartEvent) String() string {
	return fmt.Sprintf("transaction %s started %s with %d actions", t.TransactionID, t.TimeStamp.Format(time.RFC3339), len(t.Actions))
}

func (t *TransactionEvent) SessionEventID() string { return t.EventID }

// IsFinal is true for events that end an action
func (t *TransactionEvent) IsFinal() bool {
	return t.Code == EventCompleted || t.Code == EventError
}

func (t *TransactionEvent) LogStatus(log Logger) {
	args := []any{
		"action", t.Action,
		"target", t.Target,
	}

	if t.Version != "" {
		args = append(args, "version", t.Version)
	}

	switch t.Code {
	case EventError:
		log.Error(fmt.Sprintf("%s failed", t.Key), append(args, "stage", t.ErrorKind, "error", t.Error)...)
	case EventCompleted:
		log.Warn(fmt.Sprintf("%s completed", t.Key), append(args, "runtime", t.Duration.Truncate(time.Millisecond))...)
	case EventDownloadProgress:
		log.Debug(fmt.Sprintf("%s downloading", t.Key), append(args, "downloaded", t.Downloaded, "total", t.Total)...)
	default:
		log.Info(fmt.Sprintf("%s %s", t.Key, t.Code), args...)
	}
}

func (t *TransactionEvent) String() string {
	switch t.Code {
	case EventError:
		return fmt.Sprintf("%s %s failed stage=%s error=%s", t.Action, t.Key, t.ErrorKind, t.Error)
	case EventCompleted:
		return fmt.Sprintf("%s %s completed version=%s runtime=%v", t.Action, t.Key, t.Version, t.Duration)
	case EventDownloadProgress:
		return fmt.Sprintf("%s %s downloaded %d of %d bytes", t.Action, t.Key, t.Downloaded, t.Total)
	default:
		return fmt.Sprintf("%s %s %s", t.Action, t.Key, t.Code)
	}
}

// SessionSummary provides a statistical summary of processed transactions
type SessionSummary struct {
	StartTime        time.Time     `json:"start_time" yaml:"start_time"`
	EndTime          time.Time     `json:"end_time" yaml:"end_time"`
	TotalDuration    time.Duration `json:"total_duration" yaml:"total_duration"`
	Transactions     int           `json:"transactions" yaml:"transactions"`
	TotalActions     int           `json:"total_actions" yaml:"total_actions"`
	UniquePackages   int           `json:"unique_packages" yaml:"unique_packages"`
	InstalledCount   int           `json:"installed_count" yaml:"installed_count"`
	UninstalledCount int           `json:"uninstalled_count" yaml:"uninstalled_count"`
	FailedCount      int           `json:"failed_count" yaml:"failed_count"`
	NotAttempted     int           `json:"not_attempted" yaml:"not_attempted"`
	DownloadedBytes  uint64        `json:"downloaded_bytes" yaml:"downloaded_bytes"`
	DownloadFailures int           `json:"download_failures" yaml:"download_failures"`
	InstallFailures  int           `json:"install_failures" yaml:"install_failures"`
	VerifyFailures   int           `json:"verify_failures" yaml:"verify_failures"`
}

// BuildSessionSummary creates a summary report from the events of one or more transactions
func BuildSessionSummary(events []SessionEvent) *SessionSummary {
	summary := &SessionSummary{}
	var totalTime time.Duration
	var uniques = map[PackageKey]struct{}{}
	var downloaded = map[string]uint64{}

	for _, event := range events {
		if startEvent, ok := event.(*SessionStartEvent); ok {
			if summary.StartTime.IsZero() || startEvent.TimeStamp.Before(summary.StartTime) {
				summary.StartTime = startEvent.TimeStamp
			}
			summary.Transactions++
			summary.TotalActions += len(startEvent.Actions)
			continue
		}

		txEvent, ok := event.(*TransactionEvent)
		if !ok {
			continue
		}

		if txEvent.TimeStamp.After(summary.EndTime) {
			summary.EndTime = txEvent.TimeStamp
		}

		switch txEvent.Code {
		case EventDownloadProgress:
			// progress is cumulative per action so only the last value counts
			downloaded[txEvent.TransactionID+txEvent.Key.String()] = txEvent.Downloaded

		case EventCompleted:
			totalTime += txEvent.Duration
			uniques[txEvent.Key] = struct{}{}
			if txEvent.Action == ActionUninstall {
				summary.UninstalledCount++
			} else {
				summary.InstalledCount++
			}

		case EventError:
			totalTime += txEvent.Duration
			uniques[txEvent.Key] = struct{}{}
			summary.FailedCount++
			switch txEvent.ErrorKind {
			case ErrorKindDownload:
				summary.DownloadFailures++
			case ErrorKindVerify:
				summary.VerifyFailures++
			default:
				summary.InstallFailures++
			}
		}
	}

	for _, v := range downloaded {
		summary.DownloadedBytes += v
	}

	summary.UniquePackages = len(uniques)
	summary.NotAttempted = max(summary.TotalActions-summary.InstalledCount-summary.UninstalledCount-summary.FailedCount, 0)

	if !summary.StartTime.IsZero() && !summary.EndTime.IsZero() {
		summary.TotalDuration = summary.EndTime.Sub(summary.StartTime)
	} else {
		summary.TotalDuration = totalTime
	}

	return summary
}

// String returns a human-readable summary of the session
func (s *SessionSummary) String() string {
	return fmt.Sprintf("Transactions: %d with %d actions, %d installed, %d uninstalled, %d failed, %d not attempted, duration=%v",
		s.Transactions, s.TotalActions, s.InstalledCount, s.UninstalledCount, s.FailedCount, s.NotAttempted, s.TotalDuration)
}
