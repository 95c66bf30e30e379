// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/choria-io/fisk"
)

type VerifyStatus int

const (
	VerifyOK       VerifyStatus = 0
	VerifyWarning  VerifyStatus = 1
	VerifyCritical VerifyStatus = 2
	VerifyUnknown  VerifyStatus = 3
)

func (s VerifyStatus) String() string {
	switch s {
	case VerifyOK:
		return "OK"
	case VerifyWarning:
		return "WARNING"
	case VerifyCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// VerifyCheck confirms an install worked, either a nagios style command or goss rules
type VerifyCheck struct {
	Command string `json:"command,omitempty"`
	// Goss is a goss rule document in YAML
	Goss           string        `json:"goss,omitempty"`
	Timeout        string        `json:"timeout,omitempty"`
	Tries          int           `json:"tries,omitempty"`
	TrySleep       string        `json:"trySleep,omitempty"`
	ParsedTimeout  time.Duration `json:"-"`
	ParsedTrySleep time.Duration `json:"-"`
}

// verifyCheckAlias is used to prevent infinite recursion in custom unmarshallers
type verifyCheckAlias VerifyCheck

// UnmarshalJSON implements json.Unmarshaler to parse Timeout and TrySleep into durations
func (c *VerifyCheck) UnmarshalJSON(data []byte) error {
	var alias verifyCheckAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	*c = VerifyCheck(alias)

	if c.Command != "" && c.Goss != "" {
		return fmt.Errorf("only one of command or goss may be set")
	}

	if c.Timeout != "" {
		d, err := fisk.ParseDuration(c.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout duration %q: %w", c.Timeout, err)
		}
		c.ParsedTimeout = d
	}

	if c.TrySleep != "" {
		d, err := fisk.ParseDuration(c.TrySleep)
		if err != nil {
			return fmt.Errorf("invalid try sleep duration %q: %w", c.TrySleep, err)
		}
		c.ParsedTrySleep = d
	}

	return nil
}

// IsEmpty is true when neither a command nor goss rules are set
func (c *VerifyCheck) IsEmpty() bool {
	return c == nil || (c.Command == "" && c.Goss == "")
}

// VerifyResult represents the outcome of a verification check
type VerifyResult struct {
	Status VerifyStatus `json:"status"`
	Tries  int          `json:"tries"`
	Output string       `json:"output"`
}

type verifyHookKey struct{}

// WithVerifyHook returns a context in which installers call hook before verifying an install
func WithVerifyHook(ctx context.Context, hook func()) context.Context {
	return context.WithValue(ctx, verifyHookKey{}, hook)
}

// NotifyVerifying calls the verify hook held in ctx, if any
func NotifyVerifying(ctx context.Context) {
	hook, ok := ctx.Value(verifyHookKey{}).(func())
	if ok && hook != nil {
		hook()
	}
}
