// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"encoding/json"
	"fmt"
)

// ActionKind is the operation requested for a package
type ActionKind string

const (
	ActionInstall   ActionKind = "install"
	ActionUninstall ActionKind = "uninstall"
)

// PackageAction is one step of a transaction
type PackageAction struct {
	Key    PackageKey    `json:"key"`
	Action ActionKind    `json:"action"`
	Target InstallTarget `json:"target,omitempty"`
}

// NewInstallAction creates an install action
func NewInstallAction(key PackageKey, target InstallTarget) PackageAction {
	return PackageAction{Key: key, Action: ActionInstall, Target: target}
}

// NewUninstallAction creates an uninstall action
func NewUninstallAction(key PackageKey, target InstallTarget) PackageAction {
	return PackageAction{Key: key, Action: ActionUninstall, Target: target}
}

// Validate checks the action is well formed
func (a PackageAction) Validate() error {
	if a.Key.IsZero() {
		return fmt.Errorf("%w: key is required", ErrInvalidAction)
	}

	switch a.Action {
	case ActionInstall, ActionUninstall:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidAction, a.Action)
	}

	return nil
}

func (a PackageAction) String() string {
	if a.Target == TargetDefault {
		return fmt.Sprintf("%s %s", a.Action, a.Key)
	}

	return fmt.Sprintf("%s %s (%s)", a.Action, a.Key, a.Target)
}

// ParseActions parses a JSON list of actions
func ParseActions(data []byte) ([]PackageAction, error) {
	var actions []PackageAction

	err := json.Unmarshal(data, &actions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}

	for i, a := range actions {
		err = a.Validate()
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}

	return actions, nil
}
