// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package util

// SyncDir is not supported on windows, renames are durable once MoveFileEx returns
func SyncDir(dir string) error {
	return nil
}
