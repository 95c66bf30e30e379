// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"sync"
)

// InstallerGlobalLock ensures only one installer or package tool runs at a time in the process
// even when several stores or transactions are active. Platform package databases do not
// tolerate concurrent writers.
var InstallerGlobalLock = sync.Mutex{}
