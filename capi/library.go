// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

/*
#include <stdlib.h>
#include "pkgstore.h"
*/
import "C"

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/choria-io/pkgstore/boundary"
	"github.com/choria-io/pkgstore/config"
	"github.com/choria-io/pkgstore/manager"
)

// LogLevelEnv overrides the level of the library log file
const LogLevelEnv = "PKGSTORE_LOG_LEVEL"

var (
	adapter *boundary.Adapter
	initErr error
	once    sync.Once
)

func instance() (*boundary.Adapter, error) {
	once.Do(func() {
		paths := config.NewXDGPaths()

		log := logrus.New()
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetLevel(logrus.InfoLevel)

		if lvl, err := logrus.ParseLevel(os.Getenv(LogLevelEnv)); err == nil {
			log.SetLevel(lvl)
		}

		err := os.MkdirAll(paths.LogDir(), 0700)
		if err == nil {
			var f *os.File
			f, err = os.OpenFile(filepath.Join(paths.LogDir(), "pkgstore.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
			if err == nil {
				log.SetOutput(f)
			}
		}
		if err != nil {
			log.SetOutput(os.Stderr)
			log.Warnf("Could not open library log file: %v", err)
		}

		logger := manager.NewLogrusLogger(logrus.NewEntry(log).WithField("component", "capi"))

		var mgr *manager.Manager
		mgr, initErr = manager.NewManager(logger, logger, manager.WithPaths(paths))
		if initErr != nil {
			return
		}

		adapter = boundary.New(mgr, logger)
	})

	return adapter, initErr
}

func setError(out **C.char, err error) {
	if out == nil || err == nil {
		return
	}

	*out = C.CString(err.Error())
}

func result(out **C.char, err error) C.int {
	if err != nil {
		setError(out, err)
		return -1
	}

	return 0
}

func handleResult(h boundary.Handle, out **C.char, err error) C.uint64_t {
	if err != nil {
		setError(out, err)
		return 0
	}

	return C.uint64_t(h)
}

func stringResult(s []byte, out **C.char, err error) *C.char {
	if err != nil {
		setError(out, err)
		return nil
	}

	return C.CString(string(s))
}

func progressFunc(cb C.pkgstore_progress_cb) func(uint64, uint64) bool {
	if cb == nil {
		return nil
	}

	return func(current uint64, total uint64) bool {
		return C.pkgstore_call_progress(cb, C.uint64_t(current), C.uint64_t(total)) != 0
	}
}

func eventFunc(cb C.pkgstore_event_cb) boundary.Callback {
	if cb == nil {
		return nil
	}

	return func(tag uint32, key *string, code uint32) {
		if key == nil {
			C.pkgstore_call_event(cb, C.uint32_t(tag), nil, C.uint32_t(code))
			return
		}

		ck := C.CString(*key)
		defer C.free(unsafe.Pointer(ck))

		C.pkgstore_call_event(cb, C.uint32_t(tag), ck, C.uint32_t(code))
	}
}

func ctx() context.Context {
	return context.Background()
}

func main() {}
