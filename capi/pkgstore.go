// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Command capi builds the pkgstore C shared library.
//
// Build with go build -buildmode=c-shared -o libpkgstore.so ./capi. Strings returned by the
// library are owned by the caller and released with pkgstore_string_free, errors are reported
// through the err argument and handles of 0 are never valid.
package main

/*
#include <stdlib.h>
#include "pkgstore.h"
*/
import "C"

import (
	"unsafe"

	"github.com/choria-io/pkgstore/boundary"
)

//export pkgstore_string_free
func pkgstore_string_free(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

//export pkgstore_open
func pkgstore_open(backend *C.char, location *C.char, err **C.char) C.uint64_t {
	a, ierr := instance()
	if ierr != nil {
		return handleResult(0, err, ierr)
	}

	h, oerr := a.OpenStore(ctx(), C.GoString(backend), C.GoString(location))

	return handleResult(h, err, oerr)
}

//export pkgstore_create
func pkgstore_create(backend *C.char, location *C.char, err **C.char) C.uint64_t {
	a, ierr := instance()
	if ierr != nil {
		return handleResult(0, err, ierr)
	}

	h, cerr := a.CreateStore(ctx(), C.GoString(backend), C.GoString(location))

	return handleResult(h, err, cerr)
}

//export pkgstore_retain
func pkgstore_retain(h C.uint64_t, err **C.char) C.int {
	a, ierr := instance()
	if ierr != nil {
		return result(err, ierr)
	}

	return result(err, a.Retain(boundary.Handle(h)))
}

//export pkgstore_release
func pkgstore_release(h C.uint64_t, err **C.char) C.int {
	a, ierr := instance()
	if ierr != nil {
		return result(err, ierr)
	}

	return result(err, a.Release(boundary.Handle(h)))
}

//export pkgstore_status
func pkgstore_status(h C.uint64_t, key *C.char, target *C.char, err **C.char) C.int8_t {
	a, ierr := instance()
	if ierr != nil {
		setError(err, ierr)
		return -1
	}

	code, serr := a.Status(ctx(), boundary.Handle(h), C.GoString(key), C.GoString(target))
	setError(err, serr)

	return C.int8_t(code)
}

//export pkgstore_all_statuses
func pkgstore_all_statuses(h C.uint64_t, repo *C.char, target *C.char, err **C.char) *C.char {
	a, ierr := instance()
	if ierr != nil {
		return stringResult(nil, err, ierr)
	}

	j, serr := a.AllStatuses(ctx(), boundary.Handle(h), C.GoString(repo), C.GoString(target))

	return stringResult(j, err, serr)
}

//export pkgstore_download
func pkgstore_download(h C.uint64_t, key *C.char, progress C.pkgstore_progress_cb, err **C.char) *C.char {
	a, ierr := instance()
	if ierr != nil {
		return stringResult(nil, err, ierr)
	}

	path, derr := a.Download(ctx(), boundary.Handle(h), C.GoString(key), progressFunc(progress))

	return stringResult([]byte(path), err, derr)
}

//export pkgstore_import
func pkgstore_import(h C.uint64_t, key *C.char, path *C.char, err **C.char) *C.char {
	a, ierr := instance()
	if ierr != nil {
		return stringResult(nil, err, ierr)
	}

	cached, merr := a.Import(ctx(), boundary.Handle(h), C.GoString(key), C.GoString(path))

	return stringResult([]byte(cached), err, merr)
}

//export pkgstore_resolve_package
func pkgstore_resolve_package(h C.uint64_t, key *C.char, err **C.char) *C.char {
	a, ierr := instance()
	if ierr != nil {
		return stringResult(nil, err, ierr)
	}

	j, rerr := a.ResolvePackage(boundary.Handle(h), C.GoString(key))

	return stringResult(j, err, rerr)
}

//export pkgstore_clear_cache
func pkgstore_clear_cache(h C.uint64_t, err **C.char) C.int {
	a, ierr := instance()
	if ierr != nil {
		return result(err, ierr)
	}

	return result(err, a.ClearCache(boundary.Handle(h)))
}

//export pkgstore_refresh_repos
func pkgstore_refresh_repos(h C.uint64_t, err **C.char) C.int {
	a, ierr := instance()
	if ierr != nil {
		return result(err, ierr)
	}

	return result(err, a.RefreshRepos(ctx(), boundary.Handle(h)))
}

//export pkgstore_force_refresh_repos
func pkgstore_force_refresh_repos(h C.uint64_t, err **C.char) C.int {
	a, ierr := instance()
	if ierr != nil {
		return result(err, ierr)
	}

	return result(err, a.ForceRefreshRepos(ctx(), boundary.Handle(h)))
}

//export pkgstore_repo_indexes
func pkgstore_repo_indexes(h C.uint64_t, err **C.char) *C.char {
	a, ierr := instance()
	if ierr != nil {
		return stringResult(nil, err, ierr)
	}

	j, rerr := a.RepoIndexes(boundary.Handle(h))

	return stringResult(j, err, rerr)
}

//export pkgstore_config
func pkgstore_config(h C.uint64_t, err **C.char) C.uint64_t {
	a, ierr := instance()
	if ierr != nil {
		return handleResult(0, err, ierr)
	}

	ch, cerr := a.Config(boundary.Handle(h))

	return handleResult(ch, err, cerr)
}

//export pkgstore_config_get
func pkgstore_config_get(h C.uint64_t, err **C.char) *C.char {
	a, ierr := instance()
	if ierr != nil {
		return stringResult(nil, err, ierr)
	}

	j, cerr := a.ConfigGet(boundary.Handle(h))

	return stringResult(j, err, cerr)
}

//export pkgstore_config_set
func pkgstore_config_set(h C.uint64_t, cfg *C.char, err **C.char) C.int {
	a, ierr := instance()
	if ierr != nil {
		return result(err, ierr)
	}

	return result(err, a.ConfigSet(boundary.Handle(h), []byte(C.GoString(cfg))))
}

//export pkgstore_transaction_new
func pkgstore_transaction_new(h C.uint64_t, actions *C.char, err **C.char) C.uint64_t {
	a, ierr := instance()
	if ierr != nil {
		return handleResult(0, err, ierr)
	}

	th, terr := a.NewTransaction(ctx(), boundary.Handle(h), []byte(C.GoString(actions)))

	return handleResult(th, err, terr)
}

//export pkgstore_transaction_actions
func pkgstore_transaction_actions(h C.uint64_t, err **C.char) *C.char {
	a, ierr := instance()
	if ierr != nil {
		return stringResult(nil, err, ierr)
	}

	j, terr := a.TransactionActions(boundary.Handle(h))

	return stringResult(j, err, terr)
}

//export pkgstore_transaction_process
func pkgstore_transaction_process(h C.uint64_t, tag C.uint32_t, cb C.pkgstore_event_cb, err **C.char) C.int {
	a, ierr := instance()
	if ierr != nil {
		return result(err, ierr)
	}

	return result(err, a.ProcessTransaction(ctx(), boundary.Handle(h), uint32(tag), eventFunc(cb)))
}
