// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriteFile writes data to a temporary file next to path, syncs it and renames it into place
func AtomicWriteFile(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return err
	}

	tf, err := os.CreateTemp(dir, fmt.Sprintf(".%s-*", filepath.Base(path)))
	if err != nil {
		return err
	}
	defer os.Remove(tf.Name())

	_, err = tf.Write(data)
	if err != nil {
		tf.Close()
		return err
	}

	err = tf.Sync()
	if err != nil {
		tf.Close()
		return err
	}

	err = tf.Close()
	if err != nil {
		return err
	}

	err = os.Chmod(tf.Name(), mode)
	if err != nil {
		return err
	}

	err = os.Rename(tf.Name(), path)
	if err != nil {
		return err
	}

	return SyncDir(dir)
}
