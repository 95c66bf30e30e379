// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Sha256HashFile computes the sha256 sum of a file and returns the hex encoded result
func Sha256HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sum, _, err := Sha256HashReader(f)

	return sum, err
}

// Sha256HashReader computes the sha256 sum of everything read from r and the number of bytes read
func Sha256HashReader(r io.Reader) (string, int64, error) {
	hasher := sha256.New()

	n, err := io.Copy(hasher, r)
	if err != nil {
		return "", n, err
	}

	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}

// Sha256HashBytes computes the sha256 sum of the bytes c and returns the hex encoded result
func Sha256HashBytes(c []byte) (string, error) {
	sum := sha256.Sum256(c)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyFile checks the size and sha256 of a file, a zero size or empty checksum skips that check
func VerifyFile(path string, checksum string, size uint64) error {
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}

	if size > 0 && uint64(stat.Size()) != size {
		return fmt.Errorf("size mismatch, expected %d got %d", size, stat.Size())
	}

	if checksum == "" {
		return nil
	}

	sum, err := Sha256HashFile(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(sum, checksum) {
		return fmt.Errorf("checksum mismatch, expected %q got %q", checksum, sum)
	}

	return nil
}
