// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"os"

	"github.com/sassoftware/go-rpmutils"
)

// RpmIdentity reads the header of an .rpm
func RpmIdentity(path string) (*Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rpm, err := rpmutils.ReadRpm(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read rpm: %w", err)
	}

	id := &Identity{
		Name:    rpmTag(rpm, rpmutils.NAME),
		Version: rpmTag(rpm, rpmutils.VERSION),
		Release: rpmTag(rpm, rpmutils.RELEASE),
		Arch:    rpmTag(rpm, rpmutils.ARCH),
	}

	if id.Name == "" || id.Version == "" {
		return nil, fmt.Errorf("rpm header in %s has no name or version", path)
	}

	return id, nil
}

func rpmTag(rpm *rpmutils.Rpm, tag int) string {
	val, err := rpm.Header.Get(tag)
	if err != nil {
		return ""
	}

	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	}

	return ""
}
