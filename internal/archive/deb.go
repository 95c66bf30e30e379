// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blakesmith/ar"
)

// Identity is the name and version embedded in a package file
type Identity struct {
	Name    string
	Version string
	Release string
	Arch    string
}

// FullVersion is the version including the release when present
func (i Identity) FullVersion() string {
	if i.Release == "" {
		return i.Version
	}

	return i.Version + "-" + i.Release
}

// DebIdentity reads the control file of a .deb
func DebIdentity(path string) (*Identity, error) {
	fields, err := DebControl(path)
	if err != nil {
		return nil, err
	}

	id := &Identity{
		Name:    fields["Package"],
		Version: fields["Version"],
		Arch:    fields["Architecture"],
	}

	if id.Name == "" || id.Version == "" {
		return nil, fmt.Errorf("control file in %s has no Package or Version", path)
	}

	return id, nil
}

// DebControl parses the control file of a .deb into its fields
func DebControl(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	arr := ar.NewReader(f)
	for {
		hdr, err := arr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ar entry: %w", err)
		}

		name := strings.TrimRight(strings.TrimSpace(hdr.Name), "/")
		if !strings.HasPrefix(name, "control.tar") {
			continue
		}

		control, err := controlFromTar(arr, name)
		if err != nil {
			return nil, err
		}

		return ParseControl(control), nil
	}

	return nil, fmt.Errorf("control.tar not found in %s", path)
}

func controlFromTar(r io.Reader, name string) ([]byte, error) {
	dr, _, err := Decompress(r, name)
	if err != nil {
		return nil, err
	}
	defer dr.Close()

	tr := tar.NewReader(dr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if strings.TrimPrefix(hdr.Name, "./") == "control" {
			return io.ReadAll(io.LimitReader(tr, 1<<20))
		}
	}

	return nil, fmt.Errorf("control file not found in %s", name)
}

// ParseControl parses debian control fields, continuation lines are joined to the previous field
func ParseControl(data []byte) map[string]string {
	fields := map[string]string{}
	var last string

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if (line[0] == ' ' || line[0] == '\t') && last != "" {
			fields[last] += "\n" + strings.TrimSpace(line)
			continue
		}

		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		last = strings.TrimSpace(k)
		fields[last] = strings.TrimSpace(v)
	}

	return fields
}
