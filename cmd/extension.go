// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/choria-io/appbuilder/builder"
	"github.com/choria-io/appbuilder/commands/exec"
	"github.com/choria-io/appbuilder/commands/parent"
	"github.com/choria-io/fisk"

	iu "github.com/choria-io/pkgstore/internal/util"
)

const (
	extensionFile       = "cli-extension.yaml"
	systemExtensionFile = "/etc/choria/pkgstore/" + extensionFile
)

// extensionPath is the first existing file in candidates, empty when none exist
func extensionPath(candidates ...string) string {
	for _, c := range candidates {
		if c != "" && iu.FileExists(c) {
			return c
		}
	}

	return ""
}

// extendCli mounts user defined appbuilder commands under the plugin command
func extendCli(app *fisk.Application) error {
	var userFile string
	if xdg.ConfigHome != "" {
		userFile = filepath.Join(xdg.ConfigHome, "choria", "pkgstore", extensionFile)
	}

	return mountExtensions(app, extensionPath(userFile, systemExtensionFile))
}

func mountExtensions(app *fisk.Application, path string) error {
	if path == "" {
		return nil
	}

	def, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	parent.MustRegister()
	exec.MustRegister()

	ext := app.Command("plugin", "External CLI plugin commands").Alias("ext")

	return builder.MountAsCommand(ctx, ext, def, nil)
}
