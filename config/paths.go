// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os/user"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"

	"github.com/choria-io/pkgstore/model"
)

var _ model.PathProvider = (*XDGPaths)(nil)

// XDGPaths are the default directories following the XDG conventions, with machine wide locations
// when running as root on macOS or as SYSTEM on Windows
type XDGPaths struct {
	configDir string
	cacheDir  string
	tmpDir    string
	logDir    string
}

// NewXDGPaths resolves the default directories for the current user
func NewXDGPaths() *XDGPaths {
	username := ""
	u, err := user.Current()
	if err == nil {
		username = u.Username
	}

	return newPaths(runtime.GOOS, username)
}

func newPaths(goos string, username string) *XDGPaths {
	switch {
	case goos == "windows" && isWindowsSystem(username):
		base := `C:\ProgramData\Choria\Pkgstore`
		return &XDGPaths{
			configDir: base + `\config`,
			cacheDir:  base + `\cache`,
			tmpDir:    base + `\cache\tmp`,
			logDir:    base + `\log`,
		}

	case goos == "darwin" && username == "root":
		return &XDGPaths{
			configDir: "/Library/Preferences/Choria/Pkgstore",
			cacheDir:  "/Library/Caches/Choria/Pkgstore",
			tmpDir:    "/Library/Caches/Choria/Pkgstore/tmp",
			logDir:    "/Library/Logs/Choria/Pkgstore",
		}

	case goos != "windows" && goos != "darwin" && username == "root":
		return &XDGPaths{
			configDir: "/etc/choria/pkgstore",
			cacheDir:  "/var/cache/choria/pkgstore",
			tmpDir:    "/var/cache/choria/pkgstore/tmp",
			logDir:    "/var/log/choria/pkgstore",
		}
	}

	cache := filepath.Join(xdg.CacheHome, "choria", "pkgstore")

	return &XDGPaths{
		configDir: filepath.Join(xdg.ConfigHome, "choria", "pkgstore"),
		cacheDir:  cache,
		tmpDir:    filepath.Join(cache, "tmp"),
		logDir:    filepath.Join(xdg.StateHome, "choria", "pkgstore", "log"),
	}
}

func isWindowsSystem(username string) bool {
	name := strings.ToUpper(username)
	_, name, _ = strings.Cut(name, `\`)
	if name == "" {
		name = strings.ToUpper(username)
	}

	return name == "SYSTEM"
}

func (p *XDGPaths) ConfigDir() string { return p.configDir }
func (p *XDGPaths) CacheDir() string { return p.cacheDir }
func (p *XDGPaths) TmpDir() string { return p.tmpDir }
func (p *XDGPaths) LogDir() string { return p.logDir }

// StaticPaths is a PathProvider with fixed directories
type StaticPaths struct {
	Config string
	Cache  string
	Tmp    string
	Log    string
}

func (p StaticPaths) ConfigDir() string { return p.Config }
func (p StaticPaths) CacheDir() string { return p.Cache }
func (p StaticPaths) TmpDir() string { return p.Tmp }
func (p StaticPaths) LogDir() string { return p.Log }

// PathsUnder creates a StaticPaths rooted in dir, used for tests and self contained stores
func PathsUnder(dir string) StaticPaths {
	return StaticPaths{
		Config: filepath.Join(dir, "config"),
		Cache:  filepath.Join(dir, "cache"),
		Tmp:    filepath.Join(dir, "cache", "tmp"),
		Log:    filepath.Join(dir, "log"),
	}
}
