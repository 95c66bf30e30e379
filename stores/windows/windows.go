// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package windows runs msi, nsis, inno and plain executable installers
package windows

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/stores/base"
	"github.com/choria-io/pkgstore/templates"
)

const BackendName = "windows"

// Installer kinds
const (
	KindMSI  = "msi"
	KindNSIS = "nsis"
	KindInno = "inno"
	KindExe  = "exe"
)

// msiexec exit codes meaning success, the latter two ask for a reboot
var msiSuccess = []int{0, 1641, 3010}

// msiexec reports this when the product is not installed
const msiUnknownProduct = 1605

var _ model.PackageStore = (*Store)(nil)

// Store installs WindowsExecutable payloads for the machine or the current user
type Store struct {
	*base.Core
}

// Open attaches to the windows store in opts.Location
func Open(ctx context.Context, opts model.StoreOptions) (*Store, error) {
	return open(opts, false)
}

// Create initializes a windows store in opts.Location
func Create(ctx context.Context, opts model.StoreOptions) (*Store, error) {
	return open(opts, true)
}

func open(opts model.StoreOptions, create bool) (*Store, error) {
	core, err := base.OpenPlatform(opts, create, base.Options{
		Name:         BackendName,
		PayloadTypes: []model.PayloadType{model.WindowsExecutable},
		Targets:      []model.InstallTarget{model.TargetSystem, model.TargetUser},
	})
	if err != nil {
		return nil, err
	}

	return &Store{Core: core}, nil
}

// Kind is the installer kind of a payload, msi files default to msi and everything else to exe
func Kind(p *model.Payload) string {
	if p.Kind != "" {
		return p.Kind
	}

	if filepath.Ext(p.FileName()) == ".msi" {
		return KindMSI
	}

	return KindExe
}

// installCommand builds the installer command line
func installCommand(p *model.Payload, target model.InstallTarget, path string, env *templates.Env) (string, []string, error) {
	extra, err := templates.ResolveArgs(p.Args, env)
	if err != nil {
		return "", nil, err
	}

	switch Kind(p) {
	case KindMSI:
		args := []string{"/i", path, "/qn", "/norestart"}
		if target == model.TargetUser {
			args = append(args, "ALLUSERS=2", "MSIINSTALLPERUSER=1")
		} else {
			args = append(args, "ALLUSERS=1")
		}
		return "msiexec", append(args, extra...), nil

	case KindNSIS:
		return path, append([]string{"/S"}, extra...), nil

	case KindInno:
		args := []string{"/VERYSILENT", "/SUPPRESSMSGBOXES", "/NORESTART"}
		if target == model.TargetUser {
			args = append(args, "/CURRENTUSER")
		} else {
			args = append(args, "/ALLUSERS")
		}
		return path, append(args, extra...), nil

	case KindExe:
		if len(extra) == 0 {
			return "", nil, fmt.Errorf("exe installers require args")
		}
		return path, extra, nil

	default:
		return "", nil, fmt.Errorf("unknown installer kind %q", p.Kind)
	}
}

// uninstallCommand builds the uninstaller command line, msi packages are removed by product code
func uninstallCommand(p *model.Payload, productCode string, env *templates.Env) (string, []string, error) {
	if Kind(p) == KindMSI && p.UninstallArgs == "" {
		if productCode == "" {
			return "", nil, fmt.Errorf("msi package has no product code")
		}

		return "msiexec", []string{"/x", productCode, "/qn", "/norestart"}, nil
	}

	cmd, err := templates.ResolveArgs(p.UninstallArgs, env)
	if err != nil {
		return "", nil, err
	}

	if len(cmd) == 0 {
		return "", nil, fmt.Errorf("%s installers require uninstallArgs", Kind(p))
	}

	return cmd[0], cmd[1:], nil
}

func (s *Store) run(ctx context.Context, failure error, cmd string, args []string, ok []int) error {
	stdout, stderr, code, err := s.Execute(ctx, model.ExtendedExecOptions{Command: cmd, Args: args})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", failure, cmd, err)
	}

	if !slices.Contains(ok, code) {
		out := stderr
		if len(out) == 0 {
			out = stdout
		}
		return fmt.Errorf("%w: %s exited %d: %s", failure, cmd, code, out)
	}

	if code == 1641 || code == 3010 {
		s.Logger().Warn("Installer requested a reboot", "command", cmd, "exitcode", code)
	}

	return nil
}

// Install runs the installer for the payload kind
func (s *Store) Install(ctx context.Context, key model.PackageKey, target model.InstallTarget, payloadPath string) (*model.Receipt, error) {
	res, target, err := s.InstallFor(ctx, key, target)
	if err != nil {
		return nil, err
	}

	path, err := filepath.Abs(payloadPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInstallerFailed, err)
	}

	payload := res.Payload()

	cmd, args, err := installCommand(payload, target, path, s.TemplateEnv(res, target, path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrInstallerFailed, key, err)
	}

	ok := []int{0}
	if Kind(payload) == KindMSI {
		ok = msiSuccess
	}

	err = s.run(ctx, model.ErrInstallerFailed, cmd, args, ok)
	if err != nil {
		return nil, err
	}

	r := base.NewReceipt(res, target, base.PackageName(res))

	return s.Commit(ctx, res, r)
}

// installedPayload finds the payload of the installed release, falling back to the current one
func (s *Store) installedPayload(ctx context.Context, key model.PackageKey, version string) (*model.ResolvedPackage, error) {
	desc, ok := s.ResolvePackage(key)
	if ok {
		for ri := range desc.Releases {
			rel := &desc.Releases[ri]
			if rel.Version != version {
				continue
			}

			for ti := range rel.Targets {
				t := &rel.Targets[ti]
				if t.Payload.Type == model.WindowsExecutable {
					return &model.ResolvedPackage{Key: key, Descriptor: desc, Release: rel, Target: t}, nil
				}
			}
		}
	}

	return s.Resolve(ctx, key)
}

// Uninstall runs msiexec or the configured uninstaller
func (s *Store) Uninstall(ctx context.Context, key model.PackageKey, target model.InstallTarget) error {
	r, target, err := s.InstalledReceipt(key, target)
	if err != nil {
		return err
	}

	res, err := s.installedPayload(ctx, key, r.Version)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", model.ErrUninstallFailed, key, err)
	}

	payload := res.Payload()

	productCode := r.ProductCode
	if productCode == "" {
		productCode = payload.ProductCode
	}

	cmd, args, err := uninstallCommand(payload, productCode, s.TemplateEnv(res, target, ""))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", model.ErrUninstallFailed, key, err)
	}

	ok := []int{0}
	if cmd == "msiexec" {
		ok = append(slices.Clone(msiSuccess), msiUnknownProduct)
	}

	err = s.run(ctx, model.ErrUninstallFailed, cmd, args, ok)
	if err != nil {
		return err
	}

	return s.Forget(key, target)
}
