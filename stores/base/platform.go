// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package base

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/receipts"
)

const receiptsDir = "receipts"

// OpenPlatform opens or creates a store for a backend driving an operating system installer,
// receipts are kept as JSON files in the store location
func OpenPlatform(so model.StoreOptions, create bool, opts Options) (*Core, error) {
	if so.Runner == nil {
		return nil, fmt.Errorf("command runner is required")
	}

	cfg, err := LoadConfig(so, create)
	if err != nil {
		return nil, err
	}

	opts.Receipts = receipts.NewFileStore(filepath.Join(so.Location, receiptsDir))

	return NewCore(cfg, so, opts)
}

// Execute runs an operating system tool, holding model.InstallerGlobalLock for its duration
func (c *Core) Execute(ctx context.Context, opts model.ExtendedExecOptions) ([]byte, []byte, int, error) {
	model.InstallerGlobalLock.Lock()
	defer model.InstallerGlobalLock.Unlock()

	c.log.Debug("Executing command", "command", opts.Command, "args", strings.Join(opts.Args, " "))

	return c.runner.ExecuteWithOptions(ctx, opts)
}

// Run executes cmd with args, non zero exit codes are errors wrapping failure
func (c *Core) Run(ctx context.Context, failure error, env []string, cmd string, args ...string) ([]byte, error) {
	stdout, stderr, code, err := c.Execute(ctx, model.ExtendedExecOptions{Command: cmd, Args: args, Environment: env})
	if err != nil {
		return stdout, fmt.Errorf("%w: %s: %w", failure, cmd, err)
	}

	if code != 0 {
		return stdout, fmt.Errorf("%w: %s exited %d: %s", failure, cmd, code, lastLine(stderr, stdout))
	}

	return stdout, nil
}

func lastLine(outputs ...[]byte) string {
	for _, o := range outputs {
		s := strings.TrimSpace(string(o))
		if s == "" {
			continue
		}

		lines := strings.Split(s, "\n")
		return strings.TrimSpace(lines[len(lines)-1])
	}

	return "no output"
}

// InstallFor resolves key and checks target and payload type before an installer runs
func (c *Core) InstallFor(ctx context.Context, key model.PackageKey, target model.InstallTarget) (*model.ResolvedPackage, model.InstallTarget, error) {
	target, err := c.Target(target)
	if err != nil {
		return nil, "", err
	}

	res, err := c.Resolve(ctx, key)
	if err != nil {
		return nil, "", err
	}

	payload := res.Payload()
	if !slices.Contains(c.payloadTypes, payload.Type) {
		return nil, "", fmt.Errorf("%w: %s: unsupported payload type %s", model.ErrInstallerFailed, key, payload.Type)
	}

	return res, target, nil
}

// NewReceipt is the receipt recording res installed to target
func NewReceipt(res *model.ResolvedPackage, target model.InstallTarget, name string) *model.Receipt {
	payload := res.Payload()

	return &model.Receipt{
		Key:         res.Key,
		ID:          res.Key.ID,
		Target:      target,
		Version:     res.Version(),
		PayloadType: payload.Type,
		Name:        name,
		ProductCode: payload.ProductCode,
		InstalledAt: time.Now().UTC(),
	}
}

// Commit runs the verification check of res and records r when it passes, a failed check
// leaves any previous receipt in place so the package reports as needing an install
func (c *Core) Commit(ctx context.Context, res *model.ResolvedPackage, r *model.Receipt) (*model.Receipt, error) {
	err := c.CheckInstall(ctx, res, r.Target)
	if err != nil {
		c.log.Error("Installed package failed verification", "package", r.Key.String(), "version", r.Version, "error", err)
		return nil, err
	}

	err = c.Record(r)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// Record stores a receipt after a successful install
func (c *Core) Record(r *model.Receipt) error {
	err := c.receipts.Put(r)
	if err != nil {
		return fmt.Errorf("%w: recording receipt: %w", model.ErrInstallerFailed, err)
	}

	c.log.Info("Installed package", "package", r.Key.String(), "version", r.Version, "target", r.Target)

	return nil
}

// InstalledReceipt is the receipt of an installed package for uninstall
func (c *Core) InstalledReceipt(key model.PackageKey, target model.InstallTarget) (*model.Receipt, model.InstallTarget, error) {
	target, err := c.Target(target)
	if err != nil {
		return nil, "", err
	}

	r, err := c.receipts.Get(key.ID, target)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", model.ErrUninstallFailed, key, err)
	}

	return r, target, nil
}

// Forget removes a receipt after a successful uninstall
func (c *Core) Forget(key model.PackageKey, target model.InstallTarget) error {
	err := c.receipts.Remove(key.ID, target)
	if err != nil {
		return fmt.Errorf("%w: removing receipt: %w", model.ErrUninstallFailed, err)
	}

	c.log.Info("Uninstalled package", "package", key.String(), "target", target)

	return nil
}

// PackageName is the native package name of the payload, defaulting to the package id
func PackageName(res *model.ResolvedPackage) string {
	if p := res.Payload(); p != nil && p.Name != "" {
		return p.Name
	}

	return res.Key.ID
}
