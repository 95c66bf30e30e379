// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package base

import (
	"context"
	"fmt"

	"github.com/choria-io/pkgstore/healthcheck/goss"
	"github.com/choria-io/pkgstore/healthcheck/nagios"
	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/templates"
)

// TemplateEnv is the environment installer arguments and checks are resolved in
func (c *Core) TemplateEnv(res *model.ResolvedPackage, target model.InstallTarget, file string) *templates.Env {
	pkg := templates.Package{
		ID:      res.Key.ID,
		Version: res.Version(),
		Channel: res.Key.Channel,
		Target:  string(target),
		File:    file,
	}

	if res.Target != nil {
		pkg.Platform = res.Target.Platform
		pkg.Arch = res.Target.Arch
		pkg.Name = res.Target.Payload.Name
		pkg.ProductCode = res.Target.Payload.ProductCode
	}

	return templates.NewEnv(c.facts, pkg)
}

// Verify runs the verification check of the payload resolved for key
func (c *Core) Verify(ctx context.Context, key model.PackageKey, target model.InstallTarget) (*model.VerifyResult, error) {
	target, err := c.Target(target)
	if err != nil {
		return nil, err
	}

	res, err := c.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	return c.check(ctx, res, target)
}

// CheckInstall runs the verification check of res before an installer commits its receipt,
// the returned error wraps model.ErrVerificationFailed
func (c *Core) CheckInstall(ctx context.Context, res *model.ResolvedPackage, target model.InstallTarget) error {
	if res.Payload().Verify.IsEmpty() {
		return nil
	}

	model.NotifyVerifying(ctx)

	_, err := c.check(ctx, res, target)

	return err
}

func (c *Core) check(ctx context.Context, res *model.ResolvedPackage, target model.InstallTarget) (*model.VerifyResult, error) {
	check := res.Payload().Verify
	if check.IsEmpty() {
		return nil, nil
	}

	var result *model.VerifyResult
	var err error

	env := c.TemplateEnv(res, target, "")

	switch {
	case check.Goss != "":
		result, err = goss.Execute(ctx, check, env, c.log)
	case c.runner == nil:
		return nil, fmt.Errorf("%w: no command runner", model.ErrVerificationFailed)
	default:
		result, err = nagios.Execute(ctx, c.runner, check, env, c.log)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrVerificationFailed, res.Key, err)
	}

	if result.Status != model.VerifyOK {
		return result, fmt.Errorf("%w: %s: %s after %d tries: %s", model.ErrVerificationFailed, res.Key, result.Status, result.Tries, result.Output)
	}

	return result, nil
}
