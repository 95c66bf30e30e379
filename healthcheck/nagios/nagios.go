// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package nagios runs post install verification commands and interprets their exit codes the nagios way
package nagios

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/choria-io/pkgstore/internal/backoff"
	"github.com/choria-io/pkgstore/metrics"
	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/templates"
)

var (
	ErrCommandNotSpecified = errors.New("command not specified")
)

const defaultTrySleep = time.Second

// ParseExitCode converts a nagios exit code to a VerifyResult
func ParseExitCode(exitCode int, output string) *model.VerifyResult {
	result := &model.VerifyResult{
		Output: strings.TrimSpace(output),
	}

	switch exitCode {
	case 0:
		result.Status = model.VerifyOK
	case 1:
		result.Status = model.VerifyWarning
	case 2:
		result.Status = model.VerifyCritical
	default:
		result.Status = model.VerifyUnknown
	}

	return result
}

func command(check *model.VerifyCheck, env *templates.Env) ([]string, error) {
	if env != nil {
		return templates.ResolveArgs(check.Command, env)
	}

	return shellquote.Split(check.Command)
}

// Execute runs a verification check, retrying up to check.Tries times until it reports OK.
//
// The command may use templates referencing the package and facts in env, env may be nil.
// Execution errors are returned immediately without retry.
func Execute(ctx context.Context, runner model.CommandRunner, check *model.VerifyCheck, env *templates.Env, log model.Logger) (*model.VerifyResult, error) {
	if check == nil || check.Command == "" {
		return nil, ErrCommandNotSpecified
	}

	cmd, err := command(check, env)
	if err != nil {
		return nil, err
	}
	if len(cmd) == 0 {
		return nil, ErrCommandNotSpecified
	}

	var args []string
	if len(cmd) > 1 {
		args = cmd[1:]
	}

	var pkg string
	if env != nil {
		pkg = env.Package.ID
	}

	tries := max(check.Tries, 1)
	sleep := check.ParsedTrySleep
	if sleep == 0 {
		sleep = defaultTrySleep
	}

	var result *model.VerifyResult

	for attempt := 1; attempt <= tries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		log.Info("Executing verification command", "command", cmd[0], "args", strings.Join(args, " "), "try", attempt)

		execCtx := ctx
		var cancel context.CancelFunc
		if check.ParsedTimeout > 0 {
			execCtx, cancel = context.WithTimeout(ctx, check.ParsedTimeout)
		}

		timer := prometheus.NewTimer(metrics.VerifyTime.WithLabelValues(pkg))
		out, _, exitCode, err := runner.Execute(execCtx, cmd[0], args...)
		timer.ObserveDuration()

		if cancel != nil {
			cancel()
		}

		if err != nil {
			return nil, err
		}

		result = ParseExitCode(exitCode, string(out))
		result.Tries = attempt

		if result.Status == model.VerifyOK {
			break
		}

		log.Warn("Verification failed", "try", attempt, "status", result.Status, "output", result.Output)

		if attempt >= tries {
			break
		}

		err = backoff.InterruptableSleep(ctx, sleep)
		if err != nil {
			return nil, ctx.Err()
		}
	}

	metrics.VerifyStatusCount.WithLabelValues(pkg, result.Status.String()).Inc()

	return result, nil
}
