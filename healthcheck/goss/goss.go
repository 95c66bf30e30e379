// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package goss verifies installs using goss rule documents
package goss

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/goss-org/goss"
	"github.com/goss-org/goss/outputs"
	gossutil "github.com/goss-org/goss/util"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/choria-io/pkgstore/internal/backoff"
	"github.com/choria-io/pkgstore/metrics"
	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/templates"
)

var (
	ErrRulesNotSpecified = errors.New("goss rules not specified")
)

const defaultTrySleep = time.Second

// rules writes the rule document, templated against env when set, to a temporary file
func rules(check *model.VerifyCheck, env *templates.Env) (string, error) {
	doc := check.Goss

	if env != nil {
		var err error
		doc, err = templates.ResolveTemplateString(doc, env)
		if err != nil {
			return "", err
		}
	}

	tf, err := os.CreateTemp("", "pkgstore-goss-*.yaml")
	if err != nil {
		return "", err
	}

	_, err = tf.WriteString(doc)
	if err != nil {
		tf.Close()
		os.Remove(tf.Name())
		return "", err
	}

	err = tf.Close()
	if err != nil {
		os.Remove(tf.Name())
		return "", err
	}

	return tf.Name(), nil
}

// Execute validates the goss rules in check, retrying up to check.Tries times until all pass.
//
// Any failed rule is a CRITICAL result, env may be nil
func Execute(ctx context.Context, check *model.VerifyCheck, env *templates.Env, log model.Logger) (*model.VerifyResult, error) {
	if check == nil || check.Goss == "" {
		return nil, ErrRulesNotSpecified
	}

	spec, err := rules(check, env)
	if err != nil {
		return nil, err
	}
	defer os.Remove(spec)

	var out bytes.Buffer
	cfg, err := gossutil.NewConfig(
		gossutil.WithMaxConcurrency(1),
		gossutil.WithResultWriter(&out),
		gossutil.WithSpecFile(spec),
	)
	if err != nil {
		return nil, err
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

	result := &model.VerifyResult{}

	for attempt := 1; attempt <= tries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		log.Info("Executing goss verification", "package", pkg, "try", attempt)
		out.Reset()
		result.Tries = attempt

		timer := prometheus.NewTimer(metrics.VerifyTime.WithLabelValues(pkg))
		_, err = goss.Validate(cfg)
		timer.ObserveDuration()
		if err != nil {
			return nil, err
		}

		results := &outputs.StructuredOutput{}
		err = json.Unmarshal(out.Bytes(), results)
		if err != nil {
			return nil, err
		}

		result.Output = results.SummaryLine
		if results.Summary.Failed == 0 {
			result.Status = model.VerifyOK
			break
		}

		result.Status = model.VerifyCritical
		for _, res := range results.Results {
			if res.Result != 0 {
				log.Warn("Goss rule failed", "package", pkg, "rule", res.SummaryLineCompact)
			}
		}

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
