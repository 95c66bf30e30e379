// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/SladkyCitron/slogcolor"
	"github.com/fatih/color"
	"github.com/goccy/go-yaml"

	"github.com/choria-io/pkgstore/manager"
	"github.com/choria-io/pkgstore/metrics"
	"github.com/choria-io/pkgstore/model"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()

	monitorOnce sync.Once
)

func newManager() (*manager.Manager, error) {
	var opts []manager.Option

	if historyDir != "" {
		opts = append(opts, manager.WithSessionDirectory(historyDir))
	}

	logger := newLogger()

	monitorOnce.Do(func() { metrics.ListenAndServe(monitorPort, logger) })

	return manager.NewManager(logger, newOutputLogger(), opts...)
}

func openStore() (*manager.Manager, model.PackageStore, error) {
	mgr, err := newManager()
	if err != nil {
		return nil, nil, err
	}

	store, err := mgr.OpenStore(ctx, backend, location)
	if err != nil {
		return nil, nil, err
	}

	return mgr, store, nil
}

func parseTarget(t string) model.InstallTarget {
	return model.InstallTarget(strings.ToLower(t))
}

func dumpOutput(v any, asJSON bool) error {
	if asJSON {
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	j, err := json.Marshal(v)
	if err != nil {
		return err
	}

	out, err := yaml.JSONToYAML(j)
	if err != nil {
		return err
	}
	fmt.Print(string(out))

	return nil
}

func colorStatus(s model.PackageStatus) string {
	switch {
	case s == model.StatusUpToDate:
		return green(s.String())
	case s == model.StatusRequiresUpdate, s == model.StatusVersionSkipped:
		return yellow(s.String())
	case s.IsError():
		return red(s.String())
	default:
		return dim(s.String())
	}
}

func newOutputLogger() model.Logger {
	var level slog.Level

	switch {
	case debug:
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}

	return manager.NewSlogLogger(slog.New(slogcolor.NewHandler(os.Stdout, &slogcolor.Options{Level: level})))
}

func newLogger() model.Logger {
	var level slog.Level

	switch {
	case debug:
		level = slog.LevelDebug
	case info:
		level = slog.LevelInfo
	default:
		level = slog.LevelWarn
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return manager.NewSlogLogger(logger)
}
