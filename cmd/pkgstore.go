// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/choria-io/fisk"
	"github.com/fatih/color"

	iu "github.com/choria-io/pkgstore/internal/util"
)

var (
	ctx         context.Context
	debug       bool
	info        bool
	backend     string
	location    string
	historyDir  string
	monitorPort int
	Version     = "development"
)

func main() {
	app := fisk.New("pkgstore", "Choria Package Store")
	app.Version(Version)
	app.Author("https://choria.io")

	app.Flag("debug", "Enable debug logging").UnNegatableBoolVar(&debug)
	app.Flag("info", "Enable info logging").UnNegatableBoolVar(&info)
	app.Flag("backend", "Store backend to use").Envar("PKGSTORE_BACKEND").PlaceHolder("NAME").StringVar(&backend)
	app.Flag("store", "Directory the store lives in").Envar("PKGSTORE_LOCATION").PlaceHolder("DIR").StringVar(&location)
	app.Flag("history", "Directory to keep transaction history in").Envar("PKGSTORE_HISTORY").PlaceHolder("DIR").StringVar(&historyDir)
	app.Flag("monitor-port", "Port to serve Prometheus metrics on").PlaceHolder("PORT").IntVar(&monitorPort)

	registerAgentCommand(app)
	registerConfigCommand(app)
	registerFactsCommand(app)
	registerHistoryCommand(app)
	registerPackageCommand(app)
	registerStoreCommand(app)

	color.NoColor = !iu.IsTerminal()

	ctx, _ = signal.NotifyContext(context.Background(), os.Interrupt)
	err := extendCli(app)
	if err != nil {
		log.Fatalf("Could not load CLI extensions: %s", err)
	}

	app.MustParseWithUsage(os.Args[1:])
}
