// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/choria-io/fisk"

	"github.com/choria-io/pkgstore/model"
)

type historyCommand struct {
	key  string
	json bool
}

func registerHistoryCommand(app *fisk.Application) {
	cmd := &historyCommand{}

	hist := app.Command("history", "Transaction history")

	show := hist.Command("show", "Shows recorded transaction events").Alias("ls").Default().Action(cmd.showAction)
	show.Arg("key", "Limit to events for a package").StringVar(&cmd.key)
	show.Flag("json", "Output in JSON format").UnNegatableBoolVar(&cmd.json)

	hist.Command("summary", "Summarizes the recorded transactions").Alias("report").Action(cmd.summaryAction)
}

func (c *historyCommand) showAction(_ *fisk.ParseContext) error {
	if historyDir == "" {
		return fmt.Errorf("no history directory specified, use --history or PKGSTORE_HISTORY")
	}

	mgr, err := newManager()
	if err != nil {
		return err
	}

	var events []model.SessionEvent

	if c.key != "" {
		key, err := model.ParsePackageKey(c.key)
		if err != nil {
			return err
		}

		pevents, err := mgr.Session().EventsForPackage(key)
		if err != nil {
			return err
		}
		for _, e := range pevents {
			events = append(events, &e)
		}
	} else {
		events, err = mgr.Session().AllEvents()
		if err != nil {
			return err
		}
	}

	if c.json {
		return dumpOutput(events, true)
	}

	for _, e := range events {
		switch event := e.(type) {
		case *model.SessionStartEvent:
			fmt.Printf("%s %s %s with %d actions\n", dim(event.TimeStamp.Local().Format(time.DateTime)), bold("Transaction"), event.TransactionID, len(event.Actions))

		case *model.TransactionEvent:
			line := fmt.Sprintf("  %s %-18s %s", dim(event.TimeStamp.Local().Format(time.DateTime)), event.Code, event.Key)
			if event.Version != "" {
				line += " " + event.Version
			}

			switch event.Code {
			case model.EventError:
				line += " " + red(fmt.Sprintf("%s: %s", event.ErrorKind, event.Error))
			case model.EventCompleted:
				line += " " + green(event.Duration.Round(time.Millisecond))
			}

			fmt.Println(line)
		}
	}

	return nil
}

func (c *historyCommand) summaryAction(_ *fisk.ParseContext) error {
	if historyDir == "" {
		return fmt.Errorf("no history directory specified, use --history or PKGSTORE_HISTORY")
	}

	mgr, err := newManager()
	if err != nil {
		return err
	}

	summary, err := mgr.Session().StopSession(false)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("History Summary")
	fmt.Println()
	if summary.TotalDuration > 0 {
		fmt.Printf("            Run Time: %v\n", summary.TotalDuration.Round(time.Millisecond))
	}
	fmt.Printf("        Transactions: %d\n", summary.Transactions)
	fmt.Printf("       Total Actions: %d\n", summary.TotalActions)
	fmt.Printf("     Unique Packages: %d\n", summary.UniquePackages)
	fmt.Printf("           Installed: %d\n", summary.InstalledCount)
	fmt.Printf("         Uninstalled: %d\n", summary.UninstalledCount)
	fmt.Printf("              Failed: %d\n", summary.FailedCount)
	fmt.Printf("       Not Attempted: %d\n", summary.NotAttempted)
	fmt.Printf("    Downloaded Bytes: %d\n", summary.DownloadedBytes)
	fmt.Printf("   Download Failures: %d\n", summary.DownloadFailures)
	fmt.Printf("    Install Failures: %d\n", summary.InstallFailures)
	fmt.Printf("     Verify Failures: %d\n", summary.VerifyFailures)

	return nil
}
