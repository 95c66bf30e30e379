// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/choria-io/fisk"
	"github.com/schollz/progressbar/v3"

	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/transaction"
)

type packageCommand struct {
	keys   []string
	key    string
	path   string
	repo   string
	target string
	json   bool
}

func registerPackageCommand(app *fisk.Application) {
	cmd := &packageCommand{}

	pkg := app.Command("package", "Package management").Alias("pkg")

	status := pkg.Command("status", "Shows the status of a package").Alias("info").Action(cmd.statusAction)
	status.Arg("key", "Package key to inspect").Required().StringVar(&cmd.key)
	status.Flag("target", "Install target to query").StringVar(&cmd.target)

	statuses := pkg.Command("statuses", "Shows the status of every package in a repository").Alias("ls").Action(cmd.statusesAction)
	statuses.Arg("repo", "Repository to list, all repositories when not set").StringVar(&cmd.repo)
	statuses.Flag("target", "Install target to query").StringVar(&cmd.target)
	statuses.Flag("json", "Output in JSON format").UnNegatableBoolVar(&cmd.json)

	download := pkg.Command("download", "Downloads a package into the cache").Alias("fetch").Action(cmd.downloadAction)
	download.Arg("key", "Package key to download").Required().StringVar(&cmd.key)

	imp := pkg.Command("import", "Imports a local payload as the cached artifact of a package").Action(cmd.importAction)
	imp.Arg("key", "Package key the payload belongs to").Required().StringVar(&cmd.key)
	imp.Arg("file", "Payload to import").Required().ExistingFileVar(&cmd.path)

	resolve := pkg.Command("resolve", "Shows the repository metadata of a package").Alias("show").Action(cmd.resolveAction)
	resolve.Arg("key", "Package key to resolve").Required().StringVar(&cmd.key)
	resolve.Flag("json", "Output in JSON format").UnNegatableBoolVar(&cmd.json)

	install := pkg.Command("install", "Installs or updates packages in a single transaction").Alias("add").Action(cmd.installAction)
	install.Arg("keys", "Package keys to install").Required().StringsVar(&cmd.keys)
	install.Flag("target", "Install target to use").StringVar(&cmd.target)

	uninstall := pkg.Command("uninstall", "Removes packages in a single transaction").Alias("remove").Alias("rm").Action(cmd.uninstallAction)
	uninstall.Arg("keys", "Package keys to remove").Required().StringsVar(&cmd.keys)
	uninstall.Flag("target", "Install target to use").StringVar(&cmd.target)
}

func (c *packageCommand) statusAction(_ *fisk.ParseContext) error {
	key, err := model.ParsePackageKey(c.key)
	if err != nil {
		return err
	}

	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	status, err := store.Status(ctx, key, parseTarget(c.target))
	if err != nil {
		return fmt.Errorf("could not get status: %w", err)
	}

	fmt.Printf("%s: %s\n", bold(key.String()), colorStatus(status))

	return nil
}

func (c *packageCommand) statusesAction(_ *fisk.ParseContext) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	repos := store.Config().Repos()
	if c.repo != "" {
		rec, err := model.ParseRepoRecord(c.repo)
		if err != nil {
			return err
		}
		repos = []model.RepoRecord{rec}
	}

	results := map[string]map[string]model.StatusResult{}
	for _, repo := range repos {
		statuses, err := store.AllStatuses(ctx, repo, parseTarget(c.target))
		if err != nil {
			return err
		}
		results[repo.String()] = statuses
	}

	if c.json {
		codes := map[string]map[string]int8{}
		for repo, statuses := range results {
			codes[repo] = map[string]int8{}
			for id, status := range statuses {
				codes[repo][id] = status.Code()
			}
		}

		return dumpOutput(codes, true)
	}

	for _, repo := range repos {
		statuses := results[repo.String()]

		fmt.Println(bold(repo.String()))
		if len(statuses) == 0 {
			fmt.Println(dim("  no packages"))
		}

		var ids []string
		for id := range statuses {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		for _, id := range ids {
			res := statuses[id]
			if res.Error != nil {
				fmt.Printf("  %-40s %s\n", id, red(res.Error.Error()))
				continue
			}
			fmt.Printf("  %-40s %s\n", id, colorStatus(res.Status))
		}
		fmt.Println()
	}

	return nil
}

func (c *packageCommand) downloadAction(_ *fisk.ParseContext) error {
	key, err := model.ParsePackageKey(c.key)
	if err != nil {
		return err
	}

	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var bar *progressbar.ProgressBar
	path, err := store.Download(ctx, key, func(current uint64, total uint64) bool {
		if bar == nil {
			size := int64(-1)
			if total > 0 {
				size = int64(total)
			}
			bar = progressbar.DefaultBytes(size, fmt.Sprintf("Downloading %s", key.ID))
		}
		bar.Set64(int64(current))

		return ctx.Err() == nil
	})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", green("Downloaded"), path)

	return nil
}

func (c *packageCommand) importAction(_ *fisk.ParseContext) error {
	key, err := model.ParsePackageKey(c.key)
	if err != nil {
		return err
	}

	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	path, err := store.Import(ctx, key, c.path)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s as %s\n", green("Imported"), c.path, path)

	return nil
}

func (c *packageCommand) resolveAction(_ *fisk.ParseContext) error {
	key, err := model.ParsePackageKey(c.key)
	if err != nil {
		return err
	}

	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	desc, ok := store.ResolvePackage(key)
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrPackageNotFound, key)
	}

	return dumpOutput(desc, c.json)
}

func (c *packageCommand) installAction(_ *fisk.ParseContext) error {
	return c.transact(model.NewInstallAction)
}

func (c *packageCommand) uninstallAction(_ *fisk.ParseContext) error {
	return c.transact(model.NewUninstallAction)
}

func (c *packageCommand) transact(action func(model.PackageKey, model.InstallTarget) model.PackageAction) error {
	var actions []model.PackageAction
	for _, k := range c.keys {
		key, err := model.ParsePackageKey(k)
		if err != nil {
			return err
		}
		actions = append(actions, action(key, parseTarget(c.target)))
	}

	mgr, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	tx, err := mgr.NewTransaction(ctx, store, actions, 0)
	if err != nil {
		return err
	}

	events := make(chan model.TransactionEvent, 100)
	errc := make(chan error, 1)
	go func() { errc <- tx.Process(ctx, events) }()

	bars := map[model.PackageKey]*progressbar.ProgressBar{}

	for event := range events {
		switch event.Code {
		case model.EventDownloading:
			fmt.Printf("%s %s\n", dim("Downloading"), event.Key)

		case model.EventDownloadProgress:
			bar, ok := bars[event.Key]
			if !ok {
				size := int64(-1)
				if event.Total > 0 {
					size = int64(event.Total)
				}
				bar = progressbar.DefaultBytes(size, event.Key.ID)
				bars[event.Key] = bar
			}
			bar.Set64(int64(event.Downloaded))
			if event.Total > 0 && event.Downloaded == event.Total {
				bar.Finish()
			}

		case model.EventInstalling:
			fmt.Printf("%s %s %s\n", dim("Installing"), event.Key, event.Version)

		case model.EventUninstalling:
			fmt.Printf("%s %s\n", dim("Uninstalling"), event.Key)

		case model.EventVerifying:
			fmt.Printf("%s %s\n", dim("Verifying"), event.Key)

		case model.EventCompleted:
			fmt.Printf("%s %s %s %s\n", green("Completed"), event.Key, event.Version, dim(event.Duration.Round(time.Millisecond)))

		case model.EventError:
			fmt.Printf("%s %s during %s: %s\n", red("Failed"), event.Key, event.ErrorKind, event.Error)
		}
	}

	err = <-errc

	var ae *transaction.ActionError
	if errors.As(err, &ae) && ae.Index < len(actions)-1 {
		fmt.Printf("%s %d actions were not attempted\n", yellow("Warning:"), len(actions)-ae.Index-1)
	}

	return err
}
