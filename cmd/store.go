// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/choria-io/fisk"
)

type storeCommand struct {
	force bool
	json  bool
}

func registerStoreCommand(app *fisk.Application) {
	cmd := &storeCommand{}

	store := app.Command("store", "Store management")

	store.Command("create", "Creates a new store").Alias("init").Action(cmd.createAction)
	store.Command("info", "Shows information about the store").Action(cmd.infoAction)
	store.Command("clear-cache", "Removes cached payloads and repository indexes").Action(cmd.clearCacheAction)

	refresh := store.Command("refresh", "Refreshes repository indexes").Action(cmd.refreshAction)
	refresh.Flag("force", "Refresh even when cached indexes are fresh").UnNegatableBoolVar(&cmd.force)

	repos := store.Command("repos", "Shows the cached repository indexes").Action(cmd.reposAction)
	repos.Flag("json", "Output in JSON format").UnNegatableBoolVar(&cmd.json)
}

func (c *storeCommand) createAction(_ *fisk.ParseContext) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}

	store, err := mgr.CreateStore(ctx, backend, location)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("%s %s store in %s\n", green("Created"), store.Name(), store.Location())

	return nil
}

func (c *storeCommand) infoAction(_ *fisk.ParseContext) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var targets []string
	for _, t := range store.Targets() {
		targets = append(targets, string(t))
	}

	var types []string
	for _, t := range store.PayloadTypes() {
		types = append(types, string(t))
	}

	cfg := store.Config().Snapshot()

	fmt.Printf("       Backend: %s\n", bold(store.Name()))
	fmt.Printf("      Location: %s\n", store.Location())
	fmt.Printf("       Targets: %s\n", strings.Join(targets, ", "))
	fmt.Printf("      Payloads: %s\n", strings.Join(types, ", "))
	fmt.Printf("         Cache: %s\n", cfg.CacheDir)
	fmt.Printf("  Repositories: %d\n", len(cfg.Repos))

	return nil
}

func (c *storeCommand) clearCacheAction(_ *fisk.ParseContext) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.ClearCache()
	if err != nil {
		return err
	}

	fmt.Println(green("Cache cleared"))

	return nil
}

func (c *storeCommand) refreshAction(_ *fisk.ParseContext) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if c.force {
		err = store.ForceRefreshRepos(ctx)
	} else {
		err = store.RefreshRepos(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s %d repositories\n", green("Refreshed"), len(store.Repos()))

	return nil
}

func (c *storeCommand) reposAction(_ *fisk.ParseContext) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	repos := store.Repos()

	if c.json {
		return dumpOutput(repos, true)
	}

	var names []string
	for rec := range repos {
		names = append(names, rec.String())
	}
	slices.Sort(names)

	for _, name := range names {
		for rec, idx := range repos {
			if rec.String() != name {
				continue
			}

			title := idx.Repository.Name["en"]
			if title == "" {
				title = idx.Repository.Base
			}

			fmt.Printf("%s %s\n", bold(name), dim(title))
			fmt.Printf("  versioning: %s packages: %d\n", idx.Versioning(), len(idx.Packages))
		}
	}

	return nil
}
