// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/choria-io/fisk"
	"github.com/goccy/go-yaml"

	"github.com/choria-io/pkgstore/model"
)

type configCommand struct {
	file    string
	url     string
	channel string
	key     string
	version string
	json    bool
}

func registerConfigCommand(app *fisk.Application) {
	cmd := &configCommand{}

	cfg := app.Command("config", "Store configuration management").Alias("cfg")

	show := cfg.Command("show", "Shows the store configuration").Alias("get").Action(cmd.showAction)
	show.Flag("json", "Output in JSON format").UnNegatableBoolVar(&cmd.json)

	set := cfg.Command("set", "Replaces the store configuration from a JSON or YAML file").Action(cmd.setAction)
	set.Arg("file", "File holding the new configuration").Required().ExistingFileVar(&cmd.file)

	add := cfg.Command("add-repo", "Adds a repository").Action(cmd.addRepoAction)
	add.Arg("url", "Repository URL").Required().StringVar(&cmd.url)
	add.Flag("channel", "Release channel to follow").StringVar(&cmd.channel)

	rm := cfg.Command("remove-repo", "Removes a repository").Alias("rm-repo").Action(cmd.removeRepoAction)
	rm.Arg("url", "Repository URL").Required().StringVar(&cmd.url)
	rm.Flag("channel", "Release channel of the repository").StringVar(&cmd.channel)

	skip := cfg.Command("skip", "Skips a version of a package, an empty version clears the skip").Action(cmd.skipAction)
	skip.Arg("key", "Package key").Required().StringVar(&cmd.key)
	skip.Arg("version", "Version to skip").StringVar(&cmd.version)
}

func (c *configCommand) showAction(_ *fisk.ParseContext) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	snap := store.Config().Snapshot()

	return dumpOutput(&snap, c.json)
}

func (c *configCommand) setAction(_ *fisk.ParseContext) error {
	body, err := os.ReadFile(c.file)
	if err != nil {
		return err
	}

	// YAML is a superset of JSON
	j, err := yaml.YAMLToJSON(body)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidConfig, err)
	}

	var next model.StoreConfig
	err = json.Unmarshal(j, &next)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrInvalidConfig, err)
	}

	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.Config().Update(func(cfg *model.StoreConfig) error {
		*cfg = next
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Println(green("Configuration updated"))

	return nil
}

func (c *configCommand) addRepoAction(_ *fisk.ParseContext) error {
	rec := model.RepoRecord{URL: c.url, Channel: c.channel}
	err := rec.Validate()
	if err != nil {
		return err
	}

	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.Config().AddRepo(rec)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", green("Added"), rec)

	return nil
}

func (c *configCommand) removeRepoAction(_ *fisk.ParseContext) error {
	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rec := model.RepoRecord{URL: c.url, Channel: c.channel}
	err = store.Config().RemoveRepo(rec)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", green("Removed"), rec)

	return nil
}

func (c *configCommand) skipAction(_ *fisk.ParseContext) error {
	key, err := model.ParsePackageKey(c.key)
	if err != nil {
		return err
	}

	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.Config().SkipVersion(key, c.version)
	if err != nil {
		return err
	}

	if c.version == "" {
		fmt.Printf("%s skipped version of %s\n", green("Cleared"), key)
	} else {
		fmt.Printf("%s version %s of %s\n", green("Skipping"), c.version, key)
	}

	return nil
}
