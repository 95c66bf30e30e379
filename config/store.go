// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package config persists store configuration as config.toml
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	iu "github.com/choria-io/pkgstore/internal/util"
	"github.com/choria-io/pkgstore/model"
)

// FileName is the name of the configuration file inside a store location
const FileName = "config.toml"

// Path is the configuration file for the store in location
func Path(location string) string {
	return filepath.Join(location, FileName)
}

// Exists reports if location holds a store configuration
func Exists(location string) bool {
	return iu.FileExists(Path(location))
}

// Defaults creates a configuration using directories from paths
func Defaults(paths model.PathProvider) model.StoreConfig {
	cfg := model.StoreConfig{Repos: []model.RepoRecord{}}
	if paths != nil {
		cfg.CacheDir = paths.CacheDir()
		cfg.TmpDir = paths.TmpDir()
	}

	return cfg
}

// Load reads and validates the configuration of the store in location, it never writes
func Load(location string, paths model.PathProvider) (model.StoreConfig, error) {
	b, err := os.ReadFile(Path(location))
	if errors.Is(err, os.ErrNotExist) {
		return model.StoreConfig{}, fmt.Errorf("%w: %s", model.ErrStoreNotFound, location)
	}
	if err != nil {
		return model.StoreConfig{}, err
	}

	cfg := Defaults(paths)
	_, err = toml.Decode(string(b), &cfg)
	if err != nil {
		return model.StoreConfig{}, fmt.Errorf("%w: %s: %w", model.ErrInvalidConfig, Path(location), err)
	}

	err = cfg.Validate()
	if err != nil {
		return model.StoreConfig{}, err
	}

	return cfg, nil
}

// Save atomically replaces the configuration of the store in location
func Save(location string, cfg model.StoreConfig) error {
	buf := bytes.NewBuffer(nil)

	err := toml.NewEncoder(buf).Encode(cfg)
	if err != nil {
		return err
	}

	return iu.AtomicWriteFile(Path(location), buf.Bytes(), 0644)
}

// Create writes a new configuration into location, failing with ErrStoreExists when a valid store is already there
func Create(location string, paths model.PathProvider) (model.StoreConfig, error) {
	if Exists(location) {
		_, err := Load(location, paths)
		if err == nil {
			return model.StoreConfig{}, fmt.Errorf("%w: %s", model.ErrStoreExists, location)
		}
	}

	cfg := Defaults(paths)

	err := os.MkdirAll(location, 0755)
	if err != nil {
		return model.StoreConfig{}, err
	}

	err = Save(location, cfg)
	if err != nil {
		return model.StoreConfig{}, err
	}

	return cfg, nil
}

// Shared wraps cfg so every update is persisted to location
func Shared(location string, cfg model.StoreConfig) *model.SharedConfig {
	return model.NewSharedConfig(cfg, func(c model.StoreConfig) error {
		return Save(location, c)
	})
}
