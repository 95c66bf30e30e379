// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package resolver selects the release and installer of a package for this machine and compares it
// with the installed receipt
package resolver

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/choria-io/pkgstore/index"
	"github.com/choria-io/pkgstore/internal/facts"
	"github.com/choria-io/pkgstore/internal/versions"
	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/templates"
)

// ArchAny matches every architecture
const ArchAny = "any"

// Resolver computes package statuses for one store
type Resolver struct {
	cache        *index.Cache
	receipts     model.ReceiptStore
	cfg          *model.SharedConfig
	facts        map[string]any
	payloadTypes []model.PayloadType
	targets      []model.InstallTarget
	platform     string
	arch         string
	log          model.Logger
}

// New creates a resolver, targets lists the install targets of the store with the default first
func New(cache *index.Cache, receipts model.ReceiptStore, cfg *model.SharedConfig, f map[string]any, payloadTypes []model.PayloadType, targets []model.InstallTarget, log model.Logger) *Resolver {
	platform, arch := facts.Platform(f)

	return &Resolver{
		cache:        cache,
		receipts:     receipts,
		cfg:          cfg,
		facts:        f,
		payloadTypes: payloadTypes,
		targets:      targets,
		platform:     platform,
		arch:         arch,
		log:          log.With("platform", platform, "arch", arch),
	}
}

// Platform is the platform and architecture releases are selected for
func (r *Resolver) Platform() (string, string) {
	return r.platform, r.arch
}

// Target resolves the default target and checks the target is supported
func (r *Resolver) Target(target model.InstallTarget) (model.InstallTarget, error) {
	if len(r.targets) == 0 {
		return target, nil
	}

	if target == model.TargetDefault {
		return r.targets[0], nil
	}

	if !slices.Contains(r.targets, target) {
		return "", fmt.Errorf("%w: %q", model.ErrUnsupportedTarget, target)
	}

	return target, nil
}

// ResolvePackage finds the descriptor for key in the cached indexes
func (r *Resolver) ResolvePackage(key model.PackageKey) (*model.PackageDescriptor, bool) {
	idx, ok := r.cache.Get(key.RepositoryURL)
	if !ok {
		return nil, false
	}

	return idx.Package(key.ID)
}

// Resolve selects the release and target of key to install on this machine
func (r *Resolver) Resolve(ctx context.Context, key model.PackageKey) (*model.ResolvedPackage, error) {
	res, status, err := r.selectRelease(ctx, key)
	if err != nil {
		return nil, err
	}

	switch status {
	case model.StatusErrorParsingVersion:
		return nil, fmt.Errorf("%w: %s has no valid release versions", model.ErrInvalidVersion, key)
	case model.StatusErrorNoInstaller, model.StatusErrorWrongPlatform:
		return nil, fmt.Errorf("%w: %s for %s/%s", model.ErrNoInstaller, key, r.platform, r.arch)
	}

	return res, nil
}

// Status compares the selected release of key with the receipt for target
func (r *Resolver) Status(ctx context.Context, key model.PackageKey, target model.InstallTarget) (model.PackageStatus, error) {
	target, err := r.Target(target)
	if err != nil {
		return model.StatusNotInstalled, model.NewStatusError(key, model.StatusErrorInternal, err)
	}

	res, status, err := r.selectRelease(ctx, key)
	if err != nil {
		return model.StatusNotInstalled, err
	}
	if res == nil {
		return status, nil
	}

	receipt, err := r.receipts.Get(key.ID, target)
	switch {
	case errors.Is(err, model.ErrReceiptNotFound):
		return model.StatusNotInstalled, nil
	case err != nil:
		return model.StatusNotInstalled, model.NewStatusError(key, model.StatusErrorReceipt, err)
	}

	if versions.Validate(res.Versioning, receipt.Version) != nil {
		return model.StatusErrorParsingVersion, nil
	}

	cmp, err := versions.Compare(res.Versioning, receipt.Version, res.Version())
	if err != nil {
		return model.StatusErrorParsingVersion, nil
	}

	if cmp == 0 {
		return model.StatusUpToDate, nil
	}

	// repositories that withdraw a release converge installs back onto what they offer
	if cmp > 0 {
		r.log.Warn("Installed version is newer than the repository offers", "package", key.String(), "installed", receipt.Version, "offered", res.Version())
		return model.StatusRequiresUpdate, nil
	}

	skipped, ok := r.cfg.SkippedVersion(key)
	if ok && versions.Equal(res.Versioning, skipped, res.Version()) {
		return model.StatusVersionSkipped, nil
	}

	return model.StatusRequiresUpdate, nil
}

// AllStatuses computes the status of every package in repo, each package is computed independently
// and a failure for one never affects the others. A repository that can not be loaded is an error
// wrapping a *model.PackageStatusError of kind model.StatusErrorNoRepository
func (r *Resolver) AllStatuses(ctx context.Context, repo model.RepoRecord, target model.InstallTarget) (map[string]model.StatusResult, error) {
	idx, _, err := r.cache.Ensure(ctx, repo.URL)
	if err != nil {
		return nil, model.NewStatusError(model.PackageKey{RepositoryURL: repo.URL}, model.StatusErrorNoRepository, err)
	}

	res := make(map[string]model.StatusResult)

	for id := range idx.Packages {
		key, err := model.NewPackageKey(repo.URL, id, repo.Channel)
		if err != nil {
			res[id] = model.StatusResult{Error: model.NewStatusError(model.PackageKey{RepositoryURL: repo.URL, ID: id}, model.StatusErrorInvalidMetadata, err)}
			continue
		}

		status, err := r.Status(ctx, key, target)
		res[id] = model.StatusResult{Status: status, Error: err}
	}

	return res, nil
}

func (r *Resolver) eligibleChannel(key model.PackageKey, repo model.RepoRecord) string {
	if key.Channel != "" {
		return key.Channel
	}

	return repo.Channel
}

func (r *Resolver) archMatches(arch string) bool {
	return arch == "" || arch == ArchAny || facts.NormalizeArch(arch) == r.arch
}

type candidate struct {
	release *model.Release
	target  *model.Target
}

// selectRelease returns the resolved package or a non zero error status, hard failures are returned as *model.PackageStatusError
func (r *Resolver) selectRelease(ctx context.Context, key model.PackageKey) (*model.ResolvedPackage, model.PackageStatus, error) {
	idx, repo, err := r.cache.Ensure(ctx, key.RepositoryURL)
	if err != nil {
		return nil, 0, model.NewStatusError(key, model.StatusErrorNoRepository, err)
	}

	desc, ok := idx.Package(key.ID)
	if !ok {
		return nil, 0, model.NewStatusError(key, model.StatusErrorNoPackage, model.ErrPackageNotFound)
	}
	if desc.IsVirtual() {
		return nil, 0, model.NewStatusError(key, model.StatusErrorNoConcrete, model.ErrNoConcretePackage)
	}

	scheme := idx.Versioning()
	channel := r.eligibleChannel(key, repo)

	var (
		candidates      []candidate
		invalidVersion  bool
		platformMatched bool
		typeMatched     bool
	)

	for ri := range desc.Releases {
		release := &desc.Releases[ri]

		if release.Channel != "" && release.Channel != channel {
			continue
		}

		if versions.Validate(scheme, release.Version) != nil {
			invalidVersion = true
			continue
		}

		for ti := range release.Targets {
			target := &release.Targets[ti]

			if facts.NormalizePlatform(target.Platform) != r.platform || !r.archMatches(target.Arch) {
				continue
			}
			platformMatched = true

			if !slices.Contains(r.payloadTypes, target.Payload.Type) {
				continue
			}
			typeMatched = true

			ok, err := templates.Criteria(target.Payload.Criteria, templates.NewEnv(r.facts, templates.Package{
				ID:       key.ID,
				Version:  release.Version,
				Channel:  release.Channel,
				Platform: target.Platform,
				Arch:     target.Arch,
			}))
			if err != nil {
				return nil, 0, model.NewStatusError(key, model.StatusErrorInvalidMetadata, err)
			}
			if !ok {
				r.log.Debug("Installer criteria not met", "package", key.String(), "version", release.Version, "criteria", target.Payload.Criteria)
				continue
			}

			candidates = append(candidates, candidate{release: release, target: target})
			break
		}
	}

	if len(candidates) == 0 {
		switch {
		case invalidVersion:
			return nil, model.StatusErrorParsingVersion, nil
		case platformMatched && !typeMatched:
			return nil, model.StatusErrorWrongPlatform, nil
		default:
			return nil, model.StatusErrorNoInstaller, nil
		}
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		cmp, err := versions.Compare(scheme, c.release.Version, best.release.Version)
		if err != nil {
			return nil, model.StatusErrorParsingVersion, nil
		}
		if cmp > 0 {
			best = c
		}
	}

	return &model.ResolvedPackage{
		Key:        key,
		Base:       idx.Repository.Base,
		Versioning: scheme,
		Descriptor: desc,
		Release:    best.release,
		Target:     best.target,
	}, 0, nil
}
