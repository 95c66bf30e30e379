// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// RepoRecord is the identity of a repository, it owns no data.
//
// It encodes as the text form url#channel so it can be used as a map key in JSON documents
type RepoRecord struct {
	URL     string
	Channel string
}

// ParseRepoRecord parses the url#channel form produced by String
func ParseRepoRecord(s string) (RepoRecord, error) {
	u, channel, _ := strings.Cut(s, "#")

	rec := RepoRecord{URL: u, Channel: channel}
	err := rec.Validate()
	if err != nil {
		return RepoRecord{}, err
	}

	return rec, nil
}

// Validate checks the url and channel
func (r RepoRecord) Validate() error {
	err := ValidateRepositoryURL(r.URL)
	if err != nil {
		return err
	}

	if r.Channel != "" && !identifierRx.MatchString(r.Channel) {
		return fmt.Errorf("%w: invalid channel %q", ErrInvalidRepository, r.Channel)
	}

	return nil
}

func (r RepoRecord) String() string {
	if r.Channel == "" {
		return r.URL
	}

	return r.URL + "#" + r.Channel
}

func (r RepoRecord) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RepoRecord) UnmarshalText(text []byte) error {
	rec, err := ParseRepoRecord(string(text))
	if err != nil {
		return err
	}

	*r = rec

	return nil
}

// Versioning schemes a repository may declare
const (
	VersioningSemver = "semver"
	VersioningDebian = "debian"
	VersioningLoose  = "loose"
	VersioningRpm    = "rpm"
)

// RepoIndex is the parsed contents of a repository
type RepoIndex struct {
	Repository Repository                    `json:"repository"`
	Packages   map[string]*PackageDescriptor `json:"packages"`
}

// Versioning is the versioning scheme in use, defaults to semver
func (i *RepoIndex) Versioning() string {
	if i.Repository.Versioning == "" {
		return VersioningSemver
	}

	return i.Repository.Versioning
}

// Package finds a descriptor by id
func (i *RepoIndex) Package(id string) (*PackageDescriptor, bool) {
	if i == nil || i.Packages == nil {
		return nil, false
	}

	p, ok := i.Packages[id]
	if !ok || p == nil {
		return nil, false
	}

	return p, true
}

// Repository describes the repository itself
type Repository struct {
	Context       string                       `json:"@context,omitempty"`
	Type          string                       `json:"@type,omitempty"`
	Agent         *RepositoryAgent             `json:"agent,omitempty"`
	Base          string                       `json:"base"`
	Name          map[string]string            `json:"name,omitempty"`
	Description   map[string]string            `json:"description,omitempty"`
	PrimaryFilter string                       `json:"primaryFilter,omitempty"`
	Channels      []string                     `json:"channels,omitempty"`
	Categories    map[string]map[string]string `json:"categories,omitempty"`
	Versioning    string                       `json:"versioning,omitempty"`
}

// RepositoryAgent is the software that produced the index
type RepositoryAgent struct {
	Type    string `json:"@type,omitempty"`
	Name    string `json:"name"`
	Version string `json:"version"`
	URL     string `json:"url,omitempty"`
}

const (
	DescriptorPackage = "package"
	DescriptorVirtual = "virtual"
)

// PackageDescriptor describes a package and all its releases
type PackageDescriptor struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Name        map[string]string `json:"name,omitempty"`
	Description map[string]string `json:"description,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Releases    []Release         `json:"releases,omitempty"`
}

// IsVirtual is true for descriptors that have no installer of their own
func (p *PackageDescriptor) IsVirtual() bool {
	return p.Type == DescriptorVirtual
}

// Release is one version of a package on a channel, an empty channel is the stable channel
type Release struct {
	Version string   `json:"version"`
	Channel string   `json:"channel,omitempty"`
	Authors []string `json:"authors,omitempty"`
	License string   `json:"license,omitempty"`
	Targets []Target `json:"targets"`
}

// Target is an installer for a specific platform
type Target struct {
	Platform     string            `json:"platform"`
	Arch         string            `json:"arch,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Payload      Payload           `json:"payload"`
}

// PayloadType is the kind of installer artifact
type PayloadType string

const (
	TarballPackage    PayloadType = "TarballPackage"
	DebianPackage     PayloadType = "DebianPackage"
	RpmPackage        PayloadType = "RpmPackage"
	MacOSPackage      PayloadType = "MacOSPackage"
	WindowsExecutable PayloadType = "WindowsExecutable"
)

// Payload is the installer artifact of a target
type Payload struct {
	Type          PayloadType  `json:"type"`
	URL           string       `json:"url"`
	Checksum      string       `json:"checksum,omitempty"`
	Size          int64        `json:"size,omitempty"`
	InstalledSize int64        `json:"installedSize,omitempty"`
	Name          string       `json:"name,omitempty"`
	ProductCode   string       `json:"productCode,omitempty"`
	Kind          string       `json:"kind,omitempty"`
	Args          string       `json:"args,omitempty"`
	UninstallArgs string       `json:"uninstallArgs,omitempty"`
	Criteria      string       `json:"criteria,omitempty"`
	Verify        *VerifyCheck `json:"verify,omitempty"`
}

// FileName is the base name of the payload url
func (p *Payload) FileName() string {
	u, err := url.Parse(p.URL)
	if err != nil || u.Path == "" {
		return path.Base(p.URL)
	}

	return path.Base(u.Path)
}

// ResolvedPackage is the release and installer selected for a key on this machine
type ResolvedPackage struct {
	Key        PackageKey         `json:"key"`
	Base       string             `json:"base"`
	Versioning string             `json:"versioning"`
	Descriptor *PackageDescriptor `json:"descriptor"`
	Release    *Release           `json:"release"`
	Target     *Target            `json:"target"`
}

// Payload is the selected payload
func (r *ResolvedPackage) Payload() *Payload {
	if r.Target == nil {
		return nil
	}

	return &r.Target.Payload
}

// Version is the selected release version
func (r *ResolvedPackage) Version() string {
	if r.Release == nil {
		return ""
	}

	return r.Release.Version
}

// PayloadURL is the absolute payload url, relative payload urls are resolved against the repository base
func (r *ResolvedPackage) PayloadURL() (*url.URL, error) {
	p := r.Payload()
	if p == nil {
		return nil, fmt.Errorf("%w: %s has no payload", ErrNoInstaller, r.Key)
	}

	ref, err := url.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid payload url: %w", ErrInvalidIndex, err)
	}

	if ref.IsAbs() {
		return ref, nil
	}

	base := r.Base
	if base == "" {
		base = r.Key.RepositoryURL
	}

	bu, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid repository base: %w", ErrInvalidIndex, err)
	}

	return bu.ResolveReference(ref), nil
}
