// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	packagesPathSegment = "packages/"
	channelQueryPrefix  = "channel="
)

var identifierRx = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+~-]*$`)

// PackageKey identifies a package within a repository and optional channel.
//
// The canonical string form is <repository url>packages/<id> with an optional ?channel=<channel>
// suffix, the repository url always ends in a slash.
type PackageKey struct {
	RepositoryURL string
	ID            string
	Channel       string
}

// NewPackageKey creates a validated package key
func NewPackageKey(repositoryURL string, id string, channel string) (PackageKey, error) {
	err := ValidateRepositoryURL(repositoryURL)
	if err != nil {
		return PackageKey{}, fmt.Errorf("%w: %w", ErrInvalidPackageKey, err)
	}

	if !identifierRx.MatchString(id) {
		return PackageKey{}, fmt.Errorf("%w: invalid package id %q", ErrInvalidPackageKey, id)
	}

	if channel != "" && !identifierRx.MatchString(channel) {
		return PackageKey{}, fmt.Errorf("%w: invalid channel %q", ErrInvalidPackageKey, channel)
	}

	return PackageKey{RepositoryURL: repositoryURL, ID: id, Channel: channel}, nil
}

// ParsePackageKey parses the canonical string form of a key, non canonical forms are rejected
func ParsePackageKey(s string) (PackageKey, error) {
	base, query, hasQuery := strings.Cut(s, "?")

	idx := strings.LastIndex(base, "/"+packagesPathSegment)
	if idx == -1 {
		return PackageKey{}, fmt.Errorf("%w: %q has no packages path", ErrInvalidPackageKey, s)
	}

	repo := base[:idx+1]
	id := base[idx+1+len(packagesPathSegment):]

	var channel string
	if hasQuery {
		var ok bool
		channel, ok = strings.CutPrefix(query, channelQueryPrefix)
		if !ok || channel == "" {
			return PackageKey{}, fmt.Errorf("%w: unsupported query %q", ErrInvalidPackageKey, query)
		}
	}

	key, err := NewPackageKey(repo, id, channel)
	if err != nil {
		return PackageKey{}, err
	}

	if key.String() != s {
		return PackageKey{}, fmt.Errorf("%w: %q is not in canonical form", ErrInvalidPackageKey, s)
	}

	return key, nil
}

// MustParsePackageKey parses s and panics on error
func MustParsePackageKey(s string) PackageKey {
	key, err := ParsePackageKey(s)
	if err != nil {
		panic(err)
	}

	return key
}

// String returns the canonical string form of the key
func (k PackageKey) String() string {
	var sb strings.Builder

	sb.WriteString(k.RepositoryURL)
	sb.WriteString(packagesPathSegment)
	sb.WriteString(k.ID)
	if k.Channel != "" {
		sb.WriteString("?")
		sb.WriteString(channelQueryPrefix)
		sb.WriteString(k.Channel)
	}

	return sb.String()
}

// IsZero reports if the key is the zero value
func (k PackageKey) IsZero() bool {
	return k == PackageKey{}
}

// Compare orders keys by repository, id and then channel, keys without a channel sort first
func (k PackageKey) Compare(other PackageKey) int {
	if c := strings.Compare(k.RepositoryURL, other.RepositoryURL); c != 0 {
		return c
	}
	if c := strings.Compare(k.ID, other.ID); c != 0 {
		return c
	}

	return strings.Compare(k.Channel, other.Channel)
}

// Repo is the repository record the key belongs to
func (k PackageKey) Repo() RepoRecord {
	return RepoRecord{URL: k.RepositoryURL, Channel: k.Channel}
}

func (k PackageKey) MarshalText() ([]byte, error) {
	if k.IsZero() {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidPackageKey)
	}

	return []byte(k.String()), nil
}

func (k *PackageKey) UnmarshalText(text []byte) error {
	key, err := ParsePackageKey(string(text))
	if err != nil {
		return err
	}

	*k = key

	return nil
}

// ValidateRepositoryURL checks that u is an absolute http, https or file url ending in a slash
// without query, fragment or credentials
func ValidateRepositoryURL(u string) error {
	if !strings.HasSuffix(u, "/") {
		return fmt.Errorf("%w: url %q must end with /", ErrInvalidRepository, u)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRepository, err)
	}

	switch parsed.Scheme {
	case "http", "https":
		if parsed.Host == "" {
			return fmt.Errorf("%w: url %q has no host", ErrInvalidRepository, u)
		}
	case "file":
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidRepository, parsed.Scheme)
	}

	if parsed.User != nil || parsed.RawQuery != "" || parsed.Fragment != "" || parsed.ForceQuery {
		return fmt.Errorf("%w: url %q may not contain credentials, query or fragment", ErrInvalidRepository, u)
	}

	if parsed.String() != u {
		return fmt.Errorf("%w: url %q is not in canonical form", ErrInvalidRepository, u)
	}

	return nil
}
