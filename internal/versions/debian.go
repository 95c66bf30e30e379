// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package versions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	debianUpstreamRx = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z.+~-]*$`)
	debianRevisionRx = regexp.MustCompile(`^[0-9A-Za-z.+~]*$`)
)

// DebianVersion is a version in the epoch:upstream-revision form used by dpkg
type DebianVersion struct {
	Epoch    int
	Upstream string
	Revision string
}

// ParseDebian parses a Debian version, the revision is everything after the last hyphen
func ParseDebian(v string) (*DebianVersion, error) {
	if v == "" {
		return nil, fmt.Errorf("unable to parse empty string as a debian version")
	}

	res := &DebianVersion{}
	rest := v

	if e, r, ok := strings.Cut(v, ":"); ok {
		epoch, err := strconv.Atoi(e)
		if err != nil || epoch < 0 {
			return nil, fmt.Errorf("unable to parse epoch in debian version %q", v)
		}
		res.Epoch = epoch
		rest = r
	}

	if idx := strings.LastIndex(rest, "-"); idx > -1 {
		res.Revision = rest[idx+1:]
		rest = rest[:idx]
	}
	res.Upstream = rest

	if !debianUpstreamRx.MatchString(res.Upstream) || !debianRevisionRx.MatchString(res.Revision) {
		return nil, fmt.Errorf("unable to parse %q as a debian version", v)
	}

	return res, nil
}

func (v *DebianVersion) String() string {
	s := v.Upstream
	if v.Epoch != 0 {
		s = strconv.Itoa(v.Epoch) + ":" + s
	}
	if v.Revision != "" {
		s += "-" + v.Revision
	}

	return s
}

// Compare orders versions the way dpkg does, a nil other sorts lowest
func (v *DebianVersion) Compare(other *DebianVersion) int {
	if other == nil {
		return 1
	}

	switch {
	case v.Epoch < other.Epoch:
		return -1
	case v.Epoch > other.Epoch:
		return 1
	}

	if c := debianCompareFragment(v.Upstream, other.Upstream); c != 0 {
		return c
	}

	return debianCompareFragment(v.Revision, other.Revision)
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

// debianOrder weights a character so letters sort before other symbols and ~ before everything, even the end
func debianOrder(s string, i int) int {
	if i >= len(s) {
		return 0
	}

	c := s[i]
	switch {
	case isDigit(c):
		return 0
	case isLetter(c):
		return int(c)
	case c == '~':
		return -1
	default:
		return int(c) + 256
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// debianCompareFragment alternates between comparing non digit runs by weight and digit runs numerically
func debianCompareFragment(a string, b string) int {
	i, j := 0, 0

	for i < len(a) || j < len(b) {
		for (i < len(a) && !isDigit(a[i])) || (j < len(b) && !isDigit(b[j])) {
			ac, bc := debianOrder(a, i), debianOrder(b, j)
			if ac != bc {
				return sign(ac - bc)
			}
			i++
			j++
		}

		for i < len(a) && a[i] == '0' {
			i++
		}
		for j < len(b) && b[j] == '0' {
			j++
		}

		firstDiff := 0
		for i < len(a) && isDigit(a[i]) && j < len(b) && isDigit(b[j]) {
			if firstDiff == 0 {
				firstDiff = int(a[i]) - int(b[j])
			}
			i++
			j++
		}

		if i < len(a) && isDigit(a[i]) {
			return 1
		}
		if j < len(b) && isDigit(b[j]) {
			return -1
		}
		if firstDiff != 0 {
			return sign(firstDiff)
		}
	}

	return 0
}
