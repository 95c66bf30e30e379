// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RepoIndex", func() {
	Describe("Versioning", func() {
		It("Should default to semver", func() {
			idx := &RepoIndex{}
			Expect(idx.Versioning()).To(Equal(VersioningSemver))

			idx.Repository.Versioning = VersioningDebian
			Expect(idx.Versioning()).To(Equal(VersioningDebian))
		})
	})

	Describe("Package", func() {
		It("Should handle missing packages and nil indexes", func() {
			var idx *RepoIndex
			_, ok := idx.Package("x")
			Expect(ok).To(BeFalse())

			idx = &RepoIndex{Packages: map[string]*PackageDescriptor{"x": {ID: "x"}, "nil": nil}}
			p, ok := idx.Package("x")
			Expect(ok).To(BeTrue())
			Expect(p.ID).To(Equal("x"))

			_, ok = idx.Package("nil")
			Expect(ok).To(BeFalse())
		})
	})
})

var _ = Describe("ResolvedPackage", func() {
	key := MustParsePackageKey("https://example.net/repo/packages/tool")

	Describe("PayloadURL", func() {
		It("Should keep absolute urls", func() {
			r := &ResolvedPackage{Key: key, Target: &Target{Payload: Payload{URL: "https://cdn.example.net/tool-1.0.tar.gz"}}}
			u, err := r.PayloadURL()
			Expect(err).ToNot(HaveOccurred())
			Expect(u.String()).To(Equal("https://cdn.example.net/tool-1.0.tar.gz"))
		})

		It("Should resolve relative urls against the base", func() {
			r := &ResolvedPackage{Key: key, Base: "https://cdn.example.net/files/", Target: &Target{Payload: Payload{URL: "tool/tool-1.0.tar.gz"}}}
			u, err := r.PayloadURL()
			Expect(err).ToNot(HaveOccurred())
			Expect(u.String()).To(Equal("https://cdn.example.net/files/tool/tool-1.0.tar.gz"))

			r.Base = ""
			u, err = r.PayloadURL()
			Expect(err).ToNot(HaveOccurred())
			Expect(u.String()).To(Equal("https://example.net/repo/tool/tool-1.0.tar.gz"))
		})

		It("Should fail without a target", func() {
			_, err := (&ResolvedPackage{Key: key}).PayloadURL()
			Expect(err).To(MatchError(ErrNoInstaller))
		})
	})

	It("Should expose the payload file name", func() {
		p := Payload{URL: "https://example.net/x/tool-1.0.tar.gz?sig=1"}
		Expect(p.FileName()).To(Equal("tool-1.0.tar.gz"))
	})
})
