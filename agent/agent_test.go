// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/choria-io/pkgstore/session"
)

var _ = Describe("Agent", func() {
	var cfg *Config

	BeforeEach(func() {
		var err error
		cfg, err = ParseConfig([]byte(`log_level: error`))
		Expect(err).ToNot(HaveOccurred())
	})

	Describe("New", func() {
		It("Should apply options", func() {
			a, err := New(cfg, WithRefreshInterval(time.Hour), WithStore("prefix", "/srv/store"), WithSubjectPrefix("acme.pkg"))
			Expect(err).ToNot(HaveOccurred())
			Expect(a.cfg.refreshIntervalDuration).To(Equal(time.Hour))
			Expect(a.cfg.Backend).To(Equal("prefix"))
			Expect(a.cfg.Location).To(Equal("/srv/store"))
			Expect(a.cfg.SubjectPrefix).To(Equal("acme.pkg"))
			Expect(a.session).ToNot(BeNil())
		})

		It("Should reject invalid options", func() {
			_, err := New(cfg, WithRefreshInterval(time.Second))
			Expect(err).To(MatchError(ContainSubstring("refresh interval must be at least")))

			_, err = New(cfg, WithSubjectPrefix(""))
			Expect(err).To(MatchError("subject prefix is required"))
		})

		It("Should keep history on disk when configured", func() {
			cfg.HistoryDir = filepath.Join(GinkgoT().TempDir(), "history")

			a, err := New(cfg)
			Expect(err).ToNot(HaveOccurred())
			Expect(a.session).To(BeAssignableToTypeOf(&session.DirectorySessionStore{}))
		})
	})

	It("Should ignore Stop before Run", func() {
		a, err := New(cfg)
		Expect(err).ToNot(HaveOccurred())
		a.Stop()
	})
})
