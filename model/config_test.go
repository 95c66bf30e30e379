// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SharedConfig", func() {
	var (
		saved []StoreConfig
		cfg   *SharedConfig
		repo  RepoRecord
		key   PackageKey
	)

	BeforeEach(func() {
		saved = nil
		repo = RepoRecord{URL: "https://a.example.net/repo/"}
		key = MustParsePackageKey("https://a.example.net/repo/packages/tool")
		cfg = NewSharedConfig(StoreConfig{CacheDir: "/cache"}, func(c StoreConfig) error {
			saved = append(saved, c)
			return nil
		})
	})

	It("Should add repositories once and persist", func() {
		Expect(cfg.AddRepo(repo)).To(Succeed())
		Expect(cfg.AddRepo(repo)).To(Succeed())
		Expect(cfg.Repos()).To(Equal([]RepoRecord{repo}))
		Expect(saved).To(HaveLen(2))

		found, ok := cfg.RepoByURL(repo.URL)
		Expect(ok).To(BeTrue())
		Expect(found).To(Equal(repo))

		Expect(cfg.RemoveRepo(repo)).To(Succeed())
		Expect(cfg.Repos()).To(BeEmpty())
	})

	It("Should not commit invalid updates", func() {
		err := cfg.AddRepo(RepoRecord{URL: "https://a.example.net/no-slash"})
		Expect(err).To(MatchError(ErrInvalidConfig))
		Expect(cfg.Repos()).To(BeEmpty())
		Expect(saved).To(BeEmpty())
	})

	It("Should not commit when saving fails", func() {
		cfg = NewSharedConfig(StoreConfig{}, func(StoreConfig) error { return errors.New("disk full") })
		Expect(cfg.AddRepo(repo)).To(MatchError("disk full"))
		Expect(cfg.Repos()).To(BeEmpty())
	})

	It("Should record and clear skipped versions", func() {
		Expect(cfg.SkipVersion(key, "1.2.0")).To(Succeed())
		v, ok := cfg.SkippedVersion(key)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("1.2.0"))

		Expect(cfg.SkipVersion(key, "")).To(Succeed())
		_, ok = cfg.SkippedVersion(key)
		Expect(ok).To(BeFalse())
	})

	It("Should isolate snapshots from later changes", func() {
		snap := cfg.Snapshot()
		Expect(cfg.AddRepo(repo)).To(Succeed())
		Expect(snap.Repos).To(BeEmpty())
		Expect(cfg.CacheDir()).To(Equal("/cache"))
	})
})

var _ = Describe("StoreConfig", func() {
	It("Should default the ttl and retries", func() {
		c := StoreConfig{}
		Expect(c.TTL()).To(Equal(DefaultIndexTTL))
		Expect(c.Retries()).To(Equal(DefaultDownloadRetries))

		c = StoreConfig{IndexTTL: "1h", DownloadRetries: 5}
		Expect(c.TTL()).To(Equal(time.Hour))
		Expect(c.Retries()).To(Equal(5))
	})

	It("Should reject duplicate repositories", func() {
		r := RepoRecord{URL: "https://a.example.net/repo/"}
		c := StoreConfig{Repos: []RepoRecord{r, r}}
		Expect(c.Validate()).To(MatchError(ErrInvalidConfig))
	})

	It("Should reject invalid durations", func() {
		c := StoreConfig{IndexTTL: "soon"}
		Expect(c.Validate()).To(MatchError(ErrInvalidConfig))
	})
})
