// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BuildSessionSummary", func() {
	It("Should summarize transactions", func() {
		a := NewInstallAction(MustParsePackageKey("https://a.example.net/packages/a"), TargetDefault)
		b := NewInstallAction(MustParsePackageKey("https://a.example.net/packages/b"), TargetDefault)
		c := NewUninstallAction(MustParsePackageKey("https://a.example.net/packages/c"), TargetDefault)

		start := NewSessionStartEvent("tx1", []PackageAction{a, b, c})
		start.TimeStamp = time.Unix(1000, 0)

		progress1 := NewTransactionEvent("tx1", a, EventDownloadProgress)
		progress1.Downloaded = 10
		progress1.TimeStamp = time.Unix(1002, 0)
		progress2 := NewTransactionEvent("tx1", a, EventDownloadProgress)
		progress2.Downloaded = 100
		progress2.TimeStamp = time.Unix(1004, 0)

		done := NewTransactionEvent("tx1", a, EventCompleted)
		done.TimeStamp = time.Unix(1010, 0)

		failed := NewTransactionEvent("tx1", b, EventError)
		failed.ErrorKind = ErrorKindVerify
		failed.TimeStamp = time.Unix(1020, 0)

		summary := BuildSessionSummary([]SessionEvent{start, progress1, progress2, done, failed})

		Expect(summary.Transactions).To(Equal(1))
		Expect(summary.TotalActions).To(Equal(3))
		Expect(summary.InstalledCount).To(Equal(1))
		Expect(summary.FailedCount).To(Equal(1))
		Expect(summary.VerifyFailures).To(Equal(1))
		Expect(summary.NotAttempted).To(Equal(1))
		Expect(summary.UniquePackages).To(Equal(2))
		Expect(summary.DownloadedBytes).To(Equal(uint64(100)))
		Expect(summary.TotalDuration).To(Equal(20 * time.Second))
	})

	It("Should handle no events", func() {
		summary := BuildSessionSummary(nil)
		Expect(summary.Transactions).To(Equal(0))
		Expect(summary.TotalDuration).To(Equal(time.Duration(0)))
	})
})

var _ = Describe("EventCode", func() {
	It("Should keep the boundary codes stable", func() {
		Expect(uint32(EventNotStarted)).To(Equal(uint32(0)))
		Expect(uint32(EventUninstalling)).To(Equal(uint32(1)))
		Expect(uint32(EventInstalling)).To(Equal(uint32(2)))
		Expect(uint32(EventCompleted)).To(Equal(uint32(3)))
		Expect(uint32(EventError)).To(Equal(uint32(4)))
		Expect(uint32(EventDownloading)).To(Equal(uint32(5)))
		Expect(uint32(EventDownloadProgress)).To(Equal(uint32(6)))
		Expect(uint32(EventVerifying)).To(Equal(uint32(7)))
		Expect(EventCode(99).String()).To(Equal("unknown(99)"))
	})
})
