// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/choria-io/pkgstore/model"
)

func TestMetrics(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Metrics")
}

var _ = Describe("Metrics", func() {
	key := model.MustParsePackageKey("https://repo.example.net/packages/tool")

	It("Should allow registering more than once", func() {
		Expect(func() {
			RegisterMetrics()
			RegisterMetrics()
		}).ToNot(Panic())
	})

	It("Should count completed and failed actions", func() {
		done := model.NewTransactionEvent("tx", model.NewInstallAction(key, model.TargetDefault), model.EventCompleted)
		done.Store = "metrics-test"
		done.Duration = time.Second

		failed := model.NewTransactionEvent("tx", model.NewUninstallAction(key, model.TargetDefault), model.EventError)
		failed.Store = "metrics-test"
		failed.ErrorKind = model.ErrorKindUninstall

		progress := model.NewTransactionEvent("tx", model.NewInstallAction(key, model.TargetDefault), model.EventDownloadProgress)
		progress.Store = "metrics-test"

		RecordTransactionEvent(done)
		RecordTransactionEvent(failed)
		RecordTransactionEvent(progress)

		Expect(testutil.ToFloat64(ActionCompletedCount.WithLabelValues("metrics-test", "install"))).To(Equal(1.0))
		Expect(testutil.ToFloat64(ActionFailedCount.WithLabelValues("metrics-test", "uninstall", "uninstall"))).To(Equal(1.0))
	})
})
