// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/model/modelmocks"
)

var _ = Describe("DirectorySessionStore", func() {
	var (
		mockCtrl *gomock.Controller
		logger   *modelmocks.MockLogger
		tempDir  string
		store    *DirectorySessionStore
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		logger = modelmocks.NewMockLogger(mockCtrl)
		modelmocks.PermissiveLogger(logger)

		tempDir = filepath.Join(GinkgoT().TempDir(), "history")

		var err error
		store, err = NewDirectorySessionStore(tempDir, logger)
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Describe("NewDirectorySessionStore", func() {
		It("Should require a directory", func() {
			_, err := NewDirectorySessionStore("", logger)
			Expect(err).To(MatchError(ContainSubstring("cannot be empty")))
		})

		It("Should create an absolute path from relative directory", func() {
			relStore, err := NewDirectorySessionStore("./relative/path", logger)
			Expect(err).ToNot(HaveOccurred())
			Expect(filepath.IsAbs(relStore.Directory())).To(BeTrue())
		})

		It("Should clean the directory path", func() {
			dirtyStore, err := NewDirectorySessionStore("/some//path/../clean/./path", logger)
			Expect(err).ToNot(HaveOccurred())
			Expect(dirtyStore.Directory()).To(Equal("/some/clean/path"))
		})
	})

	Describe("StartSession", func() {
		It("Should create the directory and record the start", func() {
			Expect(tempDir).ToNot(BeADirectory())

			Expect(store.StartSession("tx1", []model.PackageAction{model.NewInstallAction(toolKey, "")})).To(Succeed())
			Expect(tempDir).To(BeADirectory())

			events, err := store.AllEvents()
			Expect(err).ToNot(HaveOccurred())
			Expect(events).To(HaveLen(1))
			start, ok := events[0].(*model.SessionStartEvent)
			Expect(ok).To(BeTrue())
			Expect(start.Actions[0].Key).To(Equal(toolKey))
		})
	})

	Describe("RecordEvent", func() {
		It("Should write events to files", func() {
			Expect(os.MkdirAll(tempDir, 0755)).To(Succeed())

			event := completedEvent("tx1", toolKey, model.ActionInstall, time.Second)
			Expect(store.RecordEvent(event)).To(Succeed())

			expectedFile := filepath.Join(tempDir, event.EventID+".event")
			Expect(expectedFile).To(BeARegularFile())

			data, err := os.ReadFile(expectedFile)
			Expect(err).ToNot(HaveOccurred())

			var readEvent model.TransactionEvent
			Expect(json.Unmarshal(data, &readEvent)).To(Succeed())
			Expect(readEvent.Key).To(Equal(toolKey))
			Expect(readEvent.Code).To(Equal(model.EventCompleted))
			Expect(readEvent.Duration).To(Equal(time.Second))
		})

		It("Should fail when the directory does not exist", func() {
			err := store.RecordEvent(completedEvent("tx1", toolKey, model.ActionInstall, time.Second))
			Expect(err).To(MatchError(ContainSubstring("does not exist")))
		})

		It("Should reject event ids that are not ksuids", func() {
			Expect(os.MkdirAll(tempDir, 0755)).To(Succeed())

			event := completedEvent("tx1", toolKey, model.ActionInstall, time.Second)
			event.EventID = "../../../etc/passwd"

			Expect(store.RecordEvent(event)).To(MatchError(ContainSubstring("invalid event ID")))
			Expect(filepath.Join(filepath.Dir(tempDir), "etc")).ToNot(BeADirectory())
		})
	})

	Describe("AllEvents", func() {
		It("Should return nothing when the directory does not exist", func() {
			events, err := store.AllEvents()
			Expect(err).ToNot(HaveOccurred())
			Expect(events).To(BeEmpty())
		})

		It("Should skip unknown and corrupt files", func() {
			Expect(store.StartSession("tx1", nil)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(tempDir, "junk.event"), []byte("{"), 0644)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(tempDir, "other.event"), []byte(`{"protocol":"x"}`), 0644)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(tempDir, "notes.txt"), []byte("x"), 0644)).To(Succeed())

			events, err := store.AllEvents()
			Expect(err).ToNot(HaveOccurred())
			Expect(events).To(HaveLen(1))
		})

		It("Should order events by time", func() {
			Expect(os.MkdirAll(tempDir, 0755)).To(Succeed())

			now := time.Now().UTC()
			var ids []string
			for i := range 5 {
				event := model.NewTransactionEvent("tx1", model.NewInstallAction(toolKey, ""), model.EventInstalling)
				event.TimeStamp = now.Add(time.Duration(5-i) * time.Millisecond)
				ids = append([]string{event.EventID}, ids...)
				Expect(store.RecordEvent(event)).To(Succeed())
			}

			events, err := store.AllEvents()
			Expect(err).ToNot(HaveOccurred())
			Expect(events).To(HaveLen(5))
			for i, e := range events {
				Expect(e.SessionEventID()).To(Equal(ids[i]))
			}
		})
	})

	Describe("EventsForPackage", func() {
		It("Should filter by key across transactions", func() {
			Expect(store.StartSession("tx1", nil)).To(Succeed())
			Expect(store.RecordEvent(completedEvent("tx1", toolKey, model.ActionInstall, time.Second))).To(Succeed())
			Expect(store.StartSession("tx2", nil)).To(Succeed())
			Expect(store.RecordEvent(completedEvent("tx2", otherKey, model.ActionInstall, time.Second))).To(Succeed())
			Expect(store.RecordEvent(completedEvent("tx2", toolKey, model.ActionUninstall, time.Second))).To(Succeed())

			events, err := store.EventsForPackage(toolKey)
			Expect(err).ToNot(HaveOccurred())
			Expect(events).To(HaveLen(2))
			Expect(events[0].TransactionID).To(Equal("tx1"))
			Expect(events[1].Action).To(Equal(model.ActionUninstall))

			txEvents, err := store.EventsForTransaction("tx2")
			Expect(err).ToNot(HaveOccurred())
			Expect(txEvents).To(HaveLen(3))
		})
	})

	Describe("StopSession", func() {
		It("Should summarize and remove the directory when destroying", func() {
			Expect(store.StartSession("tx1", []model.PackageAction{model.NewInstallAction(toolKey, "")})).To(Succeed())
			Expect(store.RecordEvent(completedEvent("tx1", toolKey, model.ActionInstall, time.Second))).To(Succeed())

			summary, err := store.StopSession(false)
			Expect(err).ToNot(HaveOccurred())
			Expect(summary.InstalledCount).To(Equal(1))
			Expect(tempDir).To(BeADirectory())

			summary, err = store.StopSession(true)
			Expect(err).ToNot(HaveOccurred())
			Expect(summary.Transactions).To(Equal(1))
			Expect(tempDir).ToNot(BeADirectory())
		})
	})
})
