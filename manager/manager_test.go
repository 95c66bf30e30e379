// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"go.uber.org/mock/gomock"

	"github.com/choria-io/pkgstore/config"
	"github.com/choria-io/pkgstore/internal/registry"
	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/model/modelmocks"
	"github.com/choria-io/pkgstore/session"
	"github.com/choria-io/pkgstore/transaction"
)

func TestManager(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Manager Suite")
}

var _ = Describe("Manager", func() {
	var (
		ctrl    *gomock.Controller
		mockLog *modelmocks.MockLogger
		runner  *modelmocks.MockCommandRunner
		ctx     context.Context
		td      string
		facts   map[string]any
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		mockLog = modelmocks.NewMockLogger(ctrl)
		modelmocks.PermissiveLogger(mockLog)
		runner = modelmocks.NewMockCommandRunner(ctrl)
		ctx = context.Background()
		td = GinkgoT().TempDir()
		facts = map[string]any{"host": map[string]any{"info": map[string]any{"os": "linux"}}}
	})

	AfterEach(func() {
		ctrl.Finish()
	})

	newManager := func(opts ...Option) *Manager {
		mgr, err := NewManager(mockLog, mockLog, append([]Option{WithPaths(config.PathsUnder(td)), WithFacts(facts), WithRunner(runner)}, opts...)...)
		Expect(err).ToNot(HaveOccurred())
		return mgr
	}

	Describe("NewManager", func() {
		It("Should register all backends", func() {
			newManager()
			Expect(registry.Backends()).To(Equal([]string{"apt", "dnf", "macos", "prefix", "windows"}))

			// safe to call again
			newManager()
			Expect(registry.Backends()).To(HaveLen(5))
		})

		It("Should default to a memory session", func() {
			mgr := newManager()
			Expect(mgr.Session()).To(BeAssignableToTypeOf(&session.MemorySessionStore{}))
			Expect(mgr.Paths().ConfigDir()).To(Equal(filepath.Join(td, "config")))
			Expect(mgr.UserLogger()).To(Equal(mockLog))
		})

		It("Should support a directory session", func() {
			mgr := newManager(WithSessionDirectory(filepath.Join(td, "history")))
			Expect(mgr.Session()).To(BeAssignableToTypeOf(&session.DirectorySessionStore{}))
		})

		It("Should validate options", func() {
			_, err := NewManager(mockLog, mockLog, WithFacts(nil))
			Expect(err).To(MatchError("facts are required"))

			_, err = NewManager(mockLog, mockLog, WithPaths(nil))
			Expect(err).To(MatchError("path provider is required"))

			_, err = NewManager(mockLog, mockLog, WithSession(nil))
			Expect(err).To(MatchError("session store is required"))
		})
	})

	Describe("Logger", func() {
		It("Should require key value pairs", func() {
			mgr := newManager()
			_, err := mgr.Logger("one")
			Expect(err).To(MatchError(ContainSubstring("key value pairs")))

			log, err := mgr.Logger("one", 1)
			Expect(err).ToNot(HaveOccurred())
			Expect(log).ToNot(BeNil())
		})
	})

	Describe("Facts", func() {
		It("Should return copies of the facts", func() {
			mgr := newManager()

			f, err := mgr.Facts(ctx)
			Expect(err).ToNot(HaveOccurred())
			f["extra"] = true

			f, err = mgr.Facts(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(f).ToNot(HaveKey("extra"))

			raw, err := mgr.FactsRaw(ctx)
			Expect(err).ToNot(HaveOccurred())

			var parsed map[string]any
			Expect(json.Unmarshal(raw, &parsed)).To(Succeed())
			Expect(parsed).To(HaveKey("host"))
		})
	})

	Describe("NewRunner", func() {
		It("Should return the configured runner", func() {
			r, err := newManager().NewRunner()
			Expect(err).ToNot(HaveOccurred())
			Expect(r).To(Equal(runner))
		})
	})

	Describe("Stores", func() {
		It("Should select the prefix backend when no package manager is present", func() {
			mgr := newManager()
			location := filepath.Join(td, "store")

			store, err := mgr.CreateStore(ctx, "", location)
			Expect(err).ToNot(HaveOccurred())
			Expect(store.Name()).To(Equal("prefix"))
			Expect(store.Location()).To(Equal(location))
			Expect(store.Close()).To(Succeed())

			_, err = mgr.CreateStore(ctx, "", location)
			Expect(err).To(MatchError(model.ErrStoreExists))

			store, err = mgr.OpenStore(ctx, "prefix", location)
			Expect(err).ToNot(HaveOccurred())
			Expect(store.Close()).To(Succeed())
		})

		It("Should use the default location", func() {
			mgr := newManager()

			store, err := mgr.OpenOrCreateStore(ctx, "prefix", "")
			Expect(err).ToNot(HaveOccurred())
			Expect(store.Location()).To(Equal(filepath.Join(td, "config", "stores", "prefix")))
			Expect(store.Close()).To(Succeed())

			store, err = mgr.OpenOrCreateStore(ctx, "prefix", "")
			Expect(err).ToNot(HaveOccurred())
			Expect(store.Close()).To(Succeed())
		})

		It("Should fail to open missing stores", func() {
			_, err := newManager().OpenStore(ctx, "prefix", filepath.Join(td, "missing"))
			Expect(err).To(MatchError(model.ErrStoreNotFound))
		})

		It("Should reject unknown and unsuitable backends", func() {
			mgr := newManager()

			_, err := mgr.OpenStore(ctx, "nix", "")
			Expect(err).To(MatchError(model.ErrBackendNotFound))

			_, err = mgr.CreateStore(ctx, "apt", filepath.Join(td, "apt"))
			Expect(err).To(MatchError(model.ErrBackendNotManageable))
		})
	})

	Describe("NewTransaction", func() {
		It("Should build transactions against the store", func() {
			mgr := newManager()

			store, err := mgr.CreateStore(ctx, "prefix", filepath.Join(td, "store"))
			Expect(err).ToNot(HaveOccurred())
			defer store.Close()

			key := model.MustParsePackageKey("https://repo.example.net/packages/tool")
			_, err = mgr.NewTransaction(ctx, store, []model.PackageAction{model.NewInstallAction(key, "")}, 1)
			Expect(transaction.IsRejected(err)).To(BeTrue())
			Expect(err).To(MatchError(model.ErrRepositoryNotFound))
		})
	})

	Describe("RecordEvent", func() {
		It("Should record into the session", func() {
			mgr := newManager()
			key := model.MustParsePackageKey("https://repo.example.net/packages/tool")

			Expect(mgr.RecordEvent(model.NewTransactionEvent("tx", model.NewInstallAction(key, ""), model.EventCompleted))).To(Succeed())

			events, err := mgr.Session().EventsForPackage(key)
			Expect(err).ToNot(HaveOccurred())
			Expect(events).To(HaveLen(1))
		})
	})
})

var _ = Describe("Loggers", func() {
	It("Should log through slog", func() {
		buf := &bytes.Buffer{}
		log := NewSlogLogger(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

		log.With("store", "prefix").Info("hello", "key", "value")
		Expect(buf.String()).To(ContainSubstring("msg=hello"))
		Expect(buf.String()).To(ContainSubstring("store=prefix"))
		Expect(buf.String()).To(ContainSubstring("key=value"))
	})

	It("Should log through logrus", func() {
		buf := &bytes.Buffer{}
		l := logrus.New()
		l.SetOutput(buf)
		l.SetFormatter(&logrus.JSONFormatter{})

		log := NewLogrusLogger(logrus.NewEntry(l))
		log.With("store", "prefix").Warn("hello", "key", "value")

		var entry map[string]any
		Expect(json.Unmarshal(buf.Bytes(), &entry)).To(Succeed())
		Expect(entry).To(HaveKeyWithValue("msg", "hello"))
		Expect(entry).To(HaveKeyWithValue("store", "prefix"))
		Expect(entry).To(HaveKeyWithValue("key", "value"))
		Expect(entry).To(HaveKeyWithValue("level", "warning"))
	})
})
