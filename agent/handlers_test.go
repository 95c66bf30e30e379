// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/choria-io/pkgstore/boundary"
	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/model/modelmocks"
	"github.com/choria-io/pkgstore/session"
	"github.com/choria-io/pkgstore/transaction"
)

type fakeManager struct {
	store model.PackageStore
}

func (f *fakeManager) OpenStore(_ context.Context, _ string, _ string) (model.PackageStore, error) {
	return f.store, nil
}

func (f *fakeManager) CreateStore(_ context.Context, _ string, _ string) (model.PackageStore, error) {
	return f.store, nil
}

func (f *fakeManager) NewTransaction(ctx context.Context, store model.PackageStore, actions []model.PackageAction, tag uint32) (*transaction.Transaction, error) {
	return transaction.New(ctx, store, actions, transaction.WithTag(tag))
}

type published struct {
	subject string
	data    []byte
}

var _ = Describe("Handlers", func() {
	var (
		mockctl *gomock.Controller
		store   *modelmocks.MockPackageStore
		logger  *modelmocks.MockLogger
		agent   *Agent
		sess    *session.MemorySessionStore
		ctx     context.Context
		sent    []published
		mu      sync.Mutex
		keyA    = model.MustParsePackageKey("https://repo.example.net/packages/a")
	)

	request := func(op string, body string) *Response {
		res := &Response{}
		Expect(json.Unmarshal(agent.handle(ctx, op, []byte(body)), res)).To(Succeed())
		return res
	}

	BeforeEach(func() {
		mockctl = gomock.NewController(GinkgoT())
		store = modelmocks.NewMockPackageStore(mockctl)
		logger = modelmocks.NewMockLogger(mockctl)
		modelmocks.PermissiveLogger(logger)
		ctx = context.Background()
		sent = nil

		store.EXPECT().Name().Return("mock").AnyTimes()
		store.EXPECT().Targets().Return([]model.InstallTarget{model.TargetPrefix}).AnyTimes()

		var err error
		sess, err = session.NewMemorySessionStore(logger)
		Expect(err).ToNot(HaveOccurred())

		adapter := boundary.New(&fakeManager{store: store}, logger)
		sh, err := adapter.OpenStore(ctx, "", "/tmp/store")
		Expect(err).ToNot(HaveOccurred())

		agent = &Agent{
			adapter: adapter,
			session: sess,
			store:   sh,
			cfg:     &Config{SubjectPrefix: "test.pkgstore"},
			log:     logger,
			publish: func(subject string, data []byte) error {
				mu.Lock()
				sent = append(sent, published{subject, data})
				mu.Unlock()
				return nil
			},
		}
	})

	AfterEach(func() {
		mockctl.Finish()
	})

	It("Should reject unknown operations and malformed requests", func() {
		res := request("explode", "")
		Expect(res.Error).To(Equal(`unknown operation "explode"`))

		res = request("status", "{")
		Expect(res.Error).To(ContainSubstring("invalid request"))
	})

	It("Should return status codes", func() {
		store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusNotInstalled, nil)
		res := request("status", `{"key":"https://repo.example.net/packages/a"}`)
		Expect(res.Error).To(BeEmpty())
		Expect(res.Code).ToNot(BeNil())
		Expect(*res.Code).To(Equal(int8(0)))

		store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusNotInstalled, model.NewStatusError(keyA, model.StatusErrorNoPackage, model.ErrPackageNotFound))
		res = request("status", `{"key":"https://repo.example.net/packages/a"}`)
		Expect(*res.Code).To(Equal(int8(-11)))
		Expect(res.Error).ToNot(BeEmpty())
	})

	It("Should download packages", func() {
		store.EXPECT().Download(gomock.Any(), keyA, gomock.Any()).Return("/cache/a.tgz", nil)
		res := request("download", `{"key":"https://repo.example.net/packages/a"}`)
		Expect(res.Error).To(BeEmpty())
		Expect(res.Data).To(MatchJSON(`"/cache/a.tgz"`))
	})

	It("Should require a path to import", func() {
		res := request("import", `{"key":"https://repo.example.net/packages/a"}`)
		Expect(res.Error).To(Equal("path is required"))
	})

	It("Should clear the cache and refresh repositories", func() {
		store.EXPECT().ClearCache().Return(nil)
		Expect(request("clear_cache", "").Error).To(BeEmpty())

		store.EXPECT().RefreshRepos(gomock.Any()).Return(nil)
		Expect(request("refresh", "").Error).To(BeEmpty())

		store.EXPECT().ForceRefreshRepos(gomock.Any()).Return(errors.New("offline"))
		Expect(request("force_refresh", "").Error).To(Equal("offline"))
	})

	It("Should require config to set", func() {
		Expect(request("config_set", `{}`).Error).To(Equal("config is required"))
	})

	Describe("transaction", func() {
		It("Should process transactions and publish events", func() {
			store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusUpToDate, nil)
			store.EXPECT().Uninstall(gomock.Any(), keyA, model.TargetDefault).Return(nil)
			store.EXPECT().Close().Return(nil).AnyTimes()

			res := request("transaction", `{"tag":9,"actions":[{"key":"https://repo.example.net/packages/a","action":"uninstall"}]}`)
			Expect(res.Error).To(BeEmpty())
			Expect(res.Data).To(MatchJSON(`{"actions":1,"events":2}`))

			Expect(sent).To(HaveLen(2))
			Expect(sent[0].subject).To(Equal("test.pkgstore.events.9"))
			Expect(sent[0].data).To(MatchJSON(`{"tag":9,"key":"https://repo.example.net/packages/a","code":1,"name":"uninstalling"}`))
			Expect(sent[1].data).To(MatchJSON(`{"tag":9,"key":"https://repo.example.net/packages/a","code":3,"name":"completed"}`))

			Expect(agent.adapter.Handles().Len()).To(Equal(1))
		})

		It("Should report the failed action", func() {
			store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusUpToDate, nil)
			store.EXPECT().Uninstall(gomock.Any(), keyA, model.TargetDefault).Return(model.ErrUninstallFailed)

			res := request("transaction", `{"tag":1,"actions":[{"key":"https://repo.example.net/packages/a","action":"uninstall"}]}`)
			Expect(res.Error).To(ContainSubstring("failed during uninstall"))
			Expect(res.Data).To(MatchJSON(`{"actions":1,"events":2,"failed_index":0,"stage":"uninstall"}`))
		})

		It("Should reject invalid transactions", func() {
			Expect(request("transaction", `{}`).Error).To(Equal("actions are required"))

			res := request("transaction", `{"actions":[{"key":"x","action":"install"}]}`)
			Expect(res.Error).To(ContainSubstring("invalid package action"))
			Expect(sent).To(BeEmpty())
		})
	})

	Describe("history", func() {
		It("Should return events for all or one package", func() {
			action := model.NewUninstallAction(keyA, model.TargetDefault)
			Expect(sess.StartSession("tx1", []model.PackageAction{action})).To(Succeed())
			Expect(sess.RecordEvent(model.NewTransactionEvent("tx1", action, model.EventCompleted))).To(Succeed())

			res := request("history", `{}`)
			Expect(res.Error).To(BeEmpty())
			var all []map[string]any
			Expect(json.Unmarshal(res.Data, &all)).To(Succeed())
			Expect(all).To(HaveLen(2))

			res = request("history", `{"key":"https://repo.example.net/packages/a"}`)
			Expect(res.Error).To(BeEmpty())
			var events []model.TransactionEvent
			Expect(json.Unmarshal(res.Data, &events)).To(Succeed())
			Expect(events).To(HaveLen(1))
			Expect(events[0].Code).To(Equal(model.EventCompleted))

			res = request("history", `{"key":"x"}`)
			Expect(res.Error).ToNot(BeEmpty())
		})
	})
})
