// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package transaction

import (
	"context"
	"errors"
	"fmt"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/model/modelmocks"
)

func TestTransaction(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Transaction")
}

func resolved(key model.PackageKey, version string, verify *model.VerifyCheck) *model.ResolvedPackage {
	return &model.ResolvedPackage{
		Key:     key,
		Release: &model.Release{Version: version},
		Target: &model.Target{
			Platform: "linux",
			Payload:  model.Payload{Type: model.TarballPackage, URL: key.ID + ".tgz", Verify: verify},
		},
	}
}

func collect(events chan model.TransactionEvent) []model.TransactionEvent {
	var res []model.TransactionEvent
	for e := range events {
		res = append(res, e)
	}
	return res
}

func codes(events []model.TransactionEvent) []model.EventCode {
	var res []model.EventCode
	for _, e := range events {
		res = append(res, e.Code)
	}
	return res
}

var _ = Describe("Transaction", func() {
	var (
		mockctl *gomock.Controller
		store   *modelmocks.MockPackageStore
		logger  *modelmocks.MockLogger
		ctx     context.Context
		keyA    = model.MustParsePackageKey("https://repo.example.net/packages/a")
		keyB    = model.MustParsePackageKey("https://repo.example.net/packages/b")
		keyC    = model.MustParsePackageKey("https://repo.example.net/packages/c")
	)

	BeforeEach(func() {
		mockctl = gomock.NewController(GinkgoT())
		store = modelmocks.NewMockPackageStore(mockctl)
		logger = modelmocks.NewMockLogger(mockctl)
		modelmocks.PermissiveLogger(logger)
		ctx = context.Background()

		store.EXPECT().Name().Return("mock").AnyTimes()
		store.EXPECT().Targets().Return([]model.InstallTarget{model.TargetPrefix}).AnyTimes()
	})

	AfterEach(func() {
		mockctl.Finish()
	})

	Describe("New", func() {
		It("Should require a store and actions", func() {
			_, err := New(ctx, nil, nil)
			Expect(err).To(MatchError(model.ErrTransactionInvalid))

			_, err = New(ctx, store, nil)
			Expect(err).To(MatchError(model.ErrTransactionInvalid))
			Expect(IsRejected(err)).To(BeTrue())
		})

		It("Should reject malformed actions", func() {
			_, err := New(ctx, store, []model.PackageAction{{Key: keyA, Action: "upgrade"}})
			Expect(err).To(MatchError(model.ErrTransactionInvalid))
			Expect(err).To(MatchError(model.ErrInvalidAction))
		})

		It("Should reject installing an up to date package without side effects", func() {
			store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusUpToDate, nil)

			_, err := New(ctx, store, []model.PackageAction{model.NewInstallAction(keyA, "")}, WithLogger(logger))
			Expect(err).To(MatchError(model.ErrTransactionInvalid))

			var te *TransactionError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.Index).To(Equal(0))
			Expect(te.Key()).To(Equal(keyA))
			Expect(te.Status).To(Equal(model.StatusUpToDate))
		})

		It("Should reject uninstalling a package that is not installed", func() {
			store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusRequiresUpdate, nil)
			store.EXPECT().Status(gomock.Any(), keyB, model.TargetDefault).Return(model.StatusNotInstalled, nil)

			_, err := New(ctx, store, []model.PackageAction{
				model.NewInstallAction(keyA, ""),
				model.NewUninstallAction(keyB, ""),
			})
			Expect(err).To(MatchError(ContainSubstring("action 1")))
			Expect(err).To(MatchError(ContainSubstring("not installed")))
		})

		It("Should reject installing packages with error statuses", func() {
			store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusErrorNoInstaller, nil)

			_, err := New(ctx, store, []model.PackageAction{model.NewInstallAction(keyA, "")})
			Expect(err).To(MatchError(ContainSubstring("error_no_installer")))
		})

		It("Should reject hard status errors", func() {
			serr := model.NewStatusError(keyA, model.StatusErrorNoRepository, model.ErrRepositoryNotFound)
			store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusNotInstalled, serr)

			_, err := New(ctx, store, []model.PackageAction{model.NewInstallAction(keyA, "")})
			Expect(err).To(MatchError(model.ErrTransactionInvalid))
			Expect(err).To(MatchError(model.ErrRepositoryNotFound))

			var se *model.PackageStatusError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Kind).To(Equal(model.StatusErrorNoRepository))
		})

		It("Should reject conflicting actions before querying any status", func() {
			_, err := New(ctx, store, []model.PackageAction{
				model.NewInstallAction(keyA, ""),
				model.NewUninstallAction(keyA, model.TargetPrefix),
			})
			Expect(err).To(MatchError(ContainSubstring("conflicts with action 0")))
		})

		It("Should reject duplicate actions", func() {
			_, err := New(ctx, store, []model.PackageAction{
				model.NewInstallAction(keyA, ""),
				model.NewInstallAction(keyB, ""),
				model.NewInstallAction(keyA, ""),
			})
			Expect(err).To(MatchError(ContainSubstring("action 2")))
			Expect(err).To(MatchError(ContainSubstring("duplicates action 0")))
		})

		It("Should allow the same key on different targets", func() {
			store.EXPECT().Status(gomock.Any(), keyA, model.TargetSystem).Return(model.StatusNotInstalled, nil)
			store.EXPECT().Status(gomock.Any(), keyA, model.TargetUser).Return(model.StatusUpToDate, nil)

			tx, err := New(ctx, store, []model.PackageAction{
				model.NewInstallAction(keyA, model.TargetSystem),
				model.NewUninstallAction(keyA, model.TargetUser),
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(tx.State()).To(Equal(StateValidated))
			Expect(tx.Statuses()).To(Equal([]model.PackageStatus{model.StatusNotInstalled, model.StatusUpToDate}))
		})

		It("Should freeze a copy of the actions", func() {
			actions := []model.PackageAction{model.NewInstallAction(keyA, ""), model.NewInstallAction(keyB, "")}
			store.EXPECT().Status(gomock.Any(), gomock.Any(), gomock.Any()).Return(model.StatusNotInstalled, nil).Times(2)

			tx, err := New(ctx, store, actions, WithTag(10))
			Expect(err).ToNot(HaveOccurred())
			Expect(tx.ID()).ToNot(BeEmpty())
			Expect(tx.Tag()).To(Equal(uint32(10)))

			actions[0] = model.NewUninstallAction(keyC, "")
			Expect(tx.Actions()).To(Equal([]model.PackageAction{model.NewInstallAction(keyA, ""), model.NewInstallAction(keyB, "")}))

			got := tx.Actions()
			got[1] = model.NewUninstallAction(keyC, "")
			Expect(tx.Actions()[1].Key).To(Equal(keyB))
		})
	})

	Describe("Process", func() {
		It("Should process install and uninstall actions in order", func() {
			store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusNotInstalled, nil)
			store.EXPECT().Status(gomock.Any(), keyB, model.TargetDefault).Return(model.StatusUpToDate, nil)

			tx, err := New(ctx, store, []model.PackageAction{
				model.NewInstallAction(keyA, ""),
				model.NewUninstallAction(keyB, ""),
			}, WithTag(7), WithLogger(logger))
			Expect(err).ToNot(HaveOccurred())

			gomock.InOrder(
				store.EXPECT().Resolve(gomock.Any(), keyA).Return(resolved(keyA, "2.0.0", nil), nil),
				store.EXPECT().CachedPath(gomock.Any(), keyA).Return("", false),
				store.EXPECT().Download(gomock.Any(), keyA, gomock.Any()).DoAndReturn(func(_ context.Context, _ model.PackageKey, progress model.ProgressFunc) (string, error) {
					Expect(progress(0, 10)).To(BeTrue())
					Expect(progress(5, 10)).To(BeTrue())
					Expect(progress(10, 10)).To(BeTrue())
					return "/cache/a.tgz", nil
				}),
				store.EXPECT().Install(gomock.Any(), keyA, model.TargetDefault, "/cache/a.tgz").Return(&model.Receipt{Key: keyA, Version: "2.0.0"}, nil),
				store.EXPECT().Uninstall(gomock.Any(), keyB, model.TargetDefault).Return(nil),
			)

			events := make(chan model.TransactionEvent, 100)
			Expect(tx.Process(ctx, events)).To(Succeed())

			got := collect(events)
			Expect(codes(got)).To(Equal([]model.EventCode{
				model.EventDownloading,
				model.EventDownloadProgress,
				model.EventDownloadProgress,
				model.EventInstalling,
				model.EventCompleted,
				model.EventUninstalling,
				model.EventCompleted,
			}))

			for _, e := range got {
				Expect(e.Tag).To(Equal(uint32(7)))
				Expect(e.Store).To(Equal("mock"))
				Expect(e.TransactionID).To(Equal(tx.ID()))
			}

			Expect(got[2].Downloaded).To(Equal(uint64(10)))
			Expect(got[2].Total).To(Equal(uint64(10)))
			Expect(got[4].Key).To(Equal(keyA))
			Expect(got[4].Version).To(Equal("2.0.0"))
			Expect(got[6].Key).To(Equal(keyB))
			Expect(got[6].Action).To(Equal(model.ActionUninstall))
			Expect(tx.State()).To(Equal(StateCompleted))
			Expect(tx.Failure()).To(BeNil())
		})

		It("Should skip downloading cached payloads", func() {
			store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusRequiresUpdate, nil)
			tx, err := New(ctx, store, []model.PackageAction{model.NewInstallAction(keyA, "")})
			Expect(err).ToNot(HaveOccurred())

			store.EXPECT().Resolve(gomock.Any(), keyA).Return(resolved(keyA, "3.0.0", nil), nil)
			store.EXPECT().CachedPath(gomock.Any(), keyA).Return("/cache/a.tgz", true)
			store.EXPECT().Install(gomock.Any(), keyA, model.TargetDefault, "/cache/a.tgz").Return(&model.Receipt{Key: keyA, Version: "3.0.0"}, nil)

			events := make(chan model.TransactionEvent, 100)
			Expect(tx.Process(ctx, events)).To(Succeed())
			Expect(codes(collect(events))).To(Equal([]model.EventCode{model.EventInstalling, model.EventCompleted}))
		})

		It("Should verify payloads with checks", func() {
			store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusNotInstalled, nil)
			tx, err := New(ctx, store, []model.PackageAction{model.NewInstallAction(keyA, "")})
			Expect(err).ToNot(HaveOccurred())

			store.EXPECT().Resolve(gomock.Any(), keyA).Return(resolved(keyA, "1.0.0", &model.VerifyCheck{Command: "check_a"}), nil)
			store.EXPECT().CachedPath(gomock.Any(), keyA).Return("/cache/a.tgz", true)
			store.EXPECT().Install(gomock.Any(), keyA, model.TargetDefault, "/cache/a.tgz").DoAndReturn(func(ctx context.Context, key model.PackageKey, _ model.InstallTarget, _ string) (*model.Receipt, error) {
				model.NotifyVerifying(ctx)
				return &model.Receipt{Key: key, Version: "1.0.0"}, nil
			})

			events := make(chan model.TransactionEvent, 100)
			Expect(tx.Process(ctx, events)).To(Succeed())
			Expect(codes(collect(events))).To(Equal([]model.EventCode{model.EventInstalling, model.EventVerifying, model.EventCompleted}))
		})

		It("Should fail actions that do not verify", func() {
			store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusNotInstalled, nil)
			tx, err := New(ctx, store, []model.PackageAction{model.NewInstallAction(keyA, "")})
			Expect(err).ToNot(HaveOccurred())

			store.EXPECT().Resolve(gomock.Any(), keyA).Return(resolved(keyA, "1.0.0", &model.VerifyCheck{Command: "check_a"}), nil)
			store.EXPECT().CachedPath(gomock.Any(), keyA).Return("/cache/a.tgz", true)
			store.EXPECT().Install(gomock.Any(), keyA, model.TargetDefault, "/cache/a.tgz").DoAndReturn(func(ctx context.Context, key model.PackageKey, _ model.InstallTarget, _ string) (*model.Receipt, error) {
				model.NotifyVerifying(ctx)
				return nil, fmt.Errorf("%w: %s: CRITICAL after 1 tries: not running", model.ErrVerificationFailed, key)
			})

			events := make(chan model.TransactionEvent, 100)
			err = tx.Process(ctx, events)
			Expect(err).To(MatchError(model.ErrVerificationFailed))

			var ae *ActionError
			Expect(errors.As(err, &ae)).To(BeTrue())
			Expect(ae.Kind).To(Equal(model.ErrorKindVerify))

			got := collect(events)
			Expect(codes(got)).To(Equal([]model.EventCode{model.EventInstalling, model.EventVerifying, model.EventError}))
			Expect(got[len(got)-1].ErrorKind).To(Equal(model.ErrorKindVerify))
			Expect(got[len(got)-1].Error).To(ContainSubstring("not running"))
		})

		It("Should stop at the first failure and keep earlier actions committed", func() {
			store.EXPECT().Status(gomock.Any(), gomock.Any(), model.TargetDefault).Return(model.StatusNotInstalled, nil).Times(3)
			tx, err := New(ctx, store, []model.PackageAction{
				model.NewInstallAction(keyA, ""),
				model.NewInstallAction(keyB, ""),
				model.NewInstallAction(keyC, ""),
			})
			Expect(err).ToNot(HaveOccurred())

			store.EXPECT().Resolve(gomock.Any(), keyA).Return(resolved(keyA, "1.0.0", nil), nil)
			store.EXPECT().CachedPath(gomock.Any(), keyA).Return("/cache/a.tgz", true)
			store.EXPECT().Install(gomock.Any(), keyA, model.TargetDefault, "/cache/a.tgz").Return(&model.Receipt{Key: keyA, Version: "1.0.0"}, nil)

			store.EXPECT().Resolve(gomock.Any(), keyB).Return(resolved(keyB, "1.0.0", nil), nil)
			store.EXPECT().CachedPath(gomock.Any(), keyB).Return("/cache/b.tgz", true)
			store.EXPECT().Install(gomock.Any(), keyB, model.TargetDefault, "/cache/b.tgz").Return(nil, fmt.Errorf("%w: exit 1", model.ErrInstallerFailed))

			events := make(chan model.TransactionEvent, 100)
			err = tx.Process(ctx, events)
			Expect(err).To(MatchError(model.ErrInstallerFailed))

			var ae *ActionError
			Expect(errors.As(err, &ae)).To(BeTrue())
			Expect(ae.Index).To(Equal(1))
			Expect(ae.Key()).To(Equal(keyB))
			Expect(ae.Kind).To(Equal(model.ErrorKindInstall))

			var completed, failed []model.PackageKey
			for _, e := range collect(events) {
				Expect(e.Key).ToNot(Equal(keyC))
				switch e.Code {
				case model.EventCompleted:
					completed = append(completed, e.Key)
				case model.EventError:
					failed = append(failed, e.Key)
				}
			}
			Expect(completed).To(Equal([]model.PackageKey{keyA}))
			Expect(failed).To(Equal([]model.PackageKey{keyB}))
			Expect(tx.State()).To(Equal(StateFailed))
			Expect(tx.Failure()).To(Equal(ae))
		})

		It("Should report download failures", func() {
			store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusNotInstalled, nil)
			tx, err := New(ctx, store, []model.PackageAction{model.NewInstallAction(keyA, "")})
			Expect(err).ToNot(HaveOccurred())

			store.EXPECT().Resolve(gomock.Any(), keyA).Return(resolved(keyA, "1.0.0", nil), nil)
			store.EXPECT().CachedPath(gomock.Any(), keyA).Return("", false)
			store.EXPECT().Download(gomock.Any(), keyA, gomock.Any()).Return("", model.ErrDownloadFailed)

			events := make(chan model.TransactionEvent, 100)
			err = tx.Process(ctx, events)
			Expect(err).To(MatchError(model.ErrDownloadFailed))

			got := collect(events)
			Expect(codes(got)).To(Equal([]model.EventCode{model.EventDownloading, model.EventError}))
			Expect(got[1].ErrorKind).To(Equal(model.ErrorKindDownload))
		})

		It("Should cancel downloads through the progress callback when the context is cancelled", func() {
			store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusNotInstalled, nil)
			tx, err := New(ctx, store, []model.PackageAction{model.NewInstallAction(keyA, "")})
			Expect(err).ToNot(HaveOccurred())

			cctx, cancel := context.WithCancel(ctx)

			store.EXPECT().Resolve(gomock.Any(), keyA).Return(resolved(keyA, "1.0.0", nil), nil)
			store.EXPECT().CachedPath(gomock.Any(), keyA).Return("", false)
			store.EXPECT().Download(gomock.Any(), keyA, gomock.Any()).DoAndReturn(func(_ context.Context, _ model.PackageKey, progress model.ProgressFunc) (string, error) {
				Expect(progress(0, 10)).To(BeTrue())
				cancel()
				Expect(progress(5, 10)).To(BeFalse())
				return "", model.ErrDownloadCancelled
			})

			err = tx.Process(cctx, nil)
			Expect(err).To(MatchError(model.ErrDownloadCancelled))
		})

		It("Should report uninstall failures", func() {
			store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusUpToDate, nil)
			tx, err := New(ctx, store, []model.PackageAction{model.NewUninstallAction(keyA, "")})
			Expect(err).ToNot(HaveOccurred())

			store.EXPECT().Uninstall(gomock.Any(), keyA, model.TargetDefault).Return(model.ErrUninstallFailed)

			events := make(chan model.TransactionEvent, 100)
			err = tx.Process(ctx, events)
			Expect(err).To(MatchError(model.ErrUninstallFailed))

			got := collect(events)
			Expect(got[1].ErrorKind).To(Equal(model.ErrorKindUninstall))
		})

		It("Should run installers on a context that is not cancelled", func() {
			store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusUpToDate, nil)
			tx, err := New(ctx, store, []model.PackageAction{model.NewUninstallAction(keyA, "")})
			Expect(err).ToNot(HaveOccurred())

			cctx, cancel := context.WithCancel(ctx)
			cancel()

			store.EXPECT().Uninstall(gomock.Any(), keyA, model.TargetDefault).DoAndReturn(func(ctx context.Context, _ model.PackageKey, _ model.InstallTarget) error {
				Expect(ctx.Err()).ToNot(HaveOccurred())
				return nil
			})

			Expect(tx.Process(cctx, nil)).To(Succeed())
		})

		It("Should only process once", func() {
			store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusUpToDate, nil)
			tx, err := New(ctx, store, []model.PackageAction{model.NewUninstallAction(keyA, "")})
			Expect(err).ToNot(HaveOccurred())

			store.EXPECT().Uninstall(gomock.Any(), keyA, model.TargetDefault).Return(model.ErrUninstallFailed)
			Expect(tx.Process(ctx, nil)).To(MatchError(model.ErrUninstallFailed))

			events := make(chan model.TransactionEvent, 10)
			Expect(tx.Process(ctx, events)).To(MatchError(model.ErrTransactionProcessed))
			Expect(collect(events)).To(BeEmpty())
		})

		It("Should record events in the session", func() {
			session := modelmocks.NewMockSessionStore(mockctl)

			store.EXPECT().Status(gomock.Any(), keyA, model.TargetDefault).Return(model.StatusUpToDate, nil)
			tx, err := New(ctx, store, []model.PackageAction{model.NewUninstallAction(keyA, "")}, WithSession(session))
			Expect(err).ToNot(HaveOccurred())

			var recorded []model.EventCode
			session.EXPECT().StartSession(tx.ID(), tx.Actions()).Return(nil)
			session.EXPECT().RecordEvent(gomock.Any()).DoAndReturn(func(e model.SessionEvent) error {
				recorded = append(recorded, e.(*model.TransactionEvent).Code)
				return nil
			}).Times(2)
			store.EXPECT().Uninstall(gomock.Any(), keyA, model.TargetDefault).Return(nil)

			Expect(tx.Process(ctx, nil)).To(Succeed())
			Expect(recorded).To(Equal([]model.EventCode{model.EventUninstalling, model.EventCompleted}))
		})
	})
})
