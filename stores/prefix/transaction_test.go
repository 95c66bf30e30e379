// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package prefix

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/choria-io/pkgstore/index"
	"github.com/choria-io/pkgstore/internal/cmdrunner"
	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/model/modelmocks"
	"github.com/choria-io/pkgstore/transaction"
)

// rel is a release published to the test repository, verify is an optional check command
type rel struct {
	version string
	verify  string
}

var _ = Describe("Transactions", func() {
	var (
		mockctl *gomock.Controller
		logger  *modelmocks.MockLogger
		ctx     context.Context
		repoDir string
		repoURL string
		s       *Store
	)

	publish := func(pkgs map[string][]rel) {
		packages := map[string]any{}

		for id, releases := range pkgs {
			var list []any
			for _, r := range releases {
				payload := tarGz(map[string]string{"bin/" + id: id + " " + r.version})
				name := id + "-" + r.version + ".tar.gz"
				Expect(os.WriteFile(filepath.Join(repoDir, name), payload, 0644)).To(Succeed())

				sum := sha256.Sum256(payload)
				p := map[string]any{
					"type":     "TarballPackage",
					"url":      name,
					"checksum": hex.EncodeToString(sum[:]),
					"size":     len(payload),
				}
				if r.verify != "" {
					p["verify"] = map[string]any{"command": r.verify}
				}

				list = append(list, map[string]any{
					"version": r.version,
					"targets": []any{map[string]any{"platform": "linux", "payload": p}},
				})
			}

			packages[id] = map[string]any{"id": id, "type": "package", "releases": list}
		}

		j, err := json.Marshal(map[string]any{"repository": map[string]any{"base": repoURL}, "packages": packages})
		Expect(err).ToNot(HaveOccurred())
		Expect(os.WriteFile(filepath.Join(repoDir, index.FileName), j, 0644)).To(Succeed())
	}

	keyFor := func(id string) model.PackageKey {
		return model.MustParsePackageKey(repoURL + "packages/" + id)
	}

	status := func(id string) model.PackageStatus {
		st, err := s.Status(ctx, keyFor(id), "")
		Expect(err).ToNot(HaveOccurred())
		return st
	}

	process := func(actions ...model.PackageAction) ([]model.TransactionEvent, error) {
		tx, err := transaction.New(ctx, s, actions, transaction.WithLogger(logger))
		Expect(err).ToNot(HaveOccurred())

		events := make(chan model.TransactionEvent, 1000)
		err = tx.Process(ctx, events)

		var got []model.TransactionEvent
		for e := range events {
			got = append(got, e)
		}

		return got, err
	}

	installed := func(id string) string {
		b, err := os.ReadFile(filepath.Join(s.Location(), packagesDir, id, "bin", id))
		Expect(err).ToNot(HaveOccurred())
		return string(b)
	}

	BeforeEach(func() {
		mockctl = gomock.NewController(GinkgoT())
		logger = modelmocks.NewMockLogger(mockctl)
		modelmocks.PermissiveLogger(logger)
		ctx = context.Background()

		repoDir = GinkgoT().TempDir()
		repoURL = "file://" + filepath.ToSlash(repoDir) + "/"

		runner, err := cmdrunner.NewCommandRunner(logger)
		Expect(err).ToNot(HaveOccurred())

		s, err = Create(ctx, model.StoreOptions{
			Location: filepath.Join(GinkgoT().TempDir(), "prefix"),
			Logger:   logger,
			Runner:   runner,
			Facts:    map[string]any{"host": map[string]any{"info": map[string]any{"os": "linux", "kernelArch": "x86_64"}}},
		})
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(s.Close)
		Expect(s.Config().AddRepo(model.RepoRecord{URL: repoURL})).To(Succeed())
	})

	It("Should install, update and uninstall a package through transactions", func() {
		publish(map[string][]rel{"p": {{version: "2.0.0"}}})
		Expect(status("p")).To(Equal(model.StatusNotInstalled))

		events, err := process(model.NewInstallAction(keyFor("p"), ""))
		Expect(err).ToNot(HaveOccurred())
		Expect(events[len(events)-1].Code).To(Equal(model.EventCompleted))
		Expect(events[len(events)-1].Version).To(Equal("2.0.0"))

		r, err := s.receipts.Get("p", model.TargetPrefix)
		Expect(err).ToNot(HaveOccurred())
		Expect(r.Version).To(Equal("2.0.0"))
		Expect(status("p")).To(Equal(model.StatusUpToDate))

		publish(map[string][]rel{"p": {{version: "2.0.0"}, {version: "3.0.0"}}})
		Expect(s.ForceRefreshRepos(ctx)).To(Succeed())
		Expect(status("p")).To(Equal(model.StatusRequiresUpdate))

		_, err = process(model.NewUninstallAction(keyFor("p"), ""))
		Expect(err).ToNot(HaveOccurred())
		Expect(status("p")).To(Equal(model.StatusNotInstalled))
		Expect(filepath.Join(s.Location(), packagesDir, "p")).ToNot(BeADirectory())
	})

	Describe("Verification", func() {
		It("Should not record installs that fail verification and accept a retry", func() {
			publish(map[string][]rel{"p": {{version: "2.0.0", verify: "/bin/false"}}})

			events, err := process(model.NewInstallAction(keyFor("p"), ""))
			Expect(err).To(MatchError(ContainSubstring("failed during verify")))
			Expect(err).To(MatchError(model.ErrVerificationFailed))

			var codes []model.EventCode
			for _, e := range events {
				codes = append(codes, e.Code)
			}
			Expect(codes).To(ContainElements(model.EventInstalling, model.EventVerifying, model.EventError))
			Expect(events[len(events)-1].ErrorKind).To(Equal(model.ErrorKindVerify))

			Expect(status("p")).ToNot(Equal(model.StatusUpToDate))
			Expect(status("p")).To(Equal(model.StatusNotInstalled))
			Expect(filepath.Join(s.Location(), packagesDir, "p")).ToNot(BeADirectory())

			pending, err := s.receipts.Pending()
			Expect(err).ToNot(HaveOccurred())
			Expect(pending).To(BeEmpty())

			// the repository fixes the check and the same install is accepted again
			publish(map[string][]rel{"p": {{version: "2.0.0", verify: "/bin/true"}}})
			Expect(s.ForceRefreshRepos(ctx)).To(Succeed())

			_, err = process(model.NewInstallAction(keyFor("p"), ""))
			Expect(err).ToNot(HaveOccurred())
			Expect(status("p")).To(Equal(model.StatusUpToDate))
			Expect(installed("p")).To(Equal("p 2.0.0"))
		})

		It("Should restore the previous install when an update fails verification", func() {
			publish(map[string][]rel{"p": {{version: "2.0.0"}}})
			_, err := process(model.NewInstallAction(keyFor("p"), ""))
			Expect(err).ToNot(HaveOccurred())

			publish(map[string][]rel{"p": {{version: "2.0.0"}, {version: "3.0.0", verify: "/bin/false"}}})
			Expect(s.ForceRefreshRepos(ctx)).To(Succeed())

			_, err = process(model.NewInstallAction(keyFor("p"), ""))
			Expect(err).To(MatchError(model.ErrVerificationFailed))

			Expect(status("p")).To(Equal(model.StatusRequiresUpdate))
			Expect(installed("p")).To(Equal("p 2.0.0"))

			r, err := s.receipts.Get("p", model.TargetPrefix)
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Version).To(Equal("2.0.0"))
		})
	})

	It("Should keep receipts when the cache is cleared", func() {
		publish(map[string][]rel{"p": {{version: "2.0.0"}}})
		_, err := process(model.NewInstallAction(keyFor("p"), ""))
		Expect(err).ToNot(HaveOccurred())

		Expect(s.ClearCache()).To(Succeed())
		Expect(s.Repos()).To(BeEmpty())
		_, cached := s.CachedPath(ctx, keyFor("p"))
		Expect(cached).To(BeFalse())

		Expect(status("p")).To(Equal(model.StatusUpToDate))

		publish(map[string][]rel{"p": {{version: "2.0.0"}, {version: "3.0.0"}}})
		Expect(s.ClearCache()).To(Succeed())
		Expect(status("p")).To(Equal(model.StatusRequiresUpdate))
	})

	It("Should keep earlier actions committed and later ones untouched when an action fails", func() {
		publish(map[string][]rel{
			"a": {{version: "1.0.0"}},
			"b": {{version: "1.0.0", verify: "/bin/false"}},
			"c": {{version: "1.0.0"}},
		})

		events, err := process(
			model.NewInstallAction(keyFor("a"), ""),
			model.NewInstallAction(keyFor("b"), ""),
			model.NewInstallAction(keyFor("c"), ""),
		)
		Expect(err).To(HaveOccurred())

		var ae *transaction.ActionError
		Expect(errors.As(err, &ae)).To(BeTrue())
		Expect(ae.Index).To(Equal(1))
		Expect(ae.Kind).To(Equal(model.ErrorKindVerify))

		for _, e := range events {
			Expect(e.Key).ToNot(Equal(keyFor("c")))
		}

		Expect(status("a")).To(Equal(model.StatusUpToDate))
		Expect(status("b")).To(Equal(model.StatusNotInstalled))
		Expect(status("c")).To(Equal(model.StatusNotInstalled))

		_, err = s.receipts.Get("c", model.TargetPrefix)
		Expect(err).To(MatchError(model.ErrReceiptNotFound))
		Expect(filepath.Join(s.Location(), packagesDir, "c")).ToNot(BeADirectory())
	})

	It("Should answer status queries while repositories refresh", func() {
		publish(map[string][]rel{"a": {{version: "1.0.0"}}, "b": {{version: "1.0.0"}}})
		_, err := process(model.NewInstallAction(keyFor("a"), ""))
		Expect(err).ToNot(HaveOccurred())

		repo := model.RepoRecord{URL: repoURL}

		var wg sync.WaitGroup
		for range 5 {
			wg.Go(func() {
				defer GinkgoRecover()
				for range 20 {
					st, err := s.Status(ctx, keyFor("a"), "")
					Expect(err).ToNot(HaveOccurred())
					Expect(st).To(Equal(model.StatusUpToDate))

					all, err := s.AllStatuses(ctx, repo, "")
					Expect(err).ToNot(HaveOccurred())
					Expect(all).To(HaveLen(2))
					Expect(all["a"].Status).To(Equal(model.StatusUpToDate))
					Expect(all["b"].Status).To(Equal(model.StatusNotInstalled))
				}
			})
		}

		wg.Go(func() {
			defer GinkgoRecover()
			for range 10 {
				Expect(s.ForceRefreshRepos(ctx)).To(Succeed())
			}
		})

		wg.Wait()
	})

	It("Should remove the receipt before the files when uninstalling", func() {
		publish(map[string][]rel{"p": {{version: "2.0.0"}}})
		_, err := process(model.NewInstallAction(keyFor("p"), ""))
		Expect(err).ToNot(HaveOccurred())

		// staging can not be created so the files can not be moved away
		staging := filepath.Join(s.Location(), stagingDir)
		Expect(os.RemoveAll(staging)).To(Succeed())
		Expect(os.WriteFile(staging, []byte("blocked"), 0644)).To(Succeed())

		_, err = process(model.NewUninstallAction(keyFor("p"), ""))
		Expect(err).To(MatchError(model.ErrUninstallFailed))

		// files without a receipt, never a receipt without files
		Expect(status("p")).To(Equal(model.StatusNotInstalled))
		Expect(installed("p")).To(Equal("p 2.0.0"))

		Expect(os.Remove(staging)).To(Succeed())

		_, err = process(model.NewInstallAction(keyFor("p"), ""))
		Expect(err).ToNot(HaveOccurred())
		Expect(status("p")).To(Equal(model.StatusUpToDate))
		Expect(installed("p")).To(Equal("p 2.0.0"))
	})
})
