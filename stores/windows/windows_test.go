// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package windows

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/choria-io/pkgstore/index"
	"github.com/choria-io/pkgstore/model"
	"github.com/choria-io/pkgstore/model/modelmocks"
	"github.com/choria-io/pkgstore/templates"
)

func TestWindows(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Stores/Windows")
}

var _ = Describe("Windows Store", func() {
	var (
		mockctl *gomock.Controller
		logger  *modelmocks.MockLogger
		runner  *modelmocks.MockCommandRunner
		store   *Store
		ctx     context.Context
		repoURL string
		env     *templates.Env
	)

	expectCommand := func(cmd string, args []string, code int) *gomock.Call {
		return runner.EXPECT().ExecuteWithOptions(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, opts model.ExtendedExecOptions) ([]byte, []byte, int, error) {
			Expect(opts.Command).To(Equal(cmd))
			Expect(opts.Args).To(Equal(args))
			return nil, []byte("installer failed"), code, nil
		})
	}

	key := func(id string) model.PackageKey {
		return model.MustParsePackageKey(repoURL + "packages/" + id)
	}

	payload := func(id string, p map[string]any) map[string]any {
		return map[string]any{"id": id, "type": "package", "releases": []any{
			map[string]any{"version": "2.0.0", "targets": []any{map[string]any{"platform": "windows", "payload": p}}},
		}}
	}

	BeforeEach(func() {
		mockctl = gomock.NewController(GinkgoT())
		logger = modelmocks.NewMockLogger(mockctl)
		modelmocks.PermissiveLogger(logger)
		runner = modelmocks.NewMockCommandRunner(mockctl)
		ctx = context.Background()
		env = templates.NewEnv(nil, templates.Package{ID: "tool", Version: "2.0.0", Target: "user"})

		repoDir := GinkgoT().TempDir()
		repoURL = "file://" + filepath.ToSlash(repoDir) + "/"

		doc := map[string]any{
			"repository": map[string]any{"base": repoURL},
			"packages": map[string]any{
				"msi":  payload("msi", map[string]any{"type": "WindowsExecutable", "url": "tool.msi", "productCode": "{1234}", "args": "INSTALLDIR=C:/Tool"}),
				"nsis": payload("nsis", map[string]any{"type": "WindowsExecutable", "url": "setup.exe", "kind": "nsis", "uninstallArgs": "C:/Tool/uninstall.exe /S"}),
				"exe":  payload("exe", map[string]any{"type": "WindowsExecutable", "url": "setup.exe", "kind": "exe"}),
			},
		}
		j, err := json.Marshal(doc)
		Expect(err).ToNot(HaveOccurred())
		Expect(os.WriteFile(filepath.Join(repoDir, index.FileName), j, 0644)).To(Succeed())

		store, err = Create(ctx, model.StoreOptions{
			Location: GinkgoT().TempDir(),
			Logger:   logger,
			Runner:   runner,
			Facts:    map[string]any{"host": map[string]any{"info": map[string]any{"os": "windows", "kernelArch": "x86_64"}}},
		})
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(store.Close)
		Expect(store.Config().AddRepo(model.RepoRecord{URL: repoURL})).To(Succeed())
	})

	Describe("Kind", func() {
		It("Should detect msi files", func() {
			Expect(Kind(&model.Payload{URL: "https://example.net/tool.msi"})).To(Equal(KindMSI))
			Expect(Kind(&model.Payload{URL: "https://example.net/setup.exe"})).To(Equal(KindExe))
			Expect(Kind(&model.Payload{URL: "setup.exe", Kind: KindInno})).To(Equal(KindInno))
		})
	})

	Describe("installCommand", func() {
		It("Should build msi command lines", func() {
			cmd, args, err := installCommand(&model.Payload{URL: "tool.msi", Args: "TARGETDIR={{ Package.ID }}"}, model.TargetUser, "/tmp/tool.msi", env)
			Expect(err).ToNot(HaveOccurred())
			Expect(cmd).To(Equal("msiexec"))
			Expect(args).To(Equal([]string{"/i", "/tmp/tool.msi", "/qn", "/norestart", "ALLUSERS=2", "MSIINSTALLPERUSER=1", "TARGETDIR=tool"}))
		})

		It("Should build nsis and inno command lines", func() {
			cmd, args, err := installCommand(&model.Payload{Kind: KindNSIS}, model.TargetSystem, "/tmp/setup.exe", env)
			Expect(err).ToNot(HaveOccurred())
			Expect(cmd).To(Equal("/tmp/setup.exe"))
			Expect(args).To(Equal([]string{"/S"}))

			_, args, err = installCommand(&model.Payload{Kind: KindInno}, model.TargetUser, "/tmp/setup.exe", env)
			Expect(err).ToNot(HaveOccurred())
			Expect(args).To(Equal([]string{"/VERYSILENT", "/SUPPRESSMSGBOXES", "/NORESTART", "/CURRENTUSER"}))
		})

		It("Should require args for plain executables", func() {
			_, _, err := installCommand(&model.Payload{Kind: KindExe}, model.TargetSystem, "/tmp/setup.exe", env)
			Expect(err).To(MatchError("exe installers require args"))

			_, args, err := installCommand(&model.Payload{Kind: KindExe, Args: "--quiet --scope {{ Package.Target }}"}, model.TargetSystem, "/tmp/setup.exe", env)
			Expect(err).ToNot(HaveOccurred())
			Expect(args).To(Equal([]string{"--quiet", "--scope", "user"}))
		})
	})

	Describe("uninstallCommand", func() {
		It("Should remove msi packages by product code", func() {
			cmd, args, err := uninstallCommand(&model.Payload{URL: "tool.msi"}, "{1234}", env)
			Expect(err).ToNot(HaveOccurred())
			Expect(cmd).To(Equal("msiexec"))
			Expect(args).To(Equal([]string{"/x", "{1234}", "/qn", "/norestart"}))

			_, _, err = uninstallCommand(&model.Payload{URL: "tool.msi"}, "", env)
			Expect(err).To(MatchError("msi package has no product code"))
		})

		It("Should require uninstall args for other kinds", func() {
			_, _, err := uninstallCommand(&model.Payload{Kind: KindNSIS}, "", env)
			Expect(err).To(MatchError("nsis installers require uninstallArgs"))
		})
	})

	Describe("Install and Uninstall", func() {
		It("Should manage msi packages", func() {
			gomock.InOrder(
				expectCommand("msiexec", []string{"/i", "/tmp/tool.msi", "/qn", "/norestart", "ALLUSERS=1", "INSTALLDIR=C:/Tool"}, 3010),
				expectCommand("msiexec", []string{"/x", "{1234}", "/qn", "/norestart"}, 1605),
			)

			r, err := store.Install(ctx, key("msi"), "", "/tmp/tool.msi")
			Expect(err).ToNot(HaveOccurred())
			Expect(r.ProductCode).To(Equal("{1234}"))
			Expect(r.Target).To(Equal(model.TargetSystem))

			Expect(store.Uninstall(ctx, key("msi"), "")).To(Succeed())

			st, err := store.Status(ctx, key("msi"), "")
			Expect(err).ToNot(HaveOccurred())
			Expect(st).To(Equal(model.StatusNotInstalled))
		})

		It("Should manage nsis packages", func() {
			gomock.InOrder(
				expectCommand("/tmp/setup.exe", []string{"/S"}, 0),
				expectCommand("C:/Tool/uninstall.exe", []string{"/S"}, 0),
			)

			_, err := store.Install(ctx, key("nsis"), model.TargetUser, "/tmp/setup.exe")
			Expect(err).ToNot(HaveOccurred())

			st, err := store.Status(ctx, key("nsis"), model.TargetUser)
			Expect(err).ToNot(HaveOccurred())
			Expect(st).To(Equal(model.StatusUpToDate))

			Expect(store.Uninstall(ctx, key("nsis"), model.TargetUser)).To(Succeed())
		})

		It("Should fail on installer errors", func() {
			expectCommand("/tmp/setup.exe", []string{"/S"}, 2)

			_, err := store.Install(ctx, key("nsis"), "", "/tmp/setup.exe")
			Expect(err).To(MatchError(model.ErrInstallerFailed))
			Expect(err).To(MatchError(ContainSubstring("exited 2: installer failed")))
		})

		It("Should fail for executables without args before running anything", func() {
			_, err := store.Install(ctx, key("exe"), "", "/tmp/setup.exe")
			Expect(err).To(MatchError(model.ErrInstallerFailed))
		})
	})
})
