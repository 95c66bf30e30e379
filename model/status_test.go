// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PackageStatus", func() {
	It("Should keep the boundary codes stable", func() {
		Expect(int8(StatusNotInstalled)).To(Equal(int8(0)))
		Expect(int8(StatusUpToDate)).To(Equal(int8(1)))
		Expect(int8(StatusRequiresUpdate)).To(Equal(int8(2)))
		Expect(int8(StatusVersionSkipped)).To(Equal(int8(3)))
		Expect(int8(StatusErrorNoInstaller)).To(Equal(int8(-2)))
		Expect(int8(StatusErrorWrongPlatform)).To(Equal(int8(-3)))
		Expect(int8(StatusErrorParsingVersion)).To(Equal(int8(-4)))
	})

	It("Should classify statuses", func() {
		Expect(StatusErrorNoInstaller.IsError()).To(BeTrue())
		Expect(StatusNotInstalled.IsError()).To(BeFalse())
		Expect(StatusNotInstalled.IsInstalled()).To(BeFalse())
		Expect(StatusVersionSkipped.IsInstalled()).To(BeTrue())
		Expect(StatusRequiresUpdate.String()).To(Equal("requires_update"))
	})

	Describe("StatusResult", func() {
		key := MustParsePackageKey("https://a.example.net/packages/b")

		It("Should use the status code when there is no error", func() {
			Expect(StatusResult{Status: StatusRequiresUpdate}.Code()).To(Equal(int8(2)))
		})

		It("Should use the error kind for hard errors", func() {
			err := fmt.Errorf("wrapped: %w", NewStatusError(key, StatusErrorNoRepository, ErrRepositoryNotFound))
			Expect(StatusResult{Error: err}.Code()).To(Equal(int8(-10)))
			Expect(errors.Is(err, ErrRepositoryNotFound)).To(BeTrue())
		})

		It("Should report other errors as internal", func() {
			Expect(StatusResult{Error: errors.New("boom")}.Code()).To(Equal(int8(-1)))
		})
	})
})
