// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("PackageAction", func() {
	Describe("ParseActions", func() {
		It("Should parse actions keeping the order", func() {
			actions, err := ParseActions([]byte(`[
				{"key": "https://a.example.net/packages/b", "action": "install", "target": "system"},
				{"key": "https://a.example.net/packages/a?channel=beta", "action": "uninstall"}
			]`))
			Expect(err).ToNot(HaveOccurred())
			Expect(actions).To(HaveLen(2))
			Expect(actions[0]).To(Equal(NewInstallAction(MustParsePackageKey("https://a.example.net/packages/b"), TargetSystem)))
			Expect(actions[1].Action).To(Equal(ActionUninstall))
			Expect(actions[1].Target).To(Equal(TargetDefault))
			Expect(actions[1].Key.Channel).To(Equal("beta"))
		})

		It("Should reject unknown actions", func() {
			_, err := ParseActions([]byte(`[{"key": "https://a.example.net/packages/b", "action": "upgrade"}]`))
			Expect(err).To(MatchError(ErrInvalidAction))
		})

		It("Should reject missing keys", func() {
			_, err := ParseActions([]byte(`[{"action": "install"}]`))
			Expect(err).To(MatchError(ErrInvalidAction))
		})

		It("Should reject invalid keys", func() {
			_, err := ParseActions([]byte(`[{"key": "nope", "action": "install"}]`))
			Expect(err).To(MatchError(ErrInvalidAction))
		})
	})
})
