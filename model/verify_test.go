// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("VerifyCheck", func() {
	It("Should parse durations", func() {
		var check VerifyCheck
		err := json.Unmarshal([]byte(`{"command":"/usr/bin/check","timeout":"10s","tries":3,"trySleep":"1m"}`), &check)
		Expect(err).ToNot(HaveOccurred())
		Expect(check.ParsedTimeout).To(Equal(10 * time.Second))
		Expect(check.ParsedTrySleep).To(Equal(time.Minute))
		Expect(check.Tries).To(Equal(3))
	})

	It("Should reject invalid durations", func() {
		var check VerifyCheck
		err := json.Unmarshal([]byte(`{"command":"x","timeout":"later"}`), &check)
		Expect(err).To(MatchError(ContainSubstring("invalid timeout duration")))
	})
})
