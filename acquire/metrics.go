// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package acquire

import "github.com/prometheus/client_golang/prometheus"

// acquisition outcomes
const (
	outcomeCacheHit       = "cache_hit"
	outcomeRefreshed      = "refreshed"
	outcomeReauthRequired = "reauth_required"
	outcomeTransientError = "transient_error"
)

func newAcquisitionsCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adb2c",
		Name:      "token_acquisitions_total",
		Help:      "Silent token acquisitions by outcome.",
	}, []string{"outcome"})
}
