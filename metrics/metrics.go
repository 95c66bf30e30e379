// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/choria-io/pkgstore/model"
)

var (
	NameSpace = "choria"
	Subsystem = "pkgstore"

	// TransactionTime is a summary of the time taken to process an entire transaction
	TransactionTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "transaction_duration_seconds"),
		Help: "Time taken to process an entire transaction",
	}, []string{"store"})

	// ActionTime is a summary of the time taken to process a single action
	ActionTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "action_duration_seconds"),
		Help: "Time taken to process a single install or uninstall action",
	}, []string{"store", "action"})

	// ActionCompletedCount counts actions that completed
	ActionCompletedCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "action_completed_count"),
		Help: "How many actions completed",
	}, []string{"store", "action"})

	// ActionFailedCount counts actions that failed by the stage that failed
	ActionFailedCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "action_failed_count"),
		Help: "How many actions failed",
	}, []string{"store", "action", "stage"})

	// TransactionRejectedCount counts transactions rejected during validation
	TransactionRejectedCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "transaction_rejected_count"),
		Help: "How many transactions were rejected during validation",
	}, []string{"store"})

	// DownloadTime is a summary of the time taken to download payloads
	DownloadTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "download_duration_seconds"),
		Help: "Time taken to download payloads",
	}, []string{"store"})

	// DownloadBytes counts downloaded payload bytes
	DownloadBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "download_bytes"),
		Help: "How many payload bytes were downloaded",
	}, []string{"store"})

	// DownloadFailureCount counts failed download attempts
	DownloadFailureCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "download_error_count"),
		Help: "How many download attempts failed",
	}, []string{"store"})

	// IndexRefreshTime is a summary of the time taken to fetch repository indexes
	IndexRefreshTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "index_refresh_duration_seconds"),
		Help: "Time taken to fetch a repository index",
	}, []string{"repository"})

	// IndexRefreshFailureCount counts failed index fetches
	IndexRefreshFailureCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "index_refresh_error_count"),
		Help: "How many times fetching a repository index failed",
	}, []string{"repository"})

	// VerifyTime is a summary of the time taken to run post install verification checks
	VerifyTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "verify_duration_seconds"),
		Help: "Time taken to verify an installed package",
	}, []string{"package"})

	// VerifyStatusCount is how many verification checks ended in a certain state
	VerifyStatusCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "verify_status_count"),
		Help: "How many verification checks ended in a certain state",
	}, []string{"package", "status"})

	// FactGatherTime is a summary of the time taken to gather facts
	FactGatherTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "facts_gather_duration_seconds"),
		Help: "Time taken to gather facts",
	}, []string{})

	// AgentRequestCount counts requests handled by the agent by operation
	AgentRequestCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "agent_request_count"),
		Help: "How many requests the agent handled",
	}, []string{"operation"})

	// AgentRequestErrorCount counts requests that failed in the agent by operation
	AgentRequestErrorCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "agent_request_error_count"),
		Help: "How many agent requests failed",
	}, []string{"operation"})

	// AgentRequestTime is a summary of the time taken to handle agent requests
	AgentRequestTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: prometheus.BuildFQName(NameSpace, Subsystem, "agent_request_duration_seconds"),
		Help: "Time taken to handle agent requests",
	}, []string{"operation"})

	registerOnce sync.Once
)

// RegisterMetrics registers all metrics with the default prometheus registry, calling it more than once is safe
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(TransactionTime)
		prometheus.MustRegister(ActionTime)
		prometheus.MustRegister(ActionCompletedCount)
		prometheus.MustRegister(ActionFailedCount)
		prometheus.MustRegister(TransactionRejectedCount)
		prometheus.MustRegister(DownloadTime)
		prometheus.MustRegister(DownloadBytes)
		prometheus.MustRegister(DownloadFailureCount)
		prometheus.MustRegister(IndexRefreshTime)
		prometheus.MustRegister(IndexRefreshFailureCount)
		prometheus.MustRegister(VerifyTime)
		prometheus.MustRegister(VerifyStatusCount)
		prometheus.MustRegister(FactGatherTime)
		prometheus.MustRegister(AgentRequestCount)
		prometheus.MustRegister(AgentRequestErrorCount)
		prometheus.MustRegister(AgentRequestTime)
	})
}

// RecordTransactionEvent updates action counters from a transaction event
func RecordTransactionEvent(event *model.TransactionEvent) {
	switch event.Code {
	case model.EventCompleted:
		ActionCompletedCount.WithLabelValues(event.Store, string(event.Action)).Inc()
		ActionTime.WithLabelValues(event.Store, string(event.Action)).Observe(event.Duration.Seconds())
	case model.EventError:
		ActionFailedCount.WithLabelValues(event.Store, string(event.Action), string(event.ErrorKind)).Inc()
		ActionTime.WithLabelValues(event.Store, string(event.Action)).Observe(event.Duration.Seconds())
	}
}

func ListenAndServe(port int, log model.Logger) {
	if port <= 0 {
		return
	}

	RegisterMetrics()

	go func() {
		log.Info("Starting monitoring server", "port", port)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
		if err != nil {
			log.Error("HTTP Listener failed", "error", err)
		}
	}()
}
