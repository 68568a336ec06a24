// Package metrics provides Prometheus metrics for fern.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	// MergesTotal tracks merge requests by outcome
	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "merge",
			Name:      "requests_total",
			Help:      "Total number of merge requests by status",
		},
		[]string{"status"},
	)

	// MergeDuration tracks merge transaction duration in seconds
	MergeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "merge",
			Name:      "duration_seconds",
			Help:      "Duration of merge requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"status"},
	)

	// MergedSourcesTotal tracks source entities folded into targets
	MergedSourcesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "merge",
			Name:      "sources_total",
			Help:      "Total number of source entities merged into targets",
		},
	)

	// RepointedTotal tracks references moved or removed while merging
	RepointedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "merge",
			Name:      "references_total",
			Help:      "Total number of references touched by merges",
		},
		[]string{"kind"},
	)

	// HookFailuresTotal tracks failed post-merge side effects
	HookFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "merge",
			Name:      "hook_failures_total",
			Help:      "Total number of failed post-merge hooks",
		},
		[]string{"hook"},
	)

	// DuplicateScansTotal tracks duplicate detection scans
	DuplicateScansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "dedupe",
			Name:      "scans_total",
			Help:      "Total number of duplicate detection scans",
		},
	)

	// ClustersFound tracks the number of clusters a scan returns
	ClustersFound = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "dedupe",
			Name:      "clusters_found",
			Help:      "Number of duplicate clusters found per scan",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)
)

// ObserveMerge records the outcome of one merge request.
func ObserveMerge(result *models.MergeResult, err error, elapsed time.Duration) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	MergesTotal.WithLabelValues(status).Inc()
	MergeDuration.WithLabelValues(status).Observe(elapsed.Seconds())

	if err != nil || result == nil {
		return
	}

	MergedSourcesTotal.Add(float64(len(result.MergedIDs)))
	stats := result.Stats
	RepointedTotal.WithLabelValues("relationships_repointed").Add(float64(stats.RelationshipsRepointed))
	RepointedTotal.WithLabelValues("self_loops_removed").Add(float64(stats.SelfLoopsRemoved))
	RepointedTotal.WithLabelValues("duplicates_removed").Add(float64(stats.DuplicatesRemoved))
	RepointedTotal.WithLabelValues("relationships_deleted").Add(float64(stats.RelationshipsDeleted))
	RepointedTotal.WithLabelValues("files_moved").Add(float64(stats.FilesMoved))
	RepointedTotal.WithLabelValues("files_deleted").Add(float64(stats.FilesDeleted))
}

// ObserveScan records one duplicate detection scan.
func ObserveScan(clusters int) {
	DuplicateScansTotal.Inc()
	ClustersFound.Observe(float64(clusters))
}

// ObserveHookFailure records a failed post-merge hook.
func ObserveHookFailure(hook string) {
	HookFailuresTotal.WithLabelValues(hook).Inc()
}
