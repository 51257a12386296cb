// Package metrics declares the Prometheus collectors updated by the import,
// consolidation and store code paths and exposed by the HTTP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Import outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

var (
	// ImportsTotal counts bulk imports by outcome.
	ImportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sena",
		Name:      "imports_total",
		Help:      "Bulk material imports by outcome.",
	}, []string{"outcome"})

	// ImportGroupsTotal counts import groups produced by successful imports.
	ImportGroupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sena",
		Name:      "import_groups_total",
		Help:      "Import groups reconstructed from bulk files.",
	})

	// DuplicatesTotal counts materials flagged as duplicates.
	DuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sena",
		Name:      "duplicate_materials_total",
		Help:      "Materials rejected as duplicates within their lot.",
	})

	// ConsolidatedRecordsTotal counts records appended by consolidation.
	ConsolidatedRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sena",
		Name:      "consolidated_records_total",
		Help:      "Records merged into the store from exported submissions.",
	})

	// StoreWritesTotal counts snapshot writes by outcome.
	StoreWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sena",
		Name:      "store_writes_total",
		Help:      "Whole-snapshot writes to the storage backend by outcome.",
	}, []string{"outcome"})

	// EnrichmentFailuresTotal counts enrichment calls that degraded to no suggestion.
	EnrichmentFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sena",
		Name:      "enrichment_failures_total",
		Help:      "Enrichment requests that returned no suggestion.",
	}, []string{"kind"})

	// HTTPRequestsTotal counts report API requests by route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sena",
		Name:      "http_requests_total",
		Help:      "Report API requests by route and status code.",
	}, []string{"route", "code"})
)
