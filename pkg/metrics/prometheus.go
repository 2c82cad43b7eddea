// Package metrics provides Prometheus metrics for the rostr journal, snapshot cache and reports.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for rostr.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Journal Metrics
	journalAppends       prometheus.Counter
	journalAppendErrors  prometheus.Counter
	journalCorruptReads  prometheus.Counter
	journalAppendLatency prometheus.Histogram
	journalRecords       prometheus.Gauge

	// Replay Metrics
	eventsReplayed prometheus.Counter
	replayDuration prometheus.Histogram

	// Snapshot Cache Metrics
	snapshotCacheHits      prometheus.Counter
	snapshotCacheMisses    prometheus.Counter
	snapshotRebuilds       prometheus.Counter
	snapshotLastRebuild    prometheus.Gauge
	snapshotWriteErrors    prometheus.Counter
	snapshotFilesRewritten prometheus.Counter

	// Entity Metrics
	people      prometheus.Gauge
	projects    prometheus.Gauge
	allocations prometheus.Gauge

	// Command and Report Metrics
	commands           *prometheus.CounterVec
	reports            *prometheus.CounterVec
	overAllocatedCells prometheus.Counter
	errorsByClass      *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rostr",
		subsystem:        "core",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
		Buckets:     m.histogramBuckets,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.journalAppends = m.counter("journal_appends_total", "Total number of events durably appended to the journal")
	m.journalAppendErrors = m.counter("journal_append_errors_total", "Total number of failed journal appends (nothing was saved)")
	m.journalCorruptReads = m.counter("journal_corrupt_reads_total", "Total number of unreadable journal records encountered")
	m.journalAppendLatency = m.histogram("journal_append_latency_milliseconds", "Journal append latency including fsync, in milliseconds")
	m.journalRecords = m.gauge("journal_records", "Number of records in the journal at the last scan")

	m.eventsReplayed = m.counter("events_replayed_total", "Total number of events applied to a snapshot")
	m.replayDuration = m.histogram("replay_duration_milliseconds", "Full rebuild duration in milliseconds")

	m.snapshotCacheHits = m.counter("snapshot_cache_hits_total", "Snapshot loads served from the derived cache")
	m.snapshotCacheMisses = m.counter("snapshot_cache_misses_total", "Snapshot loads that found no usable cache")
	m.snapshotRebuilds = m.counter("snapshot_rebuilds_total", "Total number of full rebuilds from the journal")
	m.snapshotLastRebuild = m.gauge("snapshot_last_rebuild_unix", "Unix timestamp of the last full rebuild")
	m.snapshotWriteErrors = m.counter("snapshot_write_errors_total", "Derived cache writes that failed")
	m.snapshotFilesRewritten = m.counter("snapshot_files_rewritten_total", "Derived cache files whose content changed on save")

	m.people = m.gauge("people", "Live people in the current snapshot")
	m.projects = m.gauge("projects", "Live projects in the current snapshot")
	m.allocations = m.gauge("allocations", "Allocations in the current snapshot, withdrawn included")

	m.commands = m.counterVec("commands_total", "Mutating commands by name and outcome", "command", "outcome")
	m.reports = m.counterVec("reports_total", "Reports built by kind", "kind")
	m.overAllocatedCells = m.counter("over_allocated_cells_total", "Report cells flagged as over-allocated")
	m.errorsByClass = m.counterVec("errors_by_class_total", "Command errors by user-facing class", "class")
}

// Journal Metrics Functions.

// RecordJournalAppend increments the appended events counter.
func RecordJournalAppend() {
	globalManager.journalAppends.Inc()
}

// RecordJournalAppendError increments the failed appends counter.
func RecordJournalAppendError() {
	globalManager.journalAppendErrors.Inc()
}

// RecordJournalCorruptRead increments the corrupt records counter.
func RecordJournalCorruptRead() {
	globalManager.journalCorruptReads.Inc()
}

// RecordJournalAppendLatency records journal append latency in milliseconds.
func RecordJournalAppendLatency(latencyMs float64) {
	globalManager.journalAppendLatency.Observe(latencyMs)
}

// UpdateJournalRecords sets the record count seen by the last scan.
func UpdateJournalRecords(count int) {
	globalManager.journalRecords.Set(float64(count))
}

// Replay Metrics Functions.

// RecordEventsReplayed adds n applied events.
func RecordEventsReplayed(n int) {
	globalManager.eventsReplayed.Add(float64(n))
}

// RecordRebuild records a full rebuild and its duration.
func RecordRebuild(duration time.Duration) {
	globalManager.snapshotRebuilds.Inc()
	globalManager.replayDuration.Observe(float64(duration.Microseconds()) / 1000)
	globalManager.snapshotLastRebuild.Set(float64(time.Now().Unix()))
}

// Snapshot Cache Metrics Functions.

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	globalManager.snapshotCacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	globalManager.snapshotCacheMisses.Inc()
}

// RecordCacheWriteError increments the cache write error counter.
func RecordCacheWriteError() {
	globalManager.snapshotWriteErrors.Inc()
}

// RecordCacheFilesRewritten adds n rewritten cache files.
func RecordCacheFilesRewritten(n int) {
	globalManager.snapshotFilesRewritten.Add(float64(n))
}

// UpdateEntityCounts sets the entity gauges.
func UpdateEntityCounts(people, projects, allocations int) {
	globalManager.people.Set(float64(people))
	globalManager.projects.Set(float64(projects))
	globalManager.allocations.Set(float64(allocations))
}

// Command and Report Metrics Functions.

// RecordCommand counts a mutating command with its outcome (applied, rejected, failed).
func RecordCommand(command, outcome string) {
	globalManager.commands.WithLabelValues(command, outcome).Inc()
}

// RecordReport counts a built report.
func RecordReport(kind string) {
	globalManager.reports.WithLabelValues(kind).Inc()
}

// RecordOverAllocatedCells adds n over-allocated report cells.
func RecordOverAllocatedCells(n int) {
	globalManager.overAllocatedCells.Add(float64(n))
}

// RecordErrorByClass counts an error by its user-facing class.
func RecordErrorByClass(class string) {
	globalManager.errorsByClass.WithLabelValues(class).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes the registry in the text exposition format, for
// collection by a node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteTextfile, err)
	}
	return nil
}
