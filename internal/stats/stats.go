// Package stats implements the per-thread statistics gatherer: each
// worker appends records to its own collection lock-free, and the main
// thread merges all per-thread collections under a single lock in
// Finalize — lock-per-merge rather than lock-per-record.
package stats

import (
	"encoding/json"
	"sort"
	"sync"
)

// Record is one observation tied to a label, e.g. a sparsify cutoff or a
// binary-search step count.
type Record struct {
	Label int64   `json:"label"`
	Name  string  `json:"name"`
	Unit  string  `json:"unit,omitempty"`
	Value float64 `json:"value"`
}

// FailedLabel records a per-label training error that did not abort the
// run.
type FailedLabel struct {
	Label int64  `json:"label"`
	Error string `json:"error"`
}

// ThreadCollection is the append-only, single-writer buffer each worker
// owns. It must never be touched by any thread other than its owner.
type ThreadCollection struct {
	records []Record
	failed  []FailedLabel
}

// NewThreadCollection allocates a fresh per-thread collection.
func NewThreadCollection() *ThreadCollection {
	return &ThreadCollection{}
}

// Record appends one observation. Not safe for concurrent use — the
// collection has exactly one writer.
func (c *ThreadCollection) Record(label int64, name, unit string, value float64) {
	c.records = append(c.records, Record{Label: label, Name: name, Unit: unit, Value: value})
}

// RecordFailure appends a failed-label entry.
func (c *ThreadCollection) RecordFailure(label int64, err error) {
	c.failed = append(c.failed, FailedLabel{Label: label, Error: err.Error()})
}

// Gatherer owns one ThreadCollection per worker thread and merges them on
// Finalize.
type Gatherer struct {
	mutex       sync.Mutex
	collections []*ThreadCollection
	merged      Report
}

// NewGatherer allocates numThreads empty thread collections.
func NewGatherer(numThreads int) *Gatherer {
	g := &Gatherer{collections: make([]*ThreadCollection, numThreads)}
	for i := range g.collections {
		g.collections[i] = NewThreadCollection()
	}

	return g
}

// For returns the collection owned by thread tid. The caller must only
// ever call this from thread tid itself.
func (g *Gatherer) For(tid int) *ThreadCollection { return g.collections[tid] }

// Report is the JSON-serializable merged output.
type Report struct {
	Records      []Record      `json:"records"`
	FailedLabels []FailedLabel `json:"failed_labels"`
}

// Finalize merges every thread collection into a single report under one
// lock. Safe to call once, from the main thread, after every worker has
// joined.
func (g *Gatherer) Finalize() Report {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	var report Report

	for _, c := range g.collections {
		report.Records = append(report.Records, c.records...)
		report.FailedLabels = append(report.FailedLabels, c.failed...)
	}

	sort.Slice(report.FailedLabels, func(i, j int) bool {
		return report.FailedLabels[i].Label < report.FailedLabels[j].Label
	})

	g.merged = report

	return report
}

// JSON renders the merged report (call Finalize first).
func (r Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
