// Package ingest holds the pipeline stages that turn survey source
// files into rows: address ingestion, building processing, the
// address-building join, the measurement adapters and the image
// attacher. Each stage fills a Report the command prints at the end.
package ingest

import "fmt"

// Report is an ordered set of per-stage counters for one command run.
// Skip and warning counts are first-class here; they are always printed
// even when the run succeeds.
type Report struct {
	labels []string
	counts map[string]int
}

func NewReport() *Report {
	return &Report{counts: make(map[string]int)}
}

// Add increases the named counter, creating it on first use.
func (r *Report) Add(label string, n int) {
	if _, ok := r.counts[label]; !ok {
		r.labels = append(r.labels, label)
	}
	r.counts[label] += n
}

// Touch registers a counter at its current value so it is printed even
// when zero.
func (r *Report) Touch(label string) {
	r.Add(label, 0)
}

// Count reads a counter; unknown labels are zero.
func (r *Report) Count(label string) int {
	return r.counts[label]
}

// Print writes the counters to stdout in the order they were created.
func (r *Report) Print() {
	for _, label := range r.labels {
		fmt.Printf("  %s: %d\n", label, r.counts[label])
	}
}
