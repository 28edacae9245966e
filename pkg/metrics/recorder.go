// Package metrics records build outcomes.
//
// Components take a Recorder; NoopRecorder is the default so callers never
// check for nil. PrometheusRecorder backs real collection and can export
// its registry in the node_exporter textfile format, which suits a
// short-lived CLI better than a scrape endpoint.
package metrics

import "time"

// Recorder receives build events.
type Recorder interface {
	// ObserveJob records one job outcome and how long it took.
	ObserveJob(action, outcome string, d time.Duration)

	// ObserveRun records a completed batch.
	ObserveRun(action string, jobs, workers int, d time.Duration)
}

// NoopRecorder discards every event.
type NoopRecorder struct{}

func (NoopRecorder) ObserveJob(string, string, time.Duration)   {}
func (NoopRecorder) ObserveRun(string, int, int, time.Duration) {}

var _ Recorder = NoopRecorder{}
