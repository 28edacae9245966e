package metrics

import (
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg         *prom.Registry
	jobResults  *prom.CounterVec
	jobDuration *prom.HistogramVec
	runDuration *prom.HistogramVec
	runJobs     *prom.GaugeVec
	runWorkers  *prom.GaugeVec
	lastRun     *prom.GaugeVec
}

// NewPrometheusRecorder constructs and registers ttgen metrics on reg.
// A nil reg creates a private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		jobResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ttgen",
			Name:      "job_results_total",
			Help:      "Job outcomes by action and outcome",
		}, []string{"action", "outcome"}),
		jobDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "ttgen",
			Name:      "job_duration_seconds",
			Help:      "Duration of individual jobs",
			Buckets:   prom.DefBuckets,
		}, []string{"action"}),
		runDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "ttgen",
			Name:      "run_duration_seconds",
			Help:      "Duration of whole batch runs",
			Buckets:   prom.DefBuckets,
		}, []string{"action"}),
		runJobs: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "ttgen",
			Name:      "run_jobs",
			Help:      "Number of jobs in the last batch run",
		}, []string{"action"}),
		runWorkers: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "ttgen",
			Name:      "run_workers",
			Help:      "Worker pool size of the last batch run",
		}, []string{"action"}),
		lastRun: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "ttgen",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last batch run finished",
		}, []string{"action"}),
	}
	reg.MustRegister(pr.jobResults, pr.jobDuration, pr.runDuration, pr.runJobs, pr.runWorkers, pr.lastRun)
	return pr
}

func (pr *PrometheusRecorder) ObserveJob(action, outcome string, d time.Duration) {
	pr.jobResults.WithLabelValues(action, outcome).Inc()
	pr.jobDuration.WithLabelValues(action).Observe(d.Seconds())
}

func (pr *PrometheusRecorder) ObserveRun(action string, jobs, workers int, d time.Duration) {
	pr.runDuration.WithLabelValues(action).Observe(d.Seconds())
	pr.runJobs.WithLabelValues(action).Set(float64(jobs))
	pr.runWorkers.WithLabelValues(action).Set(float64(workers))
	pr.lastRun.WithLabelValues(action).SetToCurrentTime()
}

// Registry returns the registry the metrics are registered on.
func (pr *PrometheusRecorder) Registry() *prom.Registry {
	return pr.reg
}

// WriteTextfile writes the current metrics to path in the Prometheus text
// exposition format, replacing the file atomically.
func (pr *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, pr.reg); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

var _ Recorder = (*PrometheusRecorder)(nil)
