package metrics

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tigerroll/stationcast/pkg/batch/core/domain/model"
	"github.com/tigerroll/stationcast/pkg/batch/core/metrics"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of metrics.MetricRecorder.
// The process is a short-lived batch, so the registry is flushed to a
// node_exporter textfile instead of being scraped.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	runDurationSeconds  *prometheus.HistogramVec
	runStatusCounter    *prometheus.CounterVec
	stepDurationSeconds *prometheus.HistogramVec
	stepStatusCounter   *prometheus.CounterVec
	rowsRead            *prometheus.CounterVec
	rowsWritten         *prometheus.CounterVec
	rowsDropped         *prometheus.CounterVec
	modelScore          *prometheus.GaugeVec
	operationDuration   *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a PrometheusRecorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		runDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stationcast_run_duration_seconds",
			Help:    "Duration of pipeline runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "status"}),
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stationcast_run_status_total",
			Help: "Pipeline runs by status.",
		}, []string{"job_name", "status"}),
		stepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stationcast_step_duration_seconds",
			Help:    "Duration of pipeline steps.",
			Buckets: prometheus.DefBuckets,
		}, []string{"step_name", "status", "exit_status"}),
		stepStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stationcast_step_status_total",
			Help: "Pipeline steps by status.",
		}, []string{"step_name", "status"}),
		rowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stationcast_rows_read_total",
			Help: "Rows read by step.",
		}, []string{"step_name"}),
		rowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stationcast_rows_written_total",
			Help: "Rows written by step.",
		}, []string{"step_name"}),
		rowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stationcast_rows_dropped_total",
			Help: "Rows dropped by step and reason.",
		}, []string{"step_name", "reason"}),
		modelScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stationcast_model_score",
			Help: "Evaluation score of the last trained model.",
		}, []string{"station_id", "score"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stationcast_operation_duration_seconds",
			Help:    "Duration of named operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	registry.MustRegister(
		r.runDurationSeconds,
		r.runStatusCounter,
		r.stepDurationSeconds,
		r.stepStatusCounter,
		r.rowsRead,
		r.rowsWritten,
		r.rowsDropped,
		r.modelScore,
		r.operationDuration,
	)
	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes the registry to path in the text exposition format.
func (r *PrometheusRecorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return err
	}
	logger.Infof("Metrics written to textfile '%s'.", path)
	return nil
}

func (r *PrometheusRecorder) RecordRunStart(ctx context.Context, run *model.PipelineRun) {
	r.runStatusCounter.WithLabelValues(run.JobName, run.Status.String()).Inc()
	logger.Debugf("Metrics: Run '%s' started.", run.ID)
}

func (r *PrometheusRecorder) RecordRunEnd(ctx context.Context, run *model.PipelineRun) {
	r.runStatusCounter.WithLabelValues(run.JobName, run.Status.String()).Inc()
	if run.EndTime == nil {
		return
	}
	duration := run.EndTime.Sub(run.StartTime).Seconds()
	r.runDurationSeconds.WithLabelValues(run.JobName, run.Status.String()).Observe(duration)
	logger.Debugf("Metrics: Run '%s' ended. Duration: %.3fs", run.ID, duration)
}

func (r *PrometheusRecorder) RecordStepStart(ctx context.Context, step *model.StepRun) {
	r.stepStatusCounter.WithLabelValues(step.StepName, step.Status.String()).Inc()
}

func (r *PrometheusRecorder) RecordStepEnd(ctx context.Context, step *model.StepRun) {
	r.stepStatusCounter.WithLabelValues(step.StepName, step.Status.String()).Inc()
	if step.EndTime == nil {
		return
	}
	r.stepDurationSeconds.WithLabelValues(step.StepName, step.Status.String(), step.ExitStatus.String()).
		Observe(step.Duration().Seconds())
}

func (r *PrometheusRecorder) RecordRowsRead(ctx context.Context, stepName string, count int) {
	r.rowsRead.WithLabelValues(stepName).Add(float64(count))
}

func (r *PrometheusRecorder) RecordRowsWritten(ctx context.Context, stepName string, count int) {
	r.rowsWritten.WithLabelValues(stepName).Add(float64(count))
}

func (r *PrometheusRecorder) RecordRowsDropped(ctx context.Context, stepName string, reason string, count int) {
	r.rowsDropped.WithLabelValues(stepName, reason).Add(float64(count))
}

func (r *PrometheusRecorder) RecordModelScore(ctx context.Context, station string, score string, value float64) {
	r.modelScore.WithLabelValues(station, score).Set(value)
}

// RecordDuration ignores tags; the histogram is labelled by operation name only.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDuration.WithLabelValues(name).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
