package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	"github.com/tigerroll/stationcast/pkg/batch/core/config"
	"github.com/tigerroll/stationcast/pkg/batch/core/metrics"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
	"github.com/tigerroll/stationcast/pkg/batch/support/util/logger"
)

const moduleName = "metrics"

// NewMetricRecorderProvider selects the MetricRecorder for the configured backend
// and registers its flush/shutdown with the lifecycle.
func NewMetricRecorderProvider(lc fx.Lifecycle, cfg *config.Config) (metrics.MetricRecorder, error) {
	mc := cfg.Stationcast.Metrics
	switch mc.Backend {
	case config.MetricsBackendPrometheus:
		r := NewPrometheusRecorder()
		if mc.TextfilePath != "" {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					return r.WriteTextfile(mc.TextfilePath)
				},
			})
		}
		logger.Infof("Metrics backend: prometheus")
		return r, nil

	case config.MetricsBackendOTel:
		exp, err := newMetricExporter(context.Background(), mc.OTLP)
		if err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to create OTLP metric exporter", err, false, false)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
			sdkmetric.WithResource(newResource()),
		)
		lc.Append(fx.Hook{OnStop: mp.Shutdown})
		logger.Infof("Metrics backend: otel (%s %s)", mc.OTLP.Protocol, mc.OTLP.Endpoint)
		r, err := NewOTelMetricRecorder(mp)
		if err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to create OTel instruments", err, false, false)
		}
		return r, nil

	default:
		logger.Debugf("Metrics disabled.")
		return metrics.NewNoOpMetricRecorder(), nil
	}
}

// NewTracerProvider returns an OTLP-backed tracer when tracing is enabled, a no-op tracer otherwise.
func NewTracerProvider(lc fx.Lifecycle, cfg *config.Config) (metrics.Tracer, error) {
	tc := cfg.Stationcast.Tracing
	if !tc.Enabled {
		return metrics.NewNoOpTracer(), nil
	}
	exp, err := newTraceExporter(context.Background(), tc.OTLP)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to create OTLP trace exporter", err, false, false)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(newResource()),
	)
	otel.SetTracerProvider(tp)
	lc.Append(fx.Hook{OnStop: tp.Shutdown})
	logger.Infof("Tracing enabled (%s %s)", tc.OTLP.Protocol, tc.OTLP.Endpoint)
	return NewOpenTelemetryTracer(tp), nil
}

// Module provides the configured MetricRecorder and Tracer.
var Module = fx.Options(
	fx.Provide(NewMetricRecorderProvider),
	fx.Provide(NewTracerProvider),
)
