package checker

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter. Both are no-ops until the host process
// installs an SDK provider.
var (
	tracer = otel.Tracer("mglint.checker")
	meter  = otel.Meter("mglint.checker")
)

var (
	checkLatency  metric.Float64Histogram
	filesChecked  metric.Int64Counter
	findingsTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		checkLatency, err = meter.Float64Histogram(
			"mglint_check_duration_seconds",
			metric.WithDescription("Duration of single-file analysis"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesChecked, err = meter.Int64Counter(
			"mglint_files_checked_total",
			metric.WithDescription("Files analyzed"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		findingsTotal, err = meter.Int64Counter(
			"mglint_findings_total",
			metric.WithDescription("Findings reported, by severity"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startCheckSpan(ctx context.Context, path string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Runner.CheckFile",
		trace.WithAttributes(attribute.String("mglint.file_path", path)),
	)
}

func setCheckSpanResult(span trace.Span, c Counts) {
	span.SetAttributes(
		attribute.Int("mglint.error_count", c.Errors),
		attribute.Int("mglint.warning_count", c.Warnings),
		attribute.Int("mglint.info_count", c.Infos),
	)
}

func recordCheckMetrics(ctx context.Context, duration time.Duration, c Counts, readOK bool) {
	if err := initMetrics(); err != nil {
		return
	}

	checkLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("success", readOK)))
	filesChecked.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", readOK)))
	for sev, n := range map[string]int{"error": c.Errors, "warning": c.Warnings, "info": c.Infos} {
		if n > 0 {
			findingsTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("severity", sev)))
		}
	}
}
