// Package observer defines metrics hooks for sandbox execution.
package observer

import "context"

// MetricsRecorder records sandbox metrics.
type MetricsRecorder interface {
	ObserveCompile(ctx context.Context, languageID string, ok bool, timeMs int64, memoryKB int64)
	ObserveRun(ctx context.Context, languageID string, verdict string, timeMs int64, memoryKB int64, outputKB int64)
	SlotsInUse(n int)
}

// NoopMetricsRecorder drops every observation.
type NoopMetricsRecorder struct{}

func (NoopMetricsRecorder) ObserveCompile(context.Context, string, bool, int64, int64) {}

func (NoopMetricsRecorder) ObserveRun(context.Context, string, string, int64, int64, int64) {}

func (NoopMetricsRecorder) SlotsInUse(int) {}
