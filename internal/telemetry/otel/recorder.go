package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// RunRecorder emits one OTel log record per background job run so operators
// can see reconciliation and detection outcomes without scraping process logs.
type RunRecorder struct {
	logger otellog.Logger
}

// NewRunRecorder returns a RunRecorder backed by the given LoggerProvider.
// If provider is nil, the recorder drops all records.
func NewRunRecorder(provider *sdklog.LoggerProvider) *RunRecorder {
	if provider == nil {
		return &RunRecorder{}
	}
	return &RunRecorder{logger: provider.Logger("indicator-reporting.jobs")}
}

// RecordRun emits a log record for one job invocation.
func (r *RunRecorder) RecordRun(ctx context.Context, job, outcome string) {
	if r == nil || r.logger == nil {
		return
	}
	rec := otellog.Record{}
	rec.SetTimestamp(time.Now().UTC())
	rec.SetBody(otellog.StringValue("job run"))
	rec.AddAttributes(
		otellog.String("job", job),
		otellog.String("outcome", outcome),
	)
	r.logger.Emit(ctx, rec)
}
