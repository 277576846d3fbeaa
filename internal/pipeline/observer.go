package pipeline

import "github.com/voxgate/voxgate/internal/observability"

// MetricsObserver counts frames leaving each stage. Attached to a task when
// Params.EnableMetrics is set.
type MetricsObserver struct {
	metrics *observability.Metrics
}

func NewMetricsObserver(m *observability.Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) OnFrame(stage string, f Frame) {
	o.metrics.PipelineFrames.WithLabelValues(stage, f.Kind()).Inc()
}
