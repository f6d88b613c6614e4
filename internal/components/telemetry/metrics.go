package telemetry

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// MetricRecorder reads back what was recorded through the global meter
// provider.
type MetricRecorder struct {
	reader *metric.ManualReader
}

var (
	metricsForTesting     MetricRecorder
	metricsForTestingOnce sync.Once
)

// SetupMetricsForTesting installs an in-memory meter provider as the global
// one. It is only installed once per process, counters are cumulative across
// tests so compare values before and after.
func SetupMetricsForTesting() MetricRecorder {
	metricsForTestingOnce.Do(func() {
		reader := metric.NewManualReader()
		otel.SetMeterProvider(metric.NewMeterProvider(metric.WithReader(reader)))
		metricsForTesting = MetricRecorder{reader: reader}
	})
	return metricsForTesting
}

// Count returns the value of the int64 counter `name` for exactly the given
// attributes, 0 if nothing was recorded.
func (r MetricRecorder) Count(t testing.TB, name string, attrs ...attribute.KeyValue) int64 {
	var rm metricdata.ResourceMetrics
	err := r.reader.Collect(context.Background(), &rm)
	if err != nil {
		t.Fatal(err)
	}

	want := attribute.NewSet(attrs...)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, point := range sum.DataPoints {
				if point.Attributes.Equals(&want) {
					return point.Value
				}
			}
		}
	}
	return 0
}
