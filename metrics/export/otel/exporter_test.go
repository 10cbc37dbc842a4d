package otel

import (
	"context"
	"sync"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu         sync.RWMutex
	snapshot   goIdentity.MetricsSnapshot
	dropped    uint64
	background goIdentity.BackgroundStats
	cacheUp    bool
}

func (f *fakeSource) MetricsSnapshot() goIdentity.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goIdentity.MetricsSnapshot{
		Counters:   make(map[goIdentity.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goIdentity.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func (f *fakeSource) BackgroundStats() goIdentity.BackgroundStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.background
}

func (f *fakeSource) CacheAvailable() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cacheUp
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findInt64(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("goidentity-test")

	src := &fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters: map[goIdentity.MetricID]uint64{
				goIdentity.MetricLoginSuccess: 3,
			},
			Histograms: map[goIdentity.MetricID][]uint64{
				goIdentity.MetricVerifyTokenLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped:    1,
		background: goIdentity.BackgroundStats{Completed: 4, Queued: 2},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, exp.Close())
	}()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	v, ok := findInt64(rm, "goidentity_login_success_total")
	require.True(t, ok)
	assert.Equal(t, int64(3), v)

	v, ok = findInt64(rm, "goidentity_verify_token_latency_seconds_bucket_le_inf")
	require.True(t, ok)
	assert.Equal(t, int64(8), v)

	v, ok = findInt64(rm, "goidentity_audit_dropped_total")
	require.True(t, ok)
	assert.Equal(t, int64(1), v)

	v, ok = findInt64(rm, "goidentity_tasks_completed_total")
	require.True(t, ok)
	assert.Equal(t, int64(4), v)

	v, ok = findInt64(rm, "goidentity_tasks_queued")
	require.True(t, ok)
	assert.Equal(t, int64(2), v)

	v, ok = findInt64(rm, "goidentity_cache_available")
	require.True(t, ok)
	assert.Zero(t, v)

	_, ok = findInt64(rm, "goidentity_login_latency_seconds_count")
	assert.False(t, ok, "histograms absent from the snapshot are not observed")
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()
	meter := provider.Meter("goidentity-test")

	_, err := NewOTelExporterFromSource(meter, nil)
	assert.ErrorIs(t, err, ErrNilSource)

	_, err = NewOTelExporterFromSource(nil, &fakeSource{})
	assert.ErrorIs(t, err, ErrNilMeter)
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("goidentity-test")

	src := &fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters: map[goIdentity.MetricID]uint64{
				goIdentity.MetricLoginSuccess: 1,
			},
			Histograms: map[goIdentity.MetricID][]uint64{
				goIdentity.MetricLoginLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, exp.Close())
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goIdentity.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
