package authcore

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricRefreshReuseDetected)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Errorf("Value(MetricLoginSuccess) = %d, want 2", got)
	}
	if got := m.Value(MetricRefreshReuseDetected); got != 1 {
		t.Errorf("Value(MetricRefreshReuseDetected) = %d, want 1", got)
	}
	if got := m.Value(MetricLogout); got != 0 {
		t.Errorf("Value(MetricLogout) = %d, want 0", got)
	}
}

func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.Inc(MetricLoginSuccess)
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Errorf("disabled metrics counted: %d", got)
	}

	snapshot := m.Snapshot()
	if len(snapshot.Counters) != 0 {
		t.Errorf("disabled snapshot has %d counters", len(snapshot.Counters))
	}
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics

	m.Inc(MetricLoginSuccess)
	m.Observe(MetricValidateLatency, time.Millisecond)
	if m.Value(MetricLoginSuccess) != 0 {
		t.Error("nil receiver returned a non-zero value")
	}
	if m.Enabled() {
		t.Error("nil receiver reports enabled")
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Inc(MetricSessionCreated)
	m.Observe(MetricValidateLatency, 3*time.Millisecond)
	m.Observe(MetricValidateLatency, 40*time.Millisecond)
	m.Observe(MetricValidateLatency, time.Second)

	s := m.Snapshot()
	if s.Counters[MetricSessionCreated] != 1 {
		t.Errorf("session counter = %d, want 1", s.Counters[MetricSessionCreated])
	}

	buckets := s.Histograms[MetricValidateLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("got %d buckets, want %d", len(buckets), histBucketCount)
	}
	if buckets[0] != 1 || buckets[3] != 1 || buckets[7] != 1 {
		t.Errorf("bucket distribution = %v", buckets)
	}

	// The snapshot is a copy.
	s.Counters[MetricSessionCreated] = 99
	if m.Value(MetricSessionCreated) != 1 {
		t.Error("mutating the snapshot changed the live counter")
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricLoginSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricLoginSuccess); got != 8000 {
		t.Errorf("Value = %d, want 8000", got)
	}
}
