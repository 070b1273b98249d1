package worker

import (
	"testing"
	"time"
)

func TestMetricsSnapshotComputesPercentiles(t *testing.T) {
	m := newMetrics()
	for i := 1; i <= 100; i++ {
		m.record(time.Duration(i)*time.Millisecond, false)
	}

	snap := m.snapshot()
	if snap.Processed != 100 {
		t.Fatalf("expected 100 processed samples, got %d", snap.Processed)
	}
	if snap.Max != 100*time.Millisecond {
		t.Fatalf("expected max 100ms, got %v", snap.Max)
	}
	if snap.P50 < 40*time.Millisecond || snap.P50 > 60*time.Millisecond {
		t.Fatalf("expected p50 near the median, got %v", snap.P50)
	}
}

func TestMetricsRingStaysBounded(t *testing.T) {
	m := newMetrics()
	for i := 0; i < sampleRingSize+50; i++ {
		m.record(time.Millisecond, false)
	}

	snap := m.snapshot()
	if snap.Processed != int64(sampleRingSize+50) {
		t.Fatalf("expected processed count to track every call, got %d", snap.Processed)
	}
	if !m.filled {
		t.Fatalf("expected ring to be marked filled once wrapped")
	}
}

func TestMetricsRecordsFailures(t *testing.T) {
	m := newMetrics()
	m.record(time.Millisecond, true)
	m.record(time.Millisecond, false)

	snap := m.snapshot()
	if snap.Failed != 1 || snap.Processed != 1 {
		t.Fatalf("expected 1 failed and 1 processed, got failed=%d processed=%d", snap.Failed, snap.Processed)
	}
}
