package health

import (
	"testing"
)

func allUnknown(buckets []Status) bool {
	for _, b := range buckets {
		if b != StatusUnknown {
			return false
		}
	}
	return true
}

func TestToBucketsEmptyHistory(t *testing.T) {
	buckets := ToBuckets(nil, DefaultBucketCount)
	if len(buckets) != DefaultBucketCount {
		t.Fatalf("expected %d buckets, got %d", DefaultBucketCount, len(buckets))
	}
	if !allUnknown(buckets) {
		t.Errorf("empty history should yield all-unknown buckets: %v", buckets)
	}
}

func TestToBucketsSingleSample(t *testing.T) {
	history := []Sample{{Timestamp: 100, Status: StatusUnhealthy}}
	buckets := ToBuckets(history, DefaultBucketCount)
	if len(buckets) != DefaultBucketCount {
		t.Fatalf("expected %d buckets, got %d", DefaultBucketCount, len(buckets))
	}
	if !allUnknown(buckets[:DefaultBucketCount-1]) {
		t.Errorf("expected 23 leading unknown buckets: %v", buckets)
	}
	if buckets[DefaultBucketCount-1] != StatusUnhealthy {
		t.Errorf("expected the sample's status at the tail, got %s", buckets[DefaultBucketCount-1])
	}
}

func TestToBucketsSparseHistory(t *testing.T) {
	history := []Sample{
		{Timestamp: 100, Status: StatusHealthy},
		{Timestamp: 200, Status: StatusUnhealthy},
		{Timestamp: 300, Status: StatusHealthy},
	}
	buckets := ToBuckets(history, 24)
	if len(buckets) != 24 {
		t.Fatalf("expected 24 buckets, got %d", len(buckets))
	}
	if !allUnknown(buckets[:21]) {
		t.Errorf("expected 21 leading unknown buckets: %v", buckets)
	}
	want := []Status{StatusHealthy, StatusUnhealthy, StatusHealthy}
	for i, w := range want {
		if buckets[21+i] != w {
			t.Errorf("bucket %d = %s, want %s", 21+i, buckets[21+i], w)
		}
	}
}

func TestToBucketsDecimation(t *testing.T) {
	// 48 samples, 24 buckets: stride 2, bucket i samples history[2i].
	var history []Sample
	for i := 0; i < 48; i++ {
		status := StatusHealthy
		if i == 10 {
			status = StatusUnhealthy
		}
		history = append(history, Sample{Timestamp: int64(i * 1000), Status: status})
	}
	buckets := ToBuckets(history, 24)
	if len(buckets) != 24 {
		t.Fatalf("expected 24 buckets, got %d", len(buckets))
	}
	if buckets[5] != StatusUnhealthy {
		t.Errorf("expected the outage at history[10] to land in bucket 5, got %s", buckets[5])
	}
	for i, b := range buckets {
		if i != 5 && b != StatusHealthy {
			t.Errorf("bucket %d = %s, want healthy", i, b)
		}
	}
}

func TestToBucketsDeterministic(t *testing.T) {
	var history []Sample
	for i := 0; i < 100; i++ {
		status := StatusHealthy
		if i%7 == 0 {
			status = StatusUnhealthy
		}
		history = append(history, Sample{Timestamp: int64(i), Status: status})
	}
	first := ToBuckets(history, 24)
	second := ToBuckets(history, 24)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("buckets differ between identical calls at index %d", i)
		}
	}
}

func TestToBucketsDefaultsOnBadCount(t *testing.T) {
	buckets := ToBuckets(nil, 0)
	if len(buckets) != DefaultBucketCount {
		t.Errorf("expected the default bucket count for n=0, got %d", len(buckets))
	}
}
