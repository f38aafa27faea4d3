package client_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	pb "github.com/pixperk/escrowd/api/v1"
)

// Run with: ESCROWD_ADDR=localhost:9000 go test -run=Percentile -v ./pkg/client/

type latencyStats struct {
	samples []time.Duration
	mu      sync.Mutex
}

func (s *latencyStats) record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, d)
}

func (s *latencyStats) calculate() map[string]time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.samples) == 0 {
		return nil
	}

	sort.Slice(s.samples, func(i, j int) bool {
		return s.samples[i] < s.samples[j]
	})

	percentile := func(p float64) time.Duration {
		idx := int(float64(len(s.samples)) * p)
		if idx >= len(s.samples) {
			idx = len(s.samples) - 1
		}
		return s.samples[idx]
	}

	return map[string]time.Duration{
		"min":   s.samples[0],
		"p50":   percentile(0.50),
		"p90":   percentile(0.90),
		"p95":   percentile(0.95),
		"p99":   percentile(0.99),
		"p99.9": percentile(0.999),
		"max":   s.samples[len(s.samples)-1],
	}
}

func TestPercentileRent(t *testing.T) {
	m := setupMarket(t, 1)
	ctx := context.Background()

	rent, ret := &latencyStats{}, &latencyStats{}
	iterations := 500
	t.Logf("Running %d sequential rent/return pairs...", iterations)

	for i := 0; i < iterations; i++ {
		start := time.Now()
		rental, err := m.borrower.Rent(ctx, m.listings[0], 1)
		if err != nil {
			t.Fatalf("Failed to rent: %v", err)
		}
		rent.record(time.Since(start))

		start = time.Now()
		if err := rental.Return(ctx); err != nil {
			t.Fatalf("Failed to return: %v", err)
		}
		ret.record(time.Since(start))
	}

	printStats(t, "Rent", rent)
	printStats(t, "Return", ret)
}

func TestPercentileBatch(t *testing.T) {
	const batch = 10
	m := setupMarket(t, batch)
	ctx := context.Background()
	stats := &latencyStats{}

	iterations := 100
	t.Logf("Running %d batch rent/return rounds of %d listings...", iterations, batch)

	items := make([]pb.RentItem, len(m.listings))
	for i, id := range m.listings {
		items[i] = pb.RentItem{ListingID: id, Duration: 1}
	}

	for i := 0; i < iterations; i++ {
		start := time.Now()
		rentals, err := m.borrower.RentMany(ctx, items...)
		if err != nil {
			t.Fatalf("Failed to rent batch: %v", err)
		}
		ids := make([]uint64, len(rentals))
		for j, r := range rentals {
			ids[j] = r.ID()
		}
		if err := m.borrower.Return(ctx, ids...); err != nil {
			t.Fatalf("Failed to return batch: %v", err)
		}
		stats.record(time.Since(start))
	}

	printStats(t, "Batch", stats)
}

func printStats(t *testing.T, name string, stats *latencyStats) {
	percentiles := stats.calculate()
	if percentiles == nil {
		t.Logf("No data collected for %s", name)
		return
	}

	t.Logf("\n=== %s Latency Percentiles ===", name)
	t.Logf("  Samples: %d", len(stats.samples))
	t.Logf("  Min:     %v", percentiles["min"])
	t.Logf("  p50:     %v", percentiles["p50"])
	t.Logf("  p90:     %v", percentiles["p90"])
	t.Logf("  p95:     %v", percentiles["p95"])
	t.Logf("  p99:     %v", percentiles["p99"])
	t.Logf("  p99.9:   %v", percentiles["p99.9"])
	t.Logf("  Max:     %v", percentiles["max"])
	t.Logf("")
}
