package client_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	pb "github.com/pixperk/escrowd/api/v1"
	"github.com/pixperk/escrowd/pkg/client"
	"github.com/pixperk/escrowd/pkg/payment"
	"github.com/pixperk/escrowd/pkg/types"
)

// Run against a live leader with:
//   ESCROWD_ADDR=localhost:9000 go test -bench=. -benchtime=10s ./pkg/client/

func serverAddr(tb testing.TB) string {
	addr := os.Getenv("ESCROWD_ADDR")
	if addr == "" {
		tb.Skip("ESCROWD_ADDR not set")
	}
	return addr
}

// a lender with n listed assets and a funded borrower, unique per run
type market struct {
	lender   *client.Client
	borrower *client.Client
	listings []uint64
}

func setupMarket(tb testing.TB, n int) *market {
	tb.Helper()
	addr := serverAddr(tb)
	ctx := context.Background()
	run := time.Now().UnixNano()

	lender, err := client.NewClient(addr, types.Identity(fmt.Sprintf("lender-%d", run)))
	if err != nil {
		tb.Fatalf("Failed to connect: %v", err)
	}
	borrower, err := client.NewClient(addr, types.Identity(fmt.Sprintf("borrower-%d", run)))
	if err != nil {
		tb.Fatalf("Failed to connect: %v", err)
	}
	tb.Cleanup(func() {
		lender.Stop()
		borrower.Stop()
	})

	if err := lender.ApproveLedger(ctx); err != nil {
		tb.Fatalf("Failed to approve: %v", err)
	}
	terms := make([]pb.ListTerms, n)
	for i := range terms {
		ref := types.AssetRef{Registry: "bench", Instance: types.InstanceID(fmt.Sprintf("%d-%d", run, i))}
		if err := lender.Mint(ctx, ref); err != nil {
			tb.Fatalf("Failed to mint: %v", err)
		}
		terms[i] = pb.ListTerms{
			Registry:     string(ref.Registry),
			Instance:     string(ref.Instance),
			MaxDuration:  7,
			DailyPrice:   1,
			Collateral:   10,
			PaymentAsset: "usd",
		}
	}
	listings, err := lender.ListMany(ctx, terms...)
	if err != nil {
		tb.Fatalf("Failed to list: %v", err)
	}

	if err := borrower.Faucet(ctx, "usd", 1<<40); err != nil {
		tb.Fatalf("Failed to fund: %v", err)
	}
	if err := borrower.ApprovePayment(ctx, "usd", payment.Unlimited); err != nil {
		tb.Fatalf("Failed to approve payment: %v", err)
	}

	m := &market{lender: lender, borrower: borrower}
	for _, l := range listings {
		m.listings = append(m.listings, l.ID())
	}
	return m
}

func BenchmarkRentReturn(b *testing.B) {
	m := setupMarket(b, 1)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rental, err := m.borrower.Rent(ctx, m.listings[0], 1)
		if err != nil {
			b.Fatalf("Failed to rent: %v", err)
		}
		if err := rental.Return(ctx); err != nil {
			b.Fatalf("Failed to return: %v", err)
		}
	}
}

func BenchmarkRentReturnParallel(b *testing.B) {
	const numListings = 8
	m := setupMarket(b, numListings)
	ctx := context.Background()

	var mu sync.Mutex
	next := 0

	b.ResetTimer()
	b.RunParallel(func(p *testing.PB) {
		mu.Lock()
		listing := m.listings[next%numListings]
		next++
		mu.Unlock()

		for p.Next() {
			rental, err := m.borrower.Rent(ctx, listing, 1)
			if err != nil {
				//another goroutine holds the same listing
				continue
			}
			rental.Return(ctx)
		}
	})
}

// every goroutine races for the same listing, most rents fail with AlreadyBorrowed
func BenchmarkContention(b *testing.B) {
	const numBorrowers = 3
	m := setupMarket(b, 1)
	ctx := context.Background()

	b.ResetTimer()

	var wg sync.WaitGroup
	opsPerBorrower := b.N / numBorrowers

	for i := 0; i < numBorrowers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerBorrower; j++ {
				rental, err := m.borrower.Rent(ctx, m.listings[0], 1)
				if err != nil {
					continue
				}
				time.Sleep(1 * time.Millisecond)
				rental.Return(ctx)
			}
		}()
	}

	wg.Wait()
}
