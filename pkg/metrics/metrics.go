package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operation counter - every ledger operation through the api
	// labels: op (list, rent_many, ...), status (success/failure)
	// use this to calculate success rate per operation
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrowd_operations_total",
			Help: "total number of ledger operations",
		},
		[]string{"op", "status"},
	)

	// operation latency - histogram to track p50/p90/p99
	// includes the raft round trip, so this is commit latency
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "escrowd_operation_duration_seconds",
			Help:    "time taken to commit a ledger operation",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
		[]string{"op"},
	)

	// listings that are not delisted
	ListingsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "escrowd_listings_active",
			Help: "current number of live listings",
		},
	)

	// rentals that are neither returned nor claimed
	RentalsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "escrowd_rentals_active",
			Help: "current number of active rentals",
		},
	)

	// collateral held by the ledger, per payment asset
	// labels: asset
	CollateralEscrowed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "escrowd_collateral_escrowed",
			Help: "collateral currently held in escrow",
		},
		[]string{"asset"},
	)

	// raft leader status - 1 if this node is leader, 0 if follower
	// exactly one node in cluster should have this = 1
	RaftIsLeader = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "escrowd_raft_is_leader",
			Help: "whether this node is the raft leader (1 = leader, 0 = follower)",
		},
	)

	// cluster size - number of voters in the raft configuration
	RaftPeers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "escrowd_raft_peers",
			Help: "number of peers in the raft cluster",
		},
	)

	// raft log index - last index applied to FSM
	// lag between leader and follower = replication delay
	RaftAppliedIndex = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "escrowd_raft_applied_index",
			Help: "last raft log index applied to the fsm",
		},
	)

	// service uptime - always 1 when running
	Up = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "escrowd_up",
			Help: "whether the service is up (always 1 when running)",
		},
	)
)

func init() {
	Up.Set(1)
}

// records one finished operation
func ObserveOperation(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	OperationsTotal.WithLabelValues(op, status).Inc()
	OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// sets the ledger gauges from a stats reading
func ObserveLedger(listings, rentals int, escrowed map[string]uint64) {
	ListingsActive.Set(float64(listings))
	RentalsActive.Set(float64(rentals))

	CollateralEscrowed.Reset()
	for asset, amount := range escrowed {
		CollateralEscrowed.WithLabelValues(asset).Set(float64(amount))
	}
}

func SetLeader(leader bool) {
	if leader {
		RaftIsLeader.Set(1)
		return
	}
	RaftIsLeader.Set(0)
}
