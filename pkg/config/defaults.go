package config

import "time"

const (
	DefaultNodeID   = ""
	DefaultRaftAddr = "127.0.0.1:7000"
	DefaultGRPCAddr = ":9000"
	DefaultHTTPAddr = ":8080"
	DefaultDataDir  = "./data"
	DefaultLedgerID = "escrow"

	DefaultKafkaTopic   = "escrowd.events"
	DefaultKafkaGroupID = "escrowd-indexer"

	DefaultIndexDriver = "sqlite"
	DefaultIndexDSN    = "file:escrowd-index.db"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultApplyTimeout    = 5 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultEventBuffer     = 256
)
