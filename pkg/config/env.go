package config

const (
	EnvNodeID    = "ESCROWD_NODE_ID"
	EnvRaftAddr  = "ESCROWD_RAFT_ADDR"
	EnvGRPCAddr  = "ESCROWD_GRPC_ADDR"
	EnvHTTPAddr  = "ESCROWD_HTTP_ADDR"
	EnvDataDir   = "ESCROWD_DATA_DIR"
	EnvBootstrap = "ESCROWD_BOOTSTRAP"
	EnvLedgerID  = "ESCROWD_LEDGER_ID"

	EnvKafkaBrokers = "ESCROWD_KAFKA_BROKERS"
	EnvKafkaTopic   = "ESCROWD_KAFKA_TOPIC"
	EnvKafkaGroupID = "ESCROWD_KAFKA_GROUP_ID"

	EnvIndexDriver = "ESCROWD_INDEX_DRIVER"
	EnvIndexDSN    = "ESCROWD_INDEX_DSN"

	EnvLogLevel  = "ESCROWD_LOG_LEVEL"
	EnvLogFormat = "ESCROWD_LOG_FORMAT"

	EnvApplyTimeout    = "ESCROWD_APPLY_TIMEOUT"
	EnvShutdownTimeout = "ESCROWD_SHUTDOWN_TIMEOUT"
	EnvEventBuffer     = "ESCROWD_EVENT_BUFFER"
)
