package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pixperk/escrowd/pkg/logger"
)

type Config struct {
	NodeID    string
	RaftAddr  string
	GRPCAddr  string
	HTTPAddr  string
	DataDir   string
	Bootstrap bool
	LedgerID  string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	IndexDriver string
	IndexDSN    string

	LogLevel  string
	LogFormat string

	ApplyTimeout    time.Duration
	ShutdownTimeout time.Duration
	EventBuffer     int
}

// reads the environment, anything unset falls back to its default
func Load() *Config {
	return &Config{
		NodeID:    getEnvStr(EnvNodeID, DefaultNodeID),
		RaftAddr:  getEnvStr(EnvRaftAddr, DefaultRaftAddr),
		GRPCAddr:  getEnvStr(EnvGRPCAddr, DefaultGRPCAddr),
		HTTPAddr:  getEnvStr(EnvHTTPAddr, DefaultHTTPAddr),
		DataDir:   getEnvStr(EnvDataDir, DefaultDataDir),
		Bootstrap: getEnvBool(EnvBootstrap, false),
		LedgerID:  getEnvStr(EnvLedgerID, DefaultLedgerID),

		KafkaBrokers: getEnvList(EnvKafkaBrokers),
		KafkaTopic:   getEnvStr(EnvKafkaTopic, DefaultKafkaTopic),
		KafkaGroupID: getEnvStr(EnvKafkaGroupID, DefaultKafkaGroupID),

		IndexDriver: getEnvStr(EnvIndexDriver, DefaultIndexDriver),
		IndexDSN:    getEnvStr(EnvIndexDSN, DefaultIndexDSN),

		LogLevel:  getEnvStr(EnvLogLevel, DefaultLogLevel),
		LogFormat: getEnvStr(EnvLogFormat, DefaultLogFormat),

		ApplyTimeout:    getEnvDuration(EnvApplyTimeout, DefaultApplyTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),
		EventBuffer:     getEnvNum(EnvEventBuffer, DefaultEventBuffer),
	}
}

var identityRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// reports every problem at once
func (cfg *Config) Validate() error {
	var errors []string

	if !identityRegex.MatchString(cfg.NodeID) {
		errors = append(errors, fmt.Sprintf("NodeID must be alphanumeric with . _ or -, got: %q", cfg.NodeID))
	}
	if !identityRegex.MatchString(cfg.LedgerID) {
		errors = append(errors, fmt.Sprintf("LedgerID must be alphanumeric with . _ or -, got: %q", cfg.LedgerID))
	}

	for name, addr := range map[string]string{"RaftAddr": cfg.RaftAddr, "GRPCAddr": cfg.GRPCAddr, "HTTPAddr": cfg.HTTPAddr} {
		if err := validateAddr(addr); err != nil {
			errors = append(errors, fmt.Sprintf("%s %v", name, err))
		}
	}
	if host, _, err := net.SplitHostPort(cfg.RaftAddr); err == nil && host == "" {
		errors = append(errors, fmt.Sprintf("RaftAddr needs an explicit host for peers to dial, got: %s", cfg.RaftAddr))
	}

	if cfg.DataDir == "" {
		errors = append(errors, "DataDir cannot be empty")
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		errors = append(errors, "KafkaTopic cannot be empty when KafkaBrokers are set")
	}

	switch cfg.IndexDriver {
	case "sqlite", "postgres":
	default:
		errors = append(errors, fmt.Sprintf("IndexDriver must be sqlite or postgres, got: %s", cfg.IndexDriver))
	}

	switch strings.ToLower(cfg.LogLevel) {
	case logger.DEBUG, logger.INFO, logger.WARN, logger.ERROR:
	default:
		errors = append(errors, fmt.Sprintf("LogLevel must be debug, info, warn or error, got: %s", cfg.LogLevel))
	}
	switch strings.ToLower(cfg.LogFormat) {
	case logger.JSON, logger.TEXT:
	default:
		errors = append(errors, fmt.Sprintf("LogFormat must be json or text, got: %s", cfg.LogFormat))
	}

	if cfg.ApplyTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ApplyTimeout must be positive, got: %s", cfg.ApplyTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}
	if cfg.EventBuffer <= 0 {
		errors = append(errors, fmt.Sprintf("EventBuffer must be positive, got: %d", cfg.EventBuffer))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func validateAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("must be host:port, got: %s", addr)
	}
	if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got: %s", port)
	}
	return nil
}

func (cfg *Config) Logger() *logger.Logger {
	return logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		NodeID: cfg.NodeID,
	})
}

func (cfg *Config) LogConfiguration(log *logger.Logger) {
	log.Info("Configuration loaded successfully",
		"node_id", cfg.NodeID,
		"raft_addr", cfg.RaftAddr,
		"grpc_addr", cfg.GRPCAddr,
		"http_addr", cfg.HTTPAddr,
		"data_dir", cfg.DataDir,
		"bootstrap", cfg.Bootstrap,
		"ledger_id", cfg.LedgerID,
		"kafka_brokers", cfg.KafkaBrokers,
		"kafka_topic", cfg.KafkaTopic,
		"index_driver", cfg.IndexDriver,
		"index_dsn", redactDSN(cfg.IndexDSN),
		"log_level", cfg.LogLevel,
		"apply_timeout", cfg.ApplyTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"event_buffer", cfg.EventBuffer,
	)
}

func redactDSN(dsn string) string {
	credentialRegex := regexp.MustCompile(`(postgres(ql)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(dsn, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// comma separated, blanks dropped
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
