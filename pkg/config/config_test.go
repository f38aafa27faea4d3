package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, DefaultNodeID, cfg.NodeID)
	assert.Equal(t, DefaultLedgerID, cfg.LedgerID)
	assert.False(t, cfg.Bootstrap)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, DefaultApplyTimeout, cfg.ApplyTimeout)

	//the node id has no default, serve generates one
	require.Error(t, cfg.Validate())
	cfg.NodeID = "node1"
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(EnvNodeID, "node2")
	t.Setenv(EnvRaftAddr, "10.0.0.2:7000")
	t.Setenv(EnvBootstrap, "true")
	t.Setenv(EnvKafkaBrokers, "kafka-1:9092, kafka-2:9092,")
	t.Setenv(EnvIndexDriver, "postgres")
	t.Setenv(EnvApplyTimeout, "750ms")
	t.Setenv(EnvEventBuffer, "not-a-number")

	cfg := Load()

	assert.Equal(t, "node2", cfg.NodeID)
	assert.Equal(t, "10.0.0.2:7000", cfg.RaftAddr)
	assert.True(t, cfg.Bootstrap)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "postgres", cfg.IndexDriver)
	assert.Equal(t, 750*time.Millisecond, cfg.ApplyTimeout)
	assert.Equal(t, DefaultEventBuffer, cfg.EventBuffer)
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Load()
	cfg.NodeID = ""
	cfg.RaftAddr = ":7000"
	cfg.GRPCAddr = "nonsense"
	cfg.IndexDriver = "mysql"
	cfg.LogLevel = "loud"
	cfg.ApplyTimeout = 0

	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "NodeID")
	assert.Contains(t, msg, "RaftAddr needs an explicit host")
	assert.Contains(t, msg, "GRPCAddr must be host:port")
	assert.Contains(t, msg, "IndexDriver")
	assert.Contains(t, msg, "LogLevel")
	assert.Contains(t, msg, "ApplyTimeout")
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "postgres://***:***@db:5432/escrow", redactDSN("postgres://user:secret@db:5432/escrow"))
	assert.Equal(t, "file:index.db", redactDSN("file:index.db"))
}
