package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/pixperk/escrowd/pkg/config"
	"github.com/pixperk/escrowd/pkg/events"
	"github.com/pixperk/escrowd/pkg/gateway"
	"github.com/pixperk/escrowd/pkg/indexer"
	"github.com/pixperk/escrowd/pkg/logger"
	"github.com/pixperk/escrowd/pkg/raft"
	"github.com/pixperk/escrowd/pkg/server"
	"github.com/pixperk/escrowd/pkg/types"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

type serveFlags struct {
	nodeID    string
	raftAddr  string
	grpcAddr  string
	httpAddr  string
	dataDir   string
	bootstrap bool
	ledgerID  string
	brokers   []string
	index     bool
}

func serveCmd() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a ledger node with its gRPC server and HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(func(cfg *config.Config) {
				flags := cmd.Flags()
				if flags.Changed("node-id") {
					cfg.NodeID = f.nodeID
				}
				if flags.Changed("raft-addr") {
					cfg.RaftAddr = f.raftAddr
				}
				if flags.Changed("grpc-addr") {
					cfg.GRPCAddr = f.grpcAddr
				}
				if flags.Changed("http-addr") {
					cfg.HTTPAddr = f.httpAddr
				}
				if flags.Changed("data-dir") {
					cfg.DataDir = f.dataDir
				}
				if flags.Changed("bootstrap") {
					cfg.Bootstrap = f.bootstrap
				}
				if flags.Changed("ledger-id") {
					cfg.LedgerID = f.ledgerID
				}
				if flags.Changed("kafka-brokers") {
					cfg.KafkaBrokers = f.brokers
				}
			})
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, f.index)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.nodeID, "node-id", "", "Unique node ID (generates a UUID if empty)")
	flags.StringVar(&f.raftAddr, "raft-addr", config.DefaultRaftAddr, "Raft bind address")
	flags.StringVar(&f.grpcAddr, "grpc-addr", config.DefaultGRPCAddr, "gRPC server address")
	flags.StringVar(&f.httpAddr, "http-addr", config.DefaultHTTPAddr, "HTTP gateway address")
	flags.StringVar(&f.dataDir, "data-dir", config.DefaultDataDir, "Data directory for raft storage and the event archive")
	flags.BoolVar(&f.bootstrap, "bootstrap", false, "Bootstrap a new cluster")
	flags.StringVar(&f.ledgerID, "ledger-id", config.DefaultLedgerID, "Identity of the escrow account")
	flags.StringSliceVar(&f.brokers, "kafka-brokers", nil, "Kafka brokers to publish events to")
	flags.BoolVar(&f.index, "index", false, "Project events into the local index from the in-process feed")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, withIndex bool) error {
	log := cfg.Logger()
	cfg.LogConfiguration(log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	hub := events.NewHub(cfg.EventBuffer)
	defer hub.Close()

	archive, err := events.OpenArchive(cfg.DataDir)
	if err != nil {
		return err
	}
	defer archive.Close()

	sinks := events.Multi{archive, hub}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.LedgerID,
			events.WithKafkaLogger(log.With("component", "kafka")),
			events.WithKafkaQueue(cfg.EventBuffer),
		)
		if err != nil {
			return err
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}

	node, err := raft.NewNode(&raft.Config{
		NodeID:       cfg.NodeID,
		BindAddr:     cfg.RaftAddr,
		DataDir:      cfg.DataDir,
		Bootstrap:    cfg.Bootstrap,
		LedgerID:     types.Identity(cfg.LedgerID),
		ApplyTimeout: cfg.ApplyTimeout,
		Sink:         sinks,
		Logger:       log.Logger,
		HCLog:        raftLogger(cfg),
	})
	if err != nil {
		return fmt.Errorf("failed to create raft node: %w", err)
	}
	defer func() {
		if err := node.Shutdown(); err != nil {
			log.Error("raft shutdown failed", "error", err)
		}
	}()
	log.Info("raft node initialized", "raft_addr", cfg.RaftAddr, "bootstrap", cfg.Bootstrap)

	if withIndex {
		stopIndex, err := followIndex(ctx, cfg, hub, log)
		if err != nil {
			return err
		}
		defer stopIndex()
	}

	grpcServer := grpc.NewServer()
	server.NewServer(node, types.Identity(cfg.LedgerID),
		server.WithHub(hub),
		server.WithArchive(archive),
		server.WithLogger(log.With("component", "grpc")),
	).Register(grpcServer)

	listener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(listener); err != nil {
			errCh <- fmt.Errorf("gRPC server failed: %w", err)
		}
	}()

	gw := gateway.NewServer(cfg.HTTPAddr, dialAddr(cfg.GRPCAddr), log.With("component", "gateway"))
	go func() {
		log.Info("HTTP gateway listening", "addr", cfg.HTTPAddr)
		if err := gw.Start(ctx); err != nil {
			errCh <- err
		}
	}()

	log.Info("escrowd is ready")

	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully")
	case err = <-errCh:
		log.Error("server stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	//streams never finish on their own, the hub close ends them
	hub.Close()
	if serr := gw.Stop(shutdownCtx); serr != nil && !errors.Is(serr, context.Canceled) {
		log.Error("gateway shutdown failed", "error", serr)
	}
	stopGRPC(shutdownCtx, grpcServer)

	log.Info("shutdown complete")
	return err
}

// projects the local event feed into the configured index
func followIndex(ctx context.Context, cfg *config.Config, hub *events.Hub, log *logger.Logger) (func(), error) {
	db, err := indexer.Open(ctx, cfg.IndexDriver, cfg.IndexDSN)
	if err != nil {
		return nil, err
	}
	projector := indexer.NewProjector(db, cfg.IndexDriver, log.With("component", "indexer"))

	feed, unsubscribe := hub.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := indexer.Follow(ctx, feed, projector); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("index feed stopped", "error", err)
		}
	}()

	return func() {
		unsubscribe()
		<-done
		db.Close()
	}, nil
}

func stopGRPC(ctx context.Context, g *grpc.Server) {
	stopped := make(chan struct{})
	go func() {
		g.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		g.Stop()
	}
}

func raftLogger(cfg *config.Config) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "raft",
		Level:      hclog.LevelFromString(cfg.LogLevel),
		JSONFormat: strings.EqualFold(cfg.LogFormat, logger.JSON),
		Output:     os.Stderr,
	})
}

// ":9000" listens everywhere but must be dialed on a host
func dialAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func newNodeID() string {
	return uuid.NewString()
}
