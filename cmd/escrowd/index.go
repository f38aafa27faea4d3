package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pixperk/escrowd/pkg/config"
	"github.com/pixperk/escrowd/pkg/indexer"
	"github.com/spf13/cobra"
)

func indexCmd() *cobra.Command {
	var (
		brokers []string
		topic   string
		groupID string
		driver  string
		dsn     string
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Project the Kafka event topic into a SQL index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(func(cfg *config.Config) {
				flags := cmd.Flags()
				if flags.Changed("kafka-brokers") {
					cfg.KafkaBrokers = brokers
				}
				if flags.Changed("kafka-topic") {
					cfg.KafkaTopic = topic
				}
				if flags.Changed("group-id") {
					cfg.KafkaGroupID = groupID
				}
				if flags.Changed("driver") {
					cfg.IndexDriver = driver
				}
				if flags.Changed("dsn") {
					cfg.IndexDSN = dsn
				}
			})
			if err != nil {
				return err
			}
			if len(cfg.KafkaBrokers) == 0 {
				return fmt.Errorf("index needs kafka brokers, set --kafka-brokers or %s", config.EnvKafkaBrokers)
			}
			return runIndex(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&brokers, "kafka-brokers", nil, "Kafka brokers to consume from")
	flags.StringVar(&topic, "kafka-topic", config.DefaultKafkaTopic, "Event topic")
	flags.StringVar(&groupID, "group-id", config.DefaultKafkaGroupID, "Consumer group")
	flags.StringVar(&driver, "driver", config.DefaultIndexDriver, "Index database driver (sqlite or postgres)")
	flags.StringVar(&dsn, "dsn", config.DefaultIndexDSN, "Index database DSN")

	return cmd
}

func runIndex(ctx context.Context, cfg *config.Config) error {
	log := cfg.Logger()
	cfg.LogConfiguration(log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := indexer.Open(ctx, cfg.IndexDriver, cfg.IndexDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	projector := indexer.NewProjector(db, cfg.IndexDriver, log.With("component", "indexer"))
	if seq, err := projector.LastSeq(ctx); err == nil {
		log.Info("index opened", "driver", cfg.IndexDriver, "last_seq", seq)
	}

	consumer, err := indexer.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, projector, log.With("component", "kafka"))
	if err != nil {
		return err
	}
	defer consumer.Close()

	log.Info("indexer consuming", "topic", cfg.KafkaTopic, "group_id", cfg.KafkaGroupID)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("indexer stopped")
	return nil
}
