package main

import (
	"fmt"
	"os"

	"github.com/pixperk/escrowd/pkg/config"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "escrowd",
		Short: "A replicated rental escrow ledger",
		Long: `escrowd runs a raft replicated ledger where lenders list assets for rent,
borrowers rent them against collateral, and every committed change is
published as an event.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd(), indexCmd(), joinCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// environment first, flags win when set
func loadConfig(apply func(cfg *config.Config)) (*config.Config, error) {
	cfg := config.Load()
	apply(cfg)
	if cfg.NodeID == "" {
		cfg.NodeID = newNodeID()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
