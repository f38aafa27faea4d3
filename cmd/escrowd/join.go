package main

import (
	"context"
	"fmt"
	"time"

	pb "github.com/pixperk/escrowd/api/v1"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func joinCmd() *cobra.Command {
	var (
		leader   string
		nodeID   string
		raftAddr string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Ask the leader to add a node to the cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			conn, err := grpc.NewClient(leader, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("failed to dial %s: %w", leader, err)
			}
			defer conn.Close()

			client := pb.NewEscrowServiceClient(conn)
			if _, err := client.Join(ctx, &pb.JoinRequest{NodeID: nodeID, Addr: raftAddr}); err != nil {
				return fmt.Errorf("join %s at %s: %w", nodeID, raftAddr, err)
			}

			status, err := client.GetStatus(ctx, &pb.GetStatusRequest{})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s joined, leader is %s (%s)\n", nodeID, status.LeaderID, status.LeaderAddr)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&leader, "leader", "localhost:9000", "gRPC address of the leader")
	flags.StringVar(&nodeID, "node-id", "", "ID of the joining node")
	flags.StringVar(&raftAddr, "raft-addr", "", "Raft address of the joining node")
	flags.DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	cmd.MarkFlagRequired("node-id")
	cmd.MarkFlagRequired("raft-addr")

	return cmd
}
