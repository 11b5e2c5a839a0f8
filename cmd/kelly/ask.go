package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/abdhe/kelly-poet/pkg/server"
)

func newAskCmd() *cobra.Command {
	var (
		addr      string
		sessionID string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a running kelly server one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			conn, err := grpc.DialContext(ctx, addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("dial %s: %w", addr, err)
			}
			defer conn.Close()

			client := server.NewClient(conn)
			if sessionID == "" {
				if sessionID, err = client.NewSession(ctx); err != nil {
					return err
				}
			}

			reply, err := client.Ask(ctx, sessionID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Kelly's Poetic Response:\n%s\n\nsession: %s\n", reply, sessionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "server", "localhost:50051", "address of a running kelly serve")
	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline")
	return cmd
}
