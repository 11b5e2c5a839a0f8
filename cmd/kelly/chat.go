package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abdhe/kelly-poet/pkg/metrics"
	"github.com/abdhe/kelly-poet/pkg/terminal"
)

func newChatCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, *configFile)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.chat.Start(ctx)
			if err != nil {
				return err
			}
			metrics.SessionsCreated.WithLabelValues("terminal").Inc()

			console := terminal.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout())
			defer console.Close()
			err = terminal.NewREPL(a.chat, id, console, console, a.log).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
