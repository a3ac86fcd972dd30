package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ingestd/internal/bridge"
	"ingestd/internal/gate"
)

func newListenCmd(opts *rootOptions) *cobra.Command {
	var (
		server  string
		outcome string
	)
	cmd := &cobra.Command{
		Use:     "listen",
		Short:   "Attach as the listener and resolve every delivery",
		Example: "  ingestd listen --outcome failure",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := gate.ParseOutcome(outcome)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			out := cmd.OutOrStdout()
			h := func(_ context.Context, d gate.Delivery) gate.Outcome {
				fmt.Fprintf(out, "%s\t%s\n", d.ID, d.Payload)
				return o
			}
			return bridge.Listen(ctx, listenURL(server), h, bridge.WithClientLogger(opts.log))
		},
	}
	cmd.Flags().StringVar(&server, "server", envStr("INGESTD_URL", defaultServer), "Base URL of the ingestd server (defaults INGESTD_URL)")
	cmd.Flags().StringVar(&outcome, "outcome", "success", "Outcome reported for every delivery: success|failure")
	return cmd
}

// listenURL turns an HTTP base URL into the listener WebSocket URL.
func listenURL(server string) string {
	u := strings.TrimRight(server, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/listen"
}
