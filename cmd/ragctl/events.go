package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"rag-chat-be/internal/config"
	"rag-chat-be/pkg/events"
	pktNats "rag-chat-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newEventsCmd(cfg *config.Config) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail session and ingestion events from NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.App.NatsURL == "" {
				return errors.New("NATS_URL is not set")
			}

			sub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
			if err != nil {
				return err
			}
			defer sub.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = sub.Subscribe(ctx, filter, "", func(_ context.Context, e events.Event) error {
				payload, err := json.Marshal(e.Payload())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n",
					e.Timestamp().Format("15:04:05"),
					color.CyanString("%-18s", e.EventType()),
					payload,
				)
				return nil
			})
			if err != nil {
				return err
			}

			color.Yellow("Listening on %s (Ctrl+C to stop)", filter)
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", pktNats.SubjectPrefix+">", "subject filter")
	return cmd
}
