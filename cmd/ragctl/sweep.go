package main

import (
	"context"

	"rag-chat-be/internal/bootstrap"
	"rag-chat-be/internal/config"
	"rag-chat-be/pkg/rag/session"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// inlineQueue checks each session as soon as the sweeper finds it, so the
// command finishes with the work done instead of queued.
type inlineQueue struct {
	manager *session.Manager
	expired int
}

func (q *inlineQueue) EnqueueSweep(ctx context.Context, sessionID string) error {
	valid, err := q.manager.IsValid(ctx, sessionID)
	if err != nil {
		return err
	}
	if !valid {
		q.expired++
	}
	return nil
}

func newSweepCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete message data left behind by expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(cfg, func(c *bootstrap.Container) error {
				queue := &inlineQueue{manager: c.SessionManager}
				sweeper := session.NewSweeper(c.Store, queue, cfg.Redis.SweepInterval, c.Logger)

				found, err := sweeper.SweepOnce(cmd.Context())
				if err != nil {
					return err
				}
				color.Green("✓ Checked %d sessions, cleaned up %d expired", found, queue.expired)
				return nil
			})
		},
	}
}
