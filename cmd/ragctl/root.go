package main

import (
	"rag-chat-be/internal/bootstrap"
	"rag-chat-be/internal/config"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ragctl",
		Short:         "Admin tasks for the RAG chat backend",
		Long:          "ragctl ingests documents into the vector index, prepares the index, sweeps expired sessions and tails lifecycle events.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cfg := config.Load()

	rootCmd.AddCommand(
		newIngestCmd(cfg),
		newEnsureIndexCmd(cfg),
		newSweepCmd(cfg),
		newEventsCmd(cfg),
	)

	return rootCmd
}

// withContainer builds the full dependency graph for one command run.
func withContainer(cfg *config.Config, fn func(c *bootstrap.Container) error) error {
	container, err := bootstrap.NewContainer(cfg)
	if err != nil {
		return err
	}
	defer container.Close()
	return fn(container)
}
