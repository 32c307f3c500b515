package main

import (
	"fmt"

	"rag-chat-be/internal/bootstrap"
	"rag-chat-be/internal/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newIngestCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Load, split, embed and index one or more files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cfg, func(c *bootstrap.Container) error {
				failed := 0
				for _, path := range args {
					res, err := c.IngestionService.IngestFile(cmd.Context(), path)
					if err != nil {
						color.Red("✗ %s: %v", path, err)
						failed++
						continue
					}
					color.Green("✓ %s", res.Message)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d files failed", failed, len(args))
				}
				return nil
			})
		},
	}
}

func newEnsureIndexCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-index",
		Short: "Create the vector index if it does not exist and wait until it is ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(cfg, func(c *bootstrap.Container) error {
				created, err := c.Pipeline.EnsureIndex(cmd.Context())
				if err != nil {
					return err
				}
				if created {
					color.Green("✓ Created vector index %s", cfg.Rag.IndexName)
				} else {
					color.Cyan("Vector index %s already exists", cfg.Rag.IndexName)
				}
				return nil
			})
		},
	}
}
