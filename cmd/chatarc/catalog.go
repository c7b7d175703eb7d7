package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wenjun-hu/chat-archive/internal/catalog"
	"github.com/wenjun-hu/chat-archive/internal/config"
)

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Scan the archive and update the search catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			db, err := catalog.OpenDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			fmt.Fprintf(os.Stderr, "Scanning %s...\n", cfg.ArchiveRoot)

			stats, err := catalog.IndexArchive(db, cfg.ArchiveRoot)
			if err != nil {
				return fmt.Errorf("catalog: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Done. %s\n", stats)
			return nil
		},
	}
}
