package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wenjun-hu/chat-archive/internal/catalog"
	"github.com/wenjun-hu/chat-archive/internal/config"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cataloged archive documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			db, err := catalog.OpenDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			catalog.IndexArchive(db, cfg.ArchiveRoot)

			docs, err := db.ListDocs()
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Println("No documents cataloged. Run 'chatarc export' then 'chatarc catalog'.")
				return nil
			}

			fmt.Printf("%-24s %-16s %6s %6s  %s\n", "CONV", "WINDOW", "TOPICS", "MSGS", "DOC")
			for _, d := range docs {
				fmt.Printf("%-24s %-16s %6d %6d  %s\n",
					d.Conv, d.Window, d.TopicCount, d.MessageCount, d.Name)
			}
			return nil
		},
	}
}
