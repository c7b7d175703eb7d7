package main

import (
	"github.com/spf13/cobra"

	"github.com/wenjun-hu/chat-archive/internal/config"
	"github.com/wenjun-hu/chat-archive/internal/open"
)

func openCmd() *cobra.Command {
	var anchor string

	cmd := &cobra.Command{
		Use:   "open <docName>",
		Short: "Open an archive document in $EDITOR at an anchor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			return open.OpenDoc(cfg.ArchiveRoot, args[0], anchor)
		},
	}

	cmd.Flags().StringVar(&anchor, "anchor", "", "Anchor token to jump to (e.g. msg-000003)")

	return cmd
}
