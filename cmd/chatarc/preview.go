package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wenjun-hu/chat-archive/internal/catalog"
	"github.com/wenjun-hu/chat-archive/internal/config"
	"github.com/wenjun-hu/chat-archive/internal/render"
)

func previewCmd() *cobra.Command {
	var hitSeq int
	var query string
	var width int

	cmd := &cobra.Command{
		Use:   "preview <docName>",
		Short: "Preview a cataloged document with the hit highlighted",
		Args:  cobra.ExactArgs(1),
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

			out, _, err := render.RenderDoc(db, args[0], render.Options{
				HitSeq: hitSeq,
				Query:  query,
				Width:  width,
			})
			if err != nil {
				return err
			}

			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().IntVar(&hitSeq, "hit", -1, "Message sequence to highlight")
	cmd.Flags().StringVar(&query, "query", "", "Search query for keyword highlighting")
	cmd.Flags().IntVar(&width, "width", 0, "Wrap width (0 = no wrap)")

	return cmd
}
