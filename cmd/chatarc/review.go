package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wenjun-hu/chat-archive/internal/config"
	"github.com/wenjun-hu/chat-archive/internal/reconcile"
	"github.com/wenjun-hu/chat-archive/internal/scan"
	"github.com/wenjun-hu/chat-archive/internal/tui"
)

func reviewCmd() *cobra.Command {
	var archiveRoot, overlayOut string

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Interactively review topics and build an overlay",
		Long: `Opens a TUI over the archive's topics: retitle, retag, rename, or
mark topics deleted, then save the edit set as an overlay TOML for
'chatarc revise'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if archiveRoot == "" {
				archiveRoot = cfg.ArchiveRoot
			}

			files, err := scan.ScanArchive(archiveRoot)
			if err != nil {
				return fmt.Errorf("scan archive: %w", err)
			}
			if len(files) == 0 {
				return fmt.Errorf("no documents found under %s", archiveRoot)
			}
			blobs, order, err := scan.ReadArchive(files)
			if err != nil {
				return fmt.Errorf("read archive: %w", err)
			}

			docs, failures := reconcile.ParseArchive(blobs, order)
			for _, f := range failures {
				fmt.Fprintf(os.Stderr, "  WARN: %s: %v\n", f.Name, f.Err)
			}

			return tui.Run(docs, overlayOut)
		},
	}

	cmd.Flags().StringVar(&archiveRoot, "archive", "", "Archive root (default: configured root)")
	cmd.Flags().StringVar(&overlayOut, "overlay", "overlay.toml", "Where to save the overlay")

	return cmd
}
