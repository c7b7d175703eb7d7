package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wenjun-hu/chat-archive/internal/config"
	"github.com/wenjun-hu/chat-archive/internal/export"
	"github.com/wenjun-hu/chat-archive/internal/reconcile"
	"github.com/wenjun-hu/chat-archive/internal/scan"
)

func reviseCmd() *cobra.Command {
	var overlayPath, archiveRoot, outDir string

	cmd := &cobra.Command{
		Use:   "revise",
		Short: "Apply a reviewer overlay and write a revised archive generation",
		Long: `Re-parse the archived Markdown documents, apply the overlay's edits,
and write revised documents, a regenerated topic index, and an audit
sidecar under <archive>/revised. The input archive is never modified.
With no overlay (or an empty one) the revised documents are
byte-identical and no sidecar is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if archiveRoot == "" {
				archiveRoot = cfg.ArchiveRoot
			}
			if outDir == "" {
				outDir = filepath.Join(archiveRoot, "revised")
			}

			var ov reconcile.Overlay
			if overlayPath != "" {
				data, err := os.ReadFile(overlayPath)
				if err != nil {
					return fmt.Errorf("read overlay: %w", err)
				}
				ov, err = reconcile.LoadOverlay(data)
				if err != nil {
					return err
				}
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
			if len(docs) == 0 {
				return fmt.Errorf("no parseable documents under %s", archiveRoot)
			}

			rec := &reconcile.Reconciler{}
			res, err := rec.Apply(docs, ov)
			if err != nil {
				return err
			}

			w := export.DirWriter{Root: outDir}
			for _, d := range res.Docs {
				if err := w.WriteBlob(d.Name, d.Data); err != nil {
					return fmt.Errorf("write %s: %w", d.Name, err)
				}
			}
			for name, data := range res.Index {
				if err := w.WriteBlob(name, data); err != nil {
					return fmt.Errorf("write %s: %w", name, err)
				}
			}
			if len(res.Sidecar) > 0 {
				if err := w.WriteBlob(reconcile.SidecarName, reconcile.EncodeSidecar(res.Sidecar)); err != nil {
					return fmt.Errorf("write sidecar: %w", err)
				}
			}

			fmt.Fprintf(os.Stderr, "Done. docs=%d index_tables=%d sidecar_entries=%d failures=%d\n",
				len(res.Docs), len(res.Index), len(res.Sidecar), len(failures))
			return nil
		},
	}

	cmd.Flags().StringVar(&overlayPath, "overlay", "", "Overlay TOML file (empty = pass-through)")
	cmd.Flags().StringVar(&archiveRoot, "archive", "", "Archive root (default: configured root)")
	cmd.Flags().StringVar(&outDir, "out", "", "Output directory (default: <archive>/revised)")

	return cmd
}
