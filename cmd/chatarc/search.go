package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wenjun-hu/chat-archive/internal/catalog"
	"github.com/wenjun-hu/chat-archive/internal/config"
	"github.com/wenjun-hu/chat-archive/internal/search"
)

const (
	sColorReset   = "\033[0m"
	sColorBoldRed = "\033[1;31m"
	sColorBlue    = "\033[1;34m"
	sColorGreen   = "\033[1;32m"
	sColorDim     = "\033[2m"
)

func colorizeRole(role string) string {
	switch role {
	case "user":
		return sColorBlue + role + sColorReset
	case "assistant":
		return sColorGreen + role + sColorReset
	default:
		return role
	}
}

func colorizeSnippet(snippet string) string {
	snippet = strings.ReplaceAll(snippet, ">>>", sColorBoldRed)
	snippet = strings.ReplaceAll(snippet, "<<<", sColorReset)
	return snippet
}

func plainSnippet(snippet string) string {
	snippet = strings.ReplaceAll(snippet, ">>>", "")
	snippet = strings.ReplaceAll(snippet, "<<<", "")
	return snippet
}

func searchCmd() *cobra.Command {
	var conv, role string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across the cataloged archive",
		Long: `Search cataloged documents using FTS5 (CJK queries fall back to
substring matching). Output is TSV for fzf integration:
  docName, seq, window, conv, role, anchor, snippet

Recommended shell function (add to .zshrc):
  caf() {
    chatarc search "$*" | fzf \
      --ansi \
      --delimiter='\t' --with-nth=3.. \
      --preview 'chatarc preview {1} --hit {2} --query {q}' \
      --preview-window=right:60%:wrap \
      --bind 'enter:execute(chatarc open {1} --anchor {6})'
  }`,
		Args: cobra.ExactArgs(1),
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

			// Auto-update catalog before searching
			catalog.IndexArchive(db, cfg.ArchiveRoot)

			results, err := search.Search(db, search.Options{
				Query: args[0],
				Conv:  conv,
				Role:  role,
				Limit: limit,
			})
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Fprintln(os.Stderr, "No results found.")
				return nil
			}

			color := term.IsTerminal(int(os.Stdout.Fd()))
			for _, r := range results {
				snippet := strings.ReplaceAll(r.Snippet, "\t", " ")
				snippet = strings.ReplaceAll(snippet, "\n", " ")
				roleOut := r.Role
				windowOut := r.Window
				if color {
					snippet = colorizeSnippet(snippet)
					roleOut = colorizeRole(r.Role)
					windowOut = sColorDim + r.Window + sColorReset
				} else {
					snippet = plainSnippet(snippet)
				}
				// first two fields (docName, seq) stay plain for fzf {1} {2}
				fmt.Printf("%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
					r.DocName,
					r.Seq,
					windowOut,
					r.Conv,
					roleOut,
					r.Anchor,
					snippet,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&conv, "conv", "", "Filter by conversation id")
	cmd.Flags().StringVar(&role, "role", "", "Filter by role (user/assistant)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Max results")

	return cmd
}
