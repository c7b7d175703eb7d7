package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wenjun-hu/chat-archive/internal/anchor"
	"github.com/wenjun-hu/chat-archive/internal/config"
	"github.com/wenjun-hu/chat-archive/internal/export"
	"github.com/wenjun-hu/chat-archive/internal/parse"
	"github.com/wenjun-hu/chat-archive/internal/segment"
	"github.com/wenjun-hu/chat-archive/internal/window"
)

func exportCmd() *cobra.Command {
	var out, grouping, anchorStyle, anchorTemplate, conv string
	var ranges []string
	var noFrontmatter, noTopicIndex, noSegmentation bool

	cmd := &cobra.Command{
		Use:   "export <export.json>",
		Short: "Export a conversation dump into windowed Markdown documents",
		Long: `Parse an exported conversation JSON file, partition each conversation
into time windows, segment windows into topics, and write anchored
Markdown documents plus a per-conversation topic index table.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if out == "" {
				out = cfg.ArchiveRoot
			}
			if grouping == "" {
				grouping = cfg.Grouping
			}
			if anchorStyle == "" {
				anchorStyle = cfg.AnchorStyle
			}
			if anchorTemplate == "" {
				anchorTemplate = cfg.AnchorTemplate
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			convs, err := parse.Load(data)
			if err != nil {
				return fmt.Errorf("parse input: %w", err)
			}
			if conv != "" {
				convs = filterConvs(convs, conv)
				if len(convs) == 0 {
					return fmt.Errorf("no conversation matches %q", conv)
				}
			}

			grp, err := export.ParseGrouping(grouping)
			if err != nil {
				return err
			}
			style, err := anchor.ParseStyle(anchorStyle)
			if err != nil {
				return err
			}

			pol := window.ByDay()
			if len(ranges) > 0 {
				rs, err := parseRanges(ranges)
				if err != nil {
					return err
				}
				pol = window.ByRanges(rs)
			}

			exp, err := export.New(export.Config{
				Grouping:        grp,
				AnchorStyle:     style,
				AnchorTemplate:  anchorTemplate,
				EmitFrontmatter: cfg.EmitFrontmatter && !noFrontmatter,
				EmitTopicIndex:  cfg.EmitTopicIndex && !noTopicIndex,
			})
			if err != nil {
				return err
			}

			seg := &segment.Segmenter{
				Detector: segment.MultiDetector{
					segment.GapDetector{Gap: time.Duration(cfg.GapHours) * time.Hour},
					segment.TriggerDetector{Phrases: cfg.Triggers},
				},
				Titler: segment.HeadlineTitler{},
			}
			segmenting := cfg.Segmentation && !noSegmentation

			w := export.DirWriter{Root: out}
			var total export.Stats

			fmt.Fprintf(os.Stderr, "Exporting %d conversations to %s...\n", len(convs), out)
			for _, c := range convs {
				wins, err := window.Partition(c, pol)
				if err != nil {
					return fmt.Errorf("%s: %w", c.ID, err)
				}

				wts := make([]export.WindowTopics, len(wins))
				for i, win := range wins {
					wts[i] = export.WindowTopics{Window: win}
					if segmenting {
						wts[i].Topics = seg.Split(win)
					}
				}

				stats, err := exp.ExportConversation(c, wts, w)
				if err != nil {
					return fmt.Errorf("%s: %w", c.ID, err)
				}
				total.Docs += stats.Docs
				total.Topics += stats.Topics
				total.Messages += stats.Messages
				total.Rows += stats.Rows
			}

			fmt.Fprintf(os.Stderr, "Done. %s\n", total)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output directory (default: archive root)")
	cmd.Flags().StringVar(&grouping, "grouping", "", "Grouping: day, window, or merge")
	cmd.Flags().StringVar(&anchorStyle, "anchor-style", "", "Anchor style: classic, custom, or both")
	cmd.Flags().StringVar(&anchorTemplate, "anchor-template", "", "Custom anchor template")
	cmd.Flags().StringVar(&conv, "conv", "", "Export only the named conversation")
	cmd.Flags().StringArrayVar(&ranges, "range", nil, "Date range YYYY-MM-DD[..YYYY-MM-DD], repeatable")
	cmd.Flags().BoolVar(&noFrontmatter, "no-frontmatter", false, "Skip YAML frontmatter")
	cmd.Flags().BoolVar(&noTopicIndex, "no-topic-index", false, "Skip the topic index table")
	cmd.Flags().BoolVar(&noSegmentation, "no-segmentation", false, "Skip topic segmentation")

	return cmd
}

func filterConvs(convs []parse.Conversation, id string) []parse.Conversation {
	var out []parse.Conversation
	for _, c := range convs {
		if c.ID == id {
			out = append(out, c)
		}
	}
	return out
}

const dayLayout = "2006-01-02"

// parseRanges turns "2026-03-01..2026-03-05" or "2026-03-01" strings into
// window ranges. Validation beyond date syntax is the windowing layer's job.
func parseRanges(specs []string) ([]window.Range, error) {
	var out []window.Range
	for _, s := range specs {
		startStr, endStr := s, s
		if i := strings.Index(s, ".."); i >= 0 {
			startStr, endStr = s[:i], s[i+2:]
		}
		start, err := time.Parse(dayLayout, startStr)
		if err != nil {
			return nil, fmt.Errorf("bad range %q: %w", s, err)
		}
		end, err := time.Parse(dayLayout, endStr)
		if err != nil {
			return nil, fmt.Errorf("bad range %q: %w", s, err)
		}
		out = append(out, window.Range{Start: start, End: end})
	}
	return out, nil
}
