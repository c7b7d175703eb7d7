// Package export renders windows and topics into Markdown documents and
// the topic index table. It reads the pipeline's values and writes named
// blobs; it never mutates its inputs.
package export

import (
	"fmt"
	"path"
	"strings"

	"github.com/wenjun-hu/chat-archive/internal/anchor"
	"github.com/wenjun-hu/chat-archive/internal/parse"
	"github.com/wenjun-hu/chat-archive/internal/segment"
	"github.com/wenjun-hu/chat-archive/internal/window"
)

type Grouping string

const (
	GroupWindow Grouping = "window"
	GroupDay    Grouping = "day"
	GroupMerge  Grouping = "merge"
)

func ParseGrouping(s string) (Grouping, error) {
	switch Grouping(s) {
	case "", GroupWindow:
		return GroupWindow, nil
	case GroupDay, GroupMerge:
		return Grouping(s), nil
	default:
		return "", fmt.Errorf("unknown grouping: %q", s)
	}
}

type Config struct {
	Grouping        Grouping
	AnchorStyle     anchor.Style
	AnchorTemplate  string
	EmitFrontmatter bool
	EmitTopicIndex  bool
}

// WindowTopics pairs a window with its topics. A nil Topics slice means
// segmentation was disabled: the window renders unlabeled and contributes
// no index rows.
type WindowTopics struct {
	Window window.Window
	Topics []segment.Topic
}

type Stats struct {
	Docs     int
	Topics   int
	Messages int
	Rows     int
}

func (s Stats) String() string {
	return fmt.Sprintf("docs=%d topics=%d messages=%d index_rows=%d",
		s.Docs, s.Topics, s.Messages, s.Rows)
}

type Exporter struct {
	cfg    Config
	gen    *anchor.Generator
	titler segment.Titler
}

// New builds an exporter for one run. The anchor generator lives as long
// as the exporter, so all conversations exported through it share one
// global counter.
func New(cfg Config) (*Exporter, error) {
	gen, err := anchor.NewGenerator(cfg.AnchorStyle, cfg.AnchorTemplate)
	if err != nil {
		return nil, err
	}
	return &Exporter{
		cfg:    cfg,
		gen:    gen,
		titler: segment.HeadlineTitler{},
	}, nil
}

// ExportConversation renders one conversation's windows through w.
// The merge grouping is a distinct flat path: it ignores topics, the
// topic index, and the frontmatter block entirely.
func (e *Exporter) ExportConversation(conv parse.Conversation, wins []WindowTopics, w Writer) (Stats, error) {
	var stats Stats

	if e.cfg.Grouping == GroupMerge {
		data := e.renderMerged(conv)
		if err := w.WriteBlob(conv.ID+".md", data); err != nil {
			return stats, fmt.Errorf("write %s.md: %w", conv.ID, err)
		}
		stats.Docs = 1
		stats.Messages = len(conv.Messages)
		return stats, nil
	}

	var rows []IndexRow
	for _, wt := range wins {
		data, winRows := e.renderWindow(wt)
		name := e.docName(conv.ID, wt.Window.Key)
		if err := w.WriteBlob(name, data); err != nil {
			return stats, fmt.Errorf("write %s: %w", name, err)
		}
		rows = append(rows, winRows...)
		stats.Docs++
		stats.Topics += len(wt.Topics)
		stats.Messages += len(wt.Window.Messages)
	}

	if e.cfg.EmitTopicIndex && len(rows) > 0 {
		data, err := EncodeTopicIndex(rows)
		if err != nil {
			return stats, fmt.Errorf("topic index: %w", err)
		}
		if err := w.WriteBlob(TopicIndexName(conv.ID), data); err != nil {
			return stats, fmt.Errorf("write topic index: %w", err)
		}
		stats.Rows = len(rows)
	}
	return stats, nil
}

func (e *Exporter) docName(conv, key string) string {
	dir := "by_window"
	if e.cfg.Grouping == GroupDay {
		dir = "by_day"
	}
	return path.Join(dir, conv, key+".md")
}

func (e *Exporter) renderWindow(wt WindowTopics) ([]byte, []IndexRow) {
	w := wt.Window
	var b strings.Builder

	if e.cfg.EmitFrontmatter {
		b.Write(e.frontmatter(wt))
		b.WriteByte('\n')
	}

	lines, anchors := e.messageLines(w)

	if wt.Topics == nil {
		for _, ln := range lines {
			b.WriteString(ln)
			b.WriteByte('\n')
		}
		return []byte(b.String()), nil
	}

	var rows []IndexRow
	for i, t := range wt.Topics {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(TopicHeader(t.Title, t.IndexID))
		b.WriteByte('\n')
		if len(t.Tags) > 0 {
			b.WriteString(TagsLine(t.Tags))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
		for _, ln := range lines[t.Lo:t.Hi] {
			b.WriteString(ln)
			b.WriteByte('\n')
		}
		rows = append(rows, IndexRow{
			Conv:    w.Conv,
			Window:  w.Key,
			IndexID: t.IndexID,
			Title:   t.Title,
			Tags:    t.Tags,
			Anchor:  firstAnchor(anchors[t.Lo]),
		})
	}
	return []byte(b.String()), rows
}

// renderMerged is the flat as-is path: every message of the conversation
// in one document, anchor-tagged, nothing else.
func (e *Exporter) renderMerged(conv parse.Conversation) []byte {
	var b strings.Builder
	for i, m := range conv.Messages {
		p := e.gen.Next(anchor.Scope{
			Conv: conv.ID,
			Day:  dayOf(m),
			Msg:  i + 1,
		})
		b.WriteString(MessageLine(m, p))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func (e *Exporter) messageLines(w window.Window) ([]string, []anchor.Pair) {
	lines := make([]string, len(w.Messages))
	anchors := make([]anchor.Pair, len(w.Messages))
	for i, m := range w.Messages {
		p := e.gen.Next(anchor.Scope{
			Conv:   w.Conv,
			Window: w.Key,
			Day:    dayOf(m),
			Msg:    i + 1,
		})
		anchors[i] = p
		lines[i] = MessageLine(m, p)
	}
	return lines, anchors
}

func firstAnchor(p anchor.Pair) string {
	if p.Classic != "" {
		return p.Classic
	}
	return p.Custom
}

func dayOf(m parse.Message) string {
	if m.Timestamp.IsZero() {
		return window.UnknownKey
	}
	return m.Timestamp.UTC().Format("2006-01-02")
}
