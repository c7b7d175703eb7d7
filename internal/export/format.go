package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wenjun-hu/chat-archive/internal/anchor"
	"github.com/wenjun-hu/chat-archive/internal/parse"
	"github.com/wenjun-hu/chat-archive/internal/window"
)

// TimeLayout is the bracketed timestamp on every message line.
const TimeLayout = "2006-01-02 15:04:05"

// MessageLine renders one message as a single line:
//
//	[2026-01-02 15:04:05] user: text ^msg-000001 ^conv-window-1-42
//
// Newlines in the body are flattened to spaces so the anchor tokens at the
// end of the line stay parseable.
func MessageLine(m parse.Message, p anchor.Pair) string {
	ts := window.UnknownKey
	if !m.Timestamp.IsZero() {
		ts = m.Timestamp.UTC().Format(TimeLayout)
	}
	text := Flatten(m.Text)

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", ts, m.Role, text)
	if p.Classic != "" {
		b.WriteByte(' ')
		b.WriteString(p.Classic)
	}
	if p.Custom != "" {
		b.WriteByte(' ')
		b.WriteString(p.Custom)
	}
	return b.String()
}

// Flatten collapses a message body onto one line.
func Flatten(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.ReplaceAll(text, "\r", " ")
}

// TopicHeader renders a topic heading with its index id as the anchor
// target: "## Title {#t-ab12cd34}".
func TopicHeader(title, indexID string) string {
	return fmt.Sprintf("## %s {#%s}", title, indexID)
}

// TagsLine renders the tags line under a topic header: "tags: #a #b".
func TagsLine(tags []string) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = "#" + t
	}
	return "tags: " + strings.Join(parts, " ")
}

// Frontmatter is the draft metadata header on exported documents. The
// draft flag marks every derived field as provisional.
type Frontmatter struct {
	Conv     string   `yaml:"conv"`
	Title    string   `yaml:"title,omitempty"`
	Window   string   `yaml:"window"`
	Range    string   `yaml:"range"`
	Keywords []string `yaml:"keywords,omitempty"`
	Draft    bool     `yaml:"draft"`
}

func (e *Exporter) frontmatter(wt WindowTopics) []byte {
	w := wt.Window
	fm := Frontmatter{
		Conv:   w.Conv,
		Window: w.Key,
		Range:  messageRange(w),
		Draft:  true,
	}
	if len(w.Messages) > 0 {
		fm.Keywords = e.titler.Keywords(w.Messages, 5)
	}

	var b bytes.Buffer
	b.WriteString("---\n")
	enc, _ := yaml.Marshal(fm)
	b.Write(enc)
	b.WriteString("---\n")
	return b.Bytes()
}

func messageRange(w window.Window) string {
	first, last := "", ""
	for _, m := range w.Messages {
		if m.Timestamp.IsZero() {
			continue
		}
		d := m.Timestamp.UTC().Format("2006-01-02")
		if first == "" {
			first = d
		}
		last = d
	}
	if first == "" {
		return window.UnknownKey
	}
	if first == last {
		return first
	}
	return first + ".." + last
}

// IndexRow is one TopicIndexEntry: a derived, regenerable view of a topic.
type IndexRow struct {
	Conv    string
	Window  string
	IndexID string
	Title   string
	Tags    []string
	Anchor  string // anchor of the topic's first message
}

// TopicIndexName is the filename for a conversation's index table.
func TopicIndexName(conv string) string {
	return "topic_map_" + conv + ".csv"
}

var indexHeader = []string{"conv", "window", "index_id", "title", "tags", "anchor"}

// EncodeTopicIndex renders index rows as CSV with a header row. Tags are
// space-joined within their cell.
func EncodeTopicIndex(rows []IndexRow) ([]byte, error) {
	var b bytes.Buffer
	cw := csv.NewWriter(&b)
	if err := cw.Write(indexHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := []string{r.Conv, r.Window, r.IndexID, r.Title, strings.Join(r.Tags, " "), r.Anchor}
		if err := cw.Write(rec); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	return b.Bytes(), cw.Error()
}

// DecodeTopicIndex parses a previously exported index table.
func DecodeTopicIndex(data []byte) ([]IndexRow, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("topic index: %w", err)
	}
	var rows []IndexRow
	for i, rec := range recs {
		if i == 0 && len(rec) > 0 && rec[0] == "conv" {
			continue
		}
		if len(rec) != len(indexHeader) {
			return nil, fmt.Errorf("topic index row %d: want %d columns, got %d", i+1, len(indexHeader), len(rec))
		}
		row := IndexRow{
			Conv: rec[0], Window: rec[1], IndexID: rec[2],
			Title: rec[3], Anchor: rec[5],
		}
		if rec[4] != "" {
			row.Tags = strings.Fields(rec[4])
		}
		rows = append(rows, row)
	}
	return rows, nil
}
