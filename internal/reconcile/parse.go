// Package reconcile re-imports exported archives, applies reviewer edits,
// and emits a revised archive plus an audit sidecar. The Markdown
// documents are authoritative for message-range membership; the topic
// index is only a derived view and is regenerated, never trusted.
package reconcile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Line is one preserved message line. Raw keeps the exact exported bytes,
// anchors included, so untouched content survives reconciliation
// byte-identically.
type Line struct {
	Raw     string
	Anchors []string
	Seq     int // classic counter value, 0 when absent
}

type Topic struct {
	IndexID string
	Title   string
	Tags    []string
	Lines   []Line
}

type Doc struct {
	Name     string
	Conv     string
	Window   string
	FrontRaw []byte // raw frontmatter block including fences, re-emitted untouched
	Labeled  bool   // document carries topic headers
	Topics   []Topic
}

type ParseError struct {
	Name   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s:%d: %s", e.Name, e.Line, e.Reason)
}

var (
	headerRe  = regexp.MustCompile(`^## (.*) \{#([^}]+)\}$`)
	msgLineRe = regexp.MustCompile(`^\[[^\]]*\] [^:]+:`)
	classicRe = regexp.MustCompile(`^\^msg-(\d{6})$`)
)

// ParseDoc recovers the topics and anchors actually emitted into an
// exported document. Unlabeled documents (flat merges, or exports with
// segmentation disabled) come back as a single topic with no index id.
func ParseDoc(name string, data []byte) (*Doc, error) {
	doc := &Doc{Name: name}
	body := string(data)

	if strings.HasPrefix(body, "---\n") {
		end := strings.Index(body[4:], "\n---\n")
		if end < 0 {
			return nil, &ParseError{Name: name, Line: 1, Reason: "unterminated frontmatter"}
		}
		raw := body[:4+end+5]
		doc.FrontRaw = []byte(raw)
		body = body[len(raw):]
		body = strings.TrimPrefix(body, "\n")

		var fm struct {
			Conv   string `yaml:"conv"`
			Window string `yaml:"window"`
		}
		inner := raw[4 : len(raw)-4]
		if err := yaml.Unmarshal([]byte(inner), &fm); err != nil {
			return nil, &ParseError{Name: name, Line: 1, Reason: "frontmatter: " + err.Error()}
		}
		doc.Conv = fm.Conv
		doc.Window = fm.Window
	}

	var cur *Topic
	lastSeq := 0
	afterHeader := false
	lineNo := strings.Count(string(doc.FrontRaw), "\n")

	flush := func() {
		if cur != nil {
			doc.Topics = append(doc.Topics, *cur)
			cur = nil
		}
	}

	for _, raw := range strings.Split(body, "\n") {
		lineNo++
		if raw == "" {
			afterHeader = false
			continue
		}

		if strings.HasPrefix(raw, "## ") {
			m := headerRe.FindStringSubmatch(raw)
			if m == nil {
				return nil, &ParseError{Name: name, Line: lineNo, Reason: "topic header without index id"}
			}
			flush()
			doc.Labeled = true
			cur = &Topic{Title: m[1], IndexID: m[2]}
			afterHeader = true
			continue
		}

		if afterHeader && strings.HasPrefix(raw, "tags: ") {
			cur.Tags = parseTags(raw)
			afterHeader = false
			continue
		}
		afterHeader = false

		if !msgLineRe.MatchString(raw) {
			return nil, &ParseError{Name: name, Line: lineNo, Reason: fmt.Sprintf("unrecognized line %q", raw)}
		}
		if doc.Labeled && cur == nil {
			return nil, &ParseError{Name: name, Line: lineNo, Reason: "message before first topic header"}
		}

		ln, err := parseMessageLine(raw)
		if err != nil {
			return nil, &ParseError{Name: name, Line: lineNo, Reason: err.Error()}
		}
		if ln.Seq > 0 {
			if ln.Seq <= lastSeq {
				return nil, &ParseError{Name: name, Line: lineNo,
					Reason: fmt.Sprintf("anchor out of order: ^msg-%06d after ^msg-%06d", ln.Seq, lastSeq)}
			}
			lastSeq = ln.Seq
		}

		if cur == nil {
			cur = &Topic{}
		}
		cur.Lines = append(cur.Lines, ln)
	}
	flush()

	return doc, nil
}

func parseMessageLine(raw string) (Line, error) {
	ln := Line{Raw: raw}
	rest := raw
	for {
		i := strings.LastIndexByte(rest, ' ')
		if i < 0 || i == len(rest)-1 || rest[i+1] != '^' {
			break
		}
		ln.Anchors = append([]string{rest[i+1:]}, ln.Anchors...)
		rest = rest[:i]
	}
	if len(ln.Anchors) == 0 {
		return ln, fmt.Errorf("message line without anchor")
	}
	for _, a := range ln.Anchors {
		if m := classicRe.FindStringSubmatch(a); m != nil {
			seq, err := strconv.Atoi(m[1])
			if err != nil || seq == 0 {
				return ln, fmt.Errorf("malformed classic anchor %q", a)
			}
			ln.Seq = seq
		}
	}
	return ln, nil
}

var fieldsRe = regexp.MustCompile(`^\[([^\]]*)\] ([^:]+): (.*)$`)

// Fields splits a preserved line into its timestamp, role, and body text,
// with the trailing anchor tokens stripped from the body.
func (l Line) Fields() (ts, role, text string) {
	m := fieldsRe.FindStringSubmatch(l.Raw)
	if m == nil {
		return "", "", l.Raw
	}
	ts, role, text = m[1], m[2], m[3]
	for i := len(l.Anchors) - 1; i >= 0; i-- {
		text = strings.TrimSuffix(text, l.Anchors[i])
		text = strings.TrimSuffix(text, " ")
	}
	return ts, role, text
}

func parseTags(raw string) []string {
	var tags []string
	for _, f := range strings.Fields(strings.TrimPrefix(raw, "tags: ")) {
		tags = append(tags, strings.TrimPrefix(f, "#"))
	}
	return tags
}

// Render reproduces the exported document for this parse, byte-identical
// when nothing was edited.
func (d *Doc) Render() []byte {
	var b strings.Builder
	if len(d.FrontRaw) > 0 {
		b.Write(d.FrontRaw)
		b.WriteByte('\n')
	}
	for i, t := range d.Topics {
		if d.Labeled {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(fmt.Sprintf("## %s {#%s}", t.Title, t.IndexID))
			b.WriteByte('\n')
			if len(t.Tags) > 0 {
				parts := make([]string, len(t.Tags))
				for j, tag := range t.Tags {
					parts[j] = "#" + tag
				}
				b.WriteString("tags: " + strings.Join(parts, " "))
				b.WriteByte('\n')
			}
			b.WriteByte('\n')
		}
		for _, ln := range t.Lines {
			b.WriteString(ln.Raw)
			b.WriteByte('\n')
		}
	}
	return []byte(b.String())
}
