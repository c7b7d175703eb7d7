package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/wenjun-hu/chat-archive/internal/catalog"
)

const (
	colorReset   = "\033[0m"
	colorUser    = "\033[1;34m" // bold blue
	colorAssist  = "\033[1;32m" // bold green
	colorTopic   = "\033[1;36m" // bold cyan for topic headers
	colorDim     = "\033[2m"
	colorHit     = "\033[43m"   // yellow background
	colorBoldRed = "\033[1;31m" // bold red for keyword highlights
)

type Options struct {
	HitSeq int    // message sequence to mark, -1 for none
	Width  int    // wrap width (0 = no wrap)
	Query  string // search query for keyword highlighting
}

// fts5Operators are FTS5 operators that should not be highlighted as keywords.
var fts5Operators = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "NEAR": true,
	"and": true, "or": true, "not": true, "near": true,
}

// highlightKeywords wraps case-insensitive matches of query terms in bold red ANSI codes.
func highlightKeywords(text, query string) string {
	if query == "" {
		return text
	}
	terms := strings.Fields(query)
	var filtered []string
	for _, t := range terms {
		if !fts5Operators[t] {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return text
	}
	for _, term := range filtered {
		lower := strings.ToLower(term)
		i := 0
		for i < len(text) {
			idx := strings.Index(strings.ToLower(text[i:]), lower)
			if idx < 0 {
				break
			}
			pos := i + idx
			orig := text[pos : pos+len(term)]
			replacement := colorBoldRed + orig + colorReset
			text = text[:pos] + replacement + text[pos+len(term):]
			i = pos + len(replacement)
		}
	}
	return text
}

// indentLines prepends each line of text with the given prefix.
func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// wrapLine breaks a single line into multiple lines that fit within maxWidth
// visible columns, correctly skipping ANSI escape sequences when measuring width.
func wrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0

	i := 0
	for i < len(line) {
		// check for ANSI escape sequence: ESC[ ... m
		if i+1 < len(line) && line[i] == '\033' && line[i+1] == '[' {
			j := i + 2
			for j < len(line) && line[j] != 'm' {
				j++
			}
			if j < len(line) {
				j++ // include 'm'
			}
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)

		if visW+rw > maxWidth {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}

		cur.WriteRune(r)
		visW += rw
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}

	if len(result) == 0 {
		return []string{""}
	}
	return result
}

// RenderDoc renders a cataloged archive document for terminal preview and
// returns the content, the 0-based line number of the hit message (-1 if
// none), and any error.
func RenderDoc(db *catalog.DB, docName string, opts Options) (string, int, error) {
	doc, err := db.GetDocByName(docName)
	if err != nil {
		return "", -1, fmt.Errorf("get doc: %w", err)
	}
	if doc == nil {
		return "", -1, fmt.Errorf("document not found: %s", docName)
	}

	topics, err := db.GetTopics(docName)
	if err != nil {
		return "", -1, fmt.Errorf("get topics: %w", err)
	}
	messages, err := db.GetMessages(docName)
	if err != nil {
		return "", -1, fmt.Errorf("get messages: %w", err)
	}
	if len(messages) == 0 {
		return "(empty document)", -1, nil
	}

	var b strings.Builder
	hitLine := -1
	lineCount := 0
	wrapW := opts.Width

	writeLine := func(s string) {
		for _, wl := range wrapLine(s, wrapW) {
			b.WriteString(wl)
			b.WriteString("\n")
			lineCount++
		}
	}

	writeLine(fmt.Sprintf("%s--- %s [%s] %s ---%s", colorDim, doc.Conv, doc.Window, docName, colorReset))

	nextTopic := 0
	for _, m := range messages {
		for nextTopic < len(topics) && topics[nextTopic].FirstSeq == m.Seq {
			t := topics[nextTopic]
			writeLine("")
			header := fmt.Sprintf("%s## %s%s %s{#%s}%s", colorTopic, t.Title, colorReset, colorDim, t.IndexID, colorReset)
			writeLine(header)
			if t.Tags != "" {
				writeLine(colorDim + "tags: " + t.Tags + colorReset)
			}
			nextTopic++
		}

		isHit := m.Seq == opts.HitSeq
		if isHit {
			hitLine = lineCount
		}

		roleColor := colorDim
		switch m.Role {
		case "user":
			roleColor = colorUser
		case "assistant":
			roleColor = colorAssist
		}

		label := strings.ToUpper(m.Role)
		if isHit {
			writeLine(fmt.Sprintf("%s>> %s > %s <<%s", colorHit, label, m.Ts, colorReset))
		} else {
			writeLine(fmt.Sprintf("%s%s >%s %s%s%s", roleColor, label, colorReset, colorDim, m.Ts, colorReset))
		}

		text := highlightKeywords(m.Text, opts.Query)
		text = indentLines(text, "  ")
		for _, tl := range strings.Split(text, "\n") {
			writeLine(tl)
		}
		if m.Anchor != "" {
			writeLine(colorDim + "  " + m.Anchor + colorReset)
		}
	}

	return b.String(), hitLine, nil
}
