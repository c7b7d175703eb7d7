package segment

import (
	"sort"
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"
	"github.com/wenjun-hu/chat-archive/internal/parse"
)

// HeadlineTitler titles a topic with the first line of its first user
// message, falling back to the first message of any role.
type HeadlineTitler struct {
	MaxWidth int // display columns, 0 = 60
}

func (t HeadlineTitler) Title(msgs []parse.Message) string {
	max := t.MaxWidth
	if max <= 0 {
		max = 60
	}

	var src string
	for _, m := range msgs {
		if m.Role == "user" {
			src = m.Text
			break
		}
	}
	if src == "" && len(msgs) > 0 {
		src = msgs[0].Text
	}

	line := src
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "Untitled"
	}
	if runewidth.StringWidth(line) > max {
		line = runewidth.Truncate(line, max, "…")
	}
	return line
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "you": true, "not": true, "are": true, "but": true,
	"have": true, "was": true, "can": true, "what": true, "how": true,
}

// Keywords returns up to max of the most frequent words across the
// messages. Single CJK characters and short latin words are skipped.
func (t HeadlineTitler) Keywords(msgs []parse.Message, max int) []string {
	if max <= 0 {
		max = 5
	}
	freq := make(map[string]int)
	for _, m := range msgs {
		for _, w := range splitWords(m.Text) {
			freq[w]++
		}
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > max {
		words = words[:max]
	}
	return words
}

func splitWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	var out []string
	for _, f := range fields {
		runes := []rune(f)
		if len(runes) < 2 || len(runes) > 24 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}
