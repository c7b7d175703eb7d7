package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// refreshPreview re-renders the right panel for the selected topic. The
// documents are already in memory, so rendering is synchronous.
func (m *model) refreshPreview() {
	if !m.ready || m.cursor == m.previewIdx {
		return
	}
	it := m.items[m.cursor]
	width := m.previewWidth()

	var b strings.Builder
	dim := lipgloss.NewStyle().Foreground(colorDim)

	b.WriteString(styleListSelected.Render("## "+it.curTitle()) + "\n")
	b.WriteString(dim.Render("{#"+it.topic.IndexID+"}") + "\n")
	if tags := it.curTags(); len(tags) > 0 {
		b.WriteString(dim.Render("tags: "+strings.Join(tags, " ")) + "\n")
	}
	b.WriteString("\n")

	for _, ln := range it.topic.Lines {
		for _, wl := range wrapPlain(ln.Raw, width) {
			b.WriteString(wl)
			b.WriteString("\n")
		}
	}

	m.preview.SetContent(b.String())
	m.preview.GotoTop()
	m.previewIdx = m.cursor
}

// wrapPlain soft-wraps a line to the given visible width. Preview lines
// carry no ANSI codes of their own, so plain rune widths are enough.
func wrapPlain(line string, maxWidth int) []string {
	if maxWidth <= 0 || runewidth.StringWidth(line) <= maxWidth {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0
	for _, r := range line {
		rw := runewidth.RuneWidth(r)
		if visW+rw > maxWidth {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}
		cur.WriteRune(r)
		visW += rw
	}
	if cur.Len() > 0 {
		result = append(result, cur.String())
	}
	return result
}
