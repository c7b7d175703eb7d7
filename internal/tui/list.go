package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// linesPerItem is the number of terminal lines each topic occupies.
const linesPerItem = 2

// renderList renders the left panel: the topic list with scrolling.
func (m model) renderList(width, height int) string {
	var lines []string
	for i, it := range m.items {
		if i < m.listOffset {
			continue
		}
		if len(lines)+linesPerItem > height {
			break
		}
		lines = append(lines, formatItemLines(it, width, i == m.cursor)...)
	}

	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}

	return strings.Join(lines, "\n")
}

// formatItemLines formats a single topic as two lines:
//
//	line 1: [>] index-id  title
//	line 2:     window  conv  [markers]
func formatItemLines(it *item, width int, selected bool) []string {
	id := it.topic.IndexID
	if it.newID != nil {
		id = *it.newID
	}

	title := strings.ReplaceAll(it.curTitle(), "\n", " ")
	titleMax := width - 2 - runewidth.StringWidth(id) - 3
	if titleMax < 0 {
		titleMax = 0
	}
	if runewidth.StringWidth(title) > titleMax {
		title = runewidth.Truncate(title, titleMax, "")
	}

	var idStyle lipgloss.Style
	switch {
	case it.deleted:
		idStyle = styleDeleted
	case it.dirty():
		idStyle = styleEdited
	default:
		idStyle = styleListNormal
	}

	line1 := fmt.Sprintf("%s  %s", idStyle.Render(id), title)
	if selected {
		line1 = styleListSelected.Render("> ") + line1
	} else {
		line1 = "  " + line1
	}

	meta := fmt.Sprintf("%s  %s  %d msgs", it.window, it.conv, len(it.topic.Lines))
	if it.deleted {
		meta += "  [deleted]"
	} else if it.dirty() {
		meta += "  [edited]"
	}
	metaMax := width - 4
	if metaMax < 0 {
		metaMax = 0
	}
	if runewidth.StringWidth(meta) > metaMax {
		meta = runewidth.Truncate(meta, metaMax, "")
	}
	line2 := "    " + lipgloss.NewStyle().Foreground(colorDim).Render(meta)

	return []string{line1, line2}
}

// adjustListScroll keeps the cursor visible within the list viewport.
func (m *model) adjustListScroll(listHeight int) {
	visibleItems := listHeight / linesPerItem
	if visibleItems < 1 {
		visibleItems = 1
	}
	if m.cursor < m.listOffset {
		m.listOffset = m.cursor
	}
	if m.cursor >= m.listOffset+visibleItems {
		m.listOffset = m.cursor - visibleItems + 1
	}
}
