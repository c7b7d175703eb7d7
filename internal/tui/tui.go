// Package tui is the interactive overlay editor: topics on the left,
// their messages on the right, edits accumulated in memory and written
// out as a TOML overlay for the revise step.
package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wenjun-hu/chat-archive/internal/reconcile"
)

type tuiMode int

const (
	modeBrowse tuiMode = iota
	modeEditTitle
	modeEditTags
	modeRename
)

// item is one reviewable topic, flattened out of its document.
type item struct {
	docName string
	conv    string
	window  string
	topic   reconcile.Topic

	// pending edits, nil means unchanged
	title   *string
	tags    *[]string
	newID   *string
	deleted bool
}

func (it *item) dirty() bool {
	return it.title != nil || it.tags != nil || it.newID != nil || it.deleted
}

func (it *item) curTitle() string {
	if it.title != nil {
		return *it.title
	}
	return it.topic.Title
}

func (it *item) curTags() []string {
	if it.tags != nil {
		return *it.tags
	}
	return it.topic.Tags
}

type model struct {
	items      []*item
	outPath    string
	mode       tuiMode
	cursor     int
	listOffset int
	input      textinput.Model
	preview    viewport.Model
	previewIdx int // item index currently rendered, -1 = none
	status     string
	width      int
	height     int
	ready      bool
	quitting   bool
	saved      bool
}

// Run starts the overlay editor over the labeled documents and blocks
// until it exits. Saving writes the accumulated edits to outPath.
func Run(docs []*reconcile.Doc, outPath string) error {
	var items []*item
	for _, d := range docs {
		if d == nil || !d.Labeled {
			continue
		}
		for _, t := range d.Topics {
			items = append(items, &item{
				docName: d.Name,
				conv:    d.Conv,
				window:  d.Window,
				topic:   t,
			})
		}
	}
	if len(items) == 0 {
		return fmt.Errorf("no labeled topics to review")
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = styleInputPrompt
	ti.TextStyle = styleInput
	ti.CharLimit = 256

	m := model{
		items:      items,
		outPath:    outPath,
		input:      ti,
		preview:    viewport.New(0, 0),
		previewIdx: -1,
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}

	fm := finalModel.(model)
	if ov := fm.overlay(); !fm.saved && !ov.Empty() {
		fmt.Fprintf(os.Stderr, "discarded %d unsaved edits (press s to save next time)\n", len(ov.Edits))
	}
	return nil
}

// overlay collects the pending edits in list order.
func (m model) overlay() reconcile.Overlay {
	var ov reconcile.Overlay
	for _, it := range m.items {
		if !it.dirty() {
			continue
		}
		ov.Edits = append(ov.Edits, reconcile.Edit{
			IndexID:    it.topic.IndexID,
			Title:      it.title,
			Tags:       it.tags,
			NewIndexID: it.newID,
			Deleted:    it.deleted,
		})
	}
	return ov
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.preview = viewport.New(m.previewWidth(), m.panelHeight())
		m.previewIdx = -1
		m.refreshPreview()
		return m, nil

	case tea.KeyMsg:
		if m.mode != modeBrowse {
			return m.updateEditing(msg)
		}
		return m.updateBrowsing(msg)
	}

	return m, nil
}

func (m model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cur := m.items[m.cursor]

	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.adjustListScroll(m.panelHeight())
			m.refreshPreview()
		}

	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
			m.adjustListScroll(m.panelHeight())
			m.refreshPreview()
		}

	case key.Matches(msg, keys.EditTitle):
		m.mode = modeEditTitle
		m.input.Placeholder = "Title..."
		m.input.SetValue(cur.curTitle())
		m.input.Focus()
		return m, textinput.Blink

	case key.Matches(msg, keys.EditTags):
		m.mode = modeEditTags
		m.input.Placeholder = "Tags (space-separated)..."
		m.input.SetValue(strings.Join(cur.curTags(), " "))
		m.input.Focus()
		return m, textinput.Blink

	case key.Matches(msg, keys.Rename):
		m.mode = modeRename
		m.input.Placeholder = "New index id..."
		val := cur.topic.IndexID
		if cur.newID != nil {
			val = *cur.newID
		}
		m.input.SetValue(val)
		m.input.Focus()
		return m, textinput.Blink

	case key.Matches(msg, keys.Delete):
		cur.deleted = !cur.deleted
		if cur.deleted {
			m.status = fmt.Sprintf("marked %s for deletion", cur.topic.IndexID)
		} else {
			m.status = fmt.Sprintf("unmarked %s", cur.topic.IndexID)
		}

	case key.Matches(msg, keys.Copy):
		if err := clipboard.WriteAll(cur.topic.IndexID); err != nil {
			m.status = cur.topic.IndexID
		} else {
			m.status = "copied " + cur.topic.IndexID
		}

	case key.Matches(msg, keys.Save):
		ov := m.overlay()
		if ov.Empty() {
			m.status = "nothing to save"
			break
		}
		data, err := reconcile.EncodeOverlay(ov)
		if err != nil {
			m.status = "save failed: " + err.Error()
			break
		}
		if err := os.WriteFile(m.outPath, data, 0o644); err != nil {
			m.status = "save failed: " + err.Error()
			break
		}
		m.saved = true
		m.status = fmt.Sprintf("wrote %d edits to %s", len(ov.Edits), m.outPath)

	case key.Matches(msg, keys.PreviewUp):
		m.preview.LineUp(m.panelHeight() / 2)

	case key.Matches(msg, keys.PreviewDn):
		m.preview.LineDown(m.panelHeight() / 2)

	case key.Matches(msg, keys.PageUp):
		m.preview.LineUp(m.panelHeight())

	case key.Matches(msg, keys.PageDown):
		m.preview.LineDown(m.panelHeight())
	}

	return m, nil
}

func (m model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cur := m.items[m.cursor]

	switch {
	case key.Matches(msg, keys.Cancel):
		m.mode = modeBrowse
		m.input.Blur()
		m.status = ""
		return m, nil

	case key.Matches(msg, keys.Accept):
		val := strings.TrimSpace(m.input.Value())
		switch m.mode {
		case modeEditTitle:
			if val != "" && val != cur.topic.Title {
				cur.title = &val
			} else if val == cur.topic.Title {
				cur.title = nil
			}
		case modeEditTags:
			tags := strings.Fields(val)
			for i, t := range tags {
				tags[i] = strings.TrimPrefix(t, "#")
			}
			cur.tags = &tags
		case modeRename:
			if val != "" && val != cur.topic.IndexID {
				cur.newID = &val
			} else {
				cur.newID = nil
			}
		}
		m.mode = modeBrowse
		m.input.Blur()
		m.previewIdx = -1
		m.refreshPreview()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.quitting || !m.ready {
		return ""
	}

	listW := m.listWidth()
	previewW := m.previewWidth()
	panelH := m.panelHeight()

	var inputRow string
	if m.mode != modeBrowse {
		inputRow = m.input.View()
	} else {
		inputRow = styleStatusBar.Render(m.headerLine())
	}

	listContent := m.renderList(listW, panelH)
	listPanel := styleActiveBorder.
		Width(listW).
		Height(panelH).
		Render(listContent)

	m.preview.Width = previewW
	m.preview.Height = panelH
	previewPanel := stylePanelBorder.
		Width(previewW).
		Height(panelH).
		Render(m.preview.View())

	panels := lipgloss.JoinHorizontal(lipgloss.Top, listPanel, previewPanel)
	status := m.statusBar()

	return lipgloss.JoinVertical(lipgloss.Left, inputRow, panels, status)
}

func (m model) headerLine() string {
	cur := m.items[m.cursor]
	return fmt.Sprintf("%s  %s  %s", cur.conv, cur.window, cur.docName)
}

func (m model) statusBar() string {
	if m.status != "" {
		return styleStatusBar.Render(m.status)
	}
	edits := len(m.overlay().Edits)
	parts := []string{
		fmt.Sprintf("%d topics", len(m.items)),
		fmt.Sprintf("%d edits pending", edits),
		"e title | t tags | r rename | d delete | y copy | s save | esc quit",
	}
	return styleStatusBar.Render(strings.Join(parts, " | "))
}

func (m model) listWidth() int {
	if m.width <= 0 {
		return 40
	}
	w := m.width*40/100 - 4
	if w < 20 {
		w = 20
	}
	return w
}

func (m model) previewWidth() int {
	if m.width <= 0 {
		return 60
	}
	w := m.width*60/100 - 4
	if w < 20 {
		w = 20
	}
	return w
}

func (m model) panelHeight() int {
	if m.height <= 0 {
		return 20
	}
	// input row (1) + status bar (1) + borders (4)
	h := m.height - 6
	if h < 5 {
		h = 5
	}
	return h
}
