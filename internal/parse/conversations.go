package parse

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Load decodes a conversation export. Three shapes are accepted: a bare
// array of conversations, an object with a "conversations" array, and a
// single conversation object. Conversations with no usable messages are
// dropped.
func Load(data []byte) ([]Conversation, error) {
	records, err := decodeRecords(data)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]int)
	var convs []Conversation
	for _, rec := range records {
		conv := rec.conversation()
		if len(conv.Messages) == 0 {
			continue
		}
		// disambiguate duplicate titles
		seen[conv.ID]++
		if n := seen[conv.ID]; n > 1 {
			conv.ID = fmt.Sprintf("%s-%d", conv.ID, n)
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

type convRecord struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	CurrentNode string              `json:"current_node"`
	Mapping     map[string]*mapNode `json:"mapping"`
	Messages    []json.RawMessage   `json:"messages"`
}

type mapNode struct {
	Parent   *string         `json:"parent"`
	Children []string        `json:"children"`
	Message  json.RawMessage `json:"message"`
}

func decodeRecords(data []byte) ([]convRecord, error) {
	var arr []convRecord
	if err := json.Unmarshal(data, &arr); err == nil {
		return arr, nil
	}

	var wrapper struct {
		Conversations []convRecord `json:"conversations"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && len(wrapper.Conversations) > 0 {
		return wrapper.Conversations, nil
	}

	var single convRecord
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}
	if single.Mapping == nil && len(single.Messages) == 0 {
		return nil, fmt.Errorf("decode export: no conversations found")
	}
	return []convRecord{single}, nil
}

func (rec convRecord) conversation() Conversation {
	title := rec.Title
	if title == "" {
		title = "Conversation"
	}
	id := rec.ID
	if id == "" || rec.Title != "" {
		id = Slug(title)
	}

	var msgs []Message
	if rec.Mapping != nil {
		msgs = rec.linearize()
	} else {
		for _, raw := range rec.Messages {
			if m, ok := normalizeMessage(raw); ok {
				msgs = append(msgs, m)
			}
		}
	}

	// messages arrive roughly ordered; a stable sort keeps same-second
	// neighbours in source order while fixing stray out-of-order entries
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	for i := range msgs {
		msgs[i].Ordinal = i + 1
	}

	return Conversation{ID: id, Title: title, Messages: msgs}
}

// linearize walks the mapping graph along the current-node path. When that
// path is missing or shorter than the deepest branch, it falls back to
// following the child with the newest subtree timestamp from the root.
func (rec convRecord) linearize() []Message {
	primary := rec.pathMessages(rec.currentNodePath())
	fallback := rec.pathMessages(rec.latestBranchPath())
	if len(primary) >= len(fallback) {
		return primary
	}
	return fallback
}

func (rec convRecord) currentNodePath() []string {
	id := rec.CurrentNode
	if id == "" {
		return nil
	}
	var ids []string
	seen := make(map[string]bool)
	for id != "" && !seen[id] {
		node, ok := rec.Mapping[id]
		if !ok {
			break
		}
		seen[id] = true
		ids = append(ids, id)
		if node.Parent == nil {
			break
		}
		id = *node.Parent
	}
	// reverse into root-first order
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

func (rec convRecord) latestBranchPath() []string {
	rootID := ""
	for id, node := range rec.Mapping {
		if node.Parent == nil || rec.Mapping[*node.Parent] == nil {
			rootID = id
			break
		}
	}
	if rootID == "" {
		return nil
	}

	cache := make(map[string]time.Time)
	var ids []string
	visited := make(map[string]bool)
	id := rootID
	for id != "" && !visited[id] {
		node, ok := rec.Mapping[id]
		if !ok {
			break
		}
		visited[id] = true
		ids = append(ids, id)

		next := ""
		var best time.Time
		for _, childID := range node.Children {
			if rec.Mapping[childID] == nil {
				continue
			}
			ts := rec.subtreeTimestamp(childID, cache, make(map[string]bool))
			if next == "" || ts.After(best) {
				next = childID
				best = ts
			}
		}
		id = next
	}
	return ids
}

func (rec convRecord) subtreeTimestamp(id string, cache map[string]time.Time, stack map[string]bool) time.Time {
	node, ok := rec.Mapping[id]
	if !ok {
		return time.Time{}
	}
	if ts, ok := cache[id]; ok {
		return ts
	}
	best := nodeTimestamp(node)
	if stack[id] {
		return best
	}
	stack[id] = true
	for _, childID := range node.Children {
		if ts := rec.subtreeTimestamp(childID, cache, stack); ts.After(best) {
			best = ts
		}
	}
	delete(stack, id)
	cache[id] = best
	return best
}

func nodeTimestamp(node *mapNode) time.Time {
	if node == nil || len(node.Message) == 0 {
		return time.Time{}
	}
	if m, ok := normalizeMessage(node.Message); ok {
		return m.Timestamp
	}
	return time.Time{}
}

func (rec convRecord) pathMessages(ids []string) []Message {
	var msgs []Message
	for _, id := range ids {
		node := rec.Mapping[id]
		if node == nil || len(node.Message) == 0 {
			continue
		}
		if m, ok := normalizeMessage(node.Message); ok {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

type rawMessage struct {
	Author *struct {
		Role string `json:"role"`
	} `json:"author"`
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content"`
	Text       string          `json:"text"`
	CreateTime json.RawMessage `json:"create_time"`
	Timestamp  json.RawMessage `json:"timestamp"`
	Metadata   struct {
		Timestamp  json.RawMessage `json:"timestamp"`
		Timestamp_ json.RawMessage `json:"timestamp_"`
	} `json:"metadata"`
}

// normalizeMessage maps the export's message shapes onto Message. Content
// may be a plain string, a {parts: [...]} block, or a {text: ...} block.
// Messages with no text are dropped.
func normalizeMessage(raw json.RawMessage) (Message, bool) {
	var rm rawMessage
	if err := json.Unmarshal(raw, &rm); err != nil {
		return Message{}, false
	}

	role := rm.Role
	if rm.Author != nil && rm.Author.Role != "" {
		role = rm.Author.Role
	}
	if role == "" {
		role = "assistant"
	}

	text := strings.TrimSpace(extractContent(rm.Content))
	if text == "" {
		text = strings.TrimSpace(rm.Text)
	}
	if text == "" {
		return Message{}, false
	}

	ts := normalizeTimestamp(rm.CreateTime)
	if ts.IsZero() {
		ts = normalizeTimestamp(rm.Timestamp)
	}
	if ts.IsZero() {
		ts = normalizeTimestamp(rm.Metadata.Timestamp)
	}
	if ts.IsZero() {
		ts = normalizeTimestamp(rm.Metadata.Timestamp_)
	}

	return Message{Role: role, Text: text, Timestamp: ts}, true
}

func extractContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var block struct {
		Parts []json.RawMessage `json:"parts"`
		Text  string            `json:"text"`
	}
	if err := json.Unmarshal(raw, &block); err != nil {
		return ""
	}
	if len(block.Parts) > 0 {
		var parts []string
		for _, p := range block.Parts {
			var ps string
			if err := json.Unmarshal(p, &ps); err == nil && ps != "" {
				parts = append(parts, ps)
			}
		}
		return strings.Join(parts, "\n")
	}
	return block.Text
}

// normalizeTimestamp accepts epoch seconds, epoch milliseconds (values
// above 1e12), or an RFC3339 string.
func normalizeTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n <= 0 {
			return time.Time{}
		}
		if n > 1e12 {
			n = n / 1000
		}
		return time.Unix(int64(n), 0).UTC()
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return time.Time{}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && n > 0 {
		if n > 1e12 {
			n = n / 1000
		}
		return time.Unix(int64(n), 0).UTC()
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
