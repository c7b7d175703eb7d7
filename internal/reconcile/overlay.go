package reconcile

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
)

// Edit is one reviewer correction, keyed by the topic's index id. Nil
// fields are "leave unchanged"; Deleted wins over the other fields.
type Edit struct {
	IndexID    string    `toml:"index_id"`
	Title      *string   `toml:"title,omitempty"`
	Tags       *[]string `toml:"tags,omitempty"`
	NewIndexID *string   `toml:"new_index_id,omitempty"`
	Deleted    bool      `toml:"deleted,omitempty"`
}

// Overlay is a reviewer-supplied edit set. It exists only for the duration
// of one reconciliation pass.
type Overlay struct {
	Edits []Edit `toml:"edit"`
}

func (o Overlay) Empty() bool {
	return len(o.Edits) == 0
}

// LoadOverlay decodes an overlay file.
func LoadOverlay(data []byte) (Overlay, error) {
	var ov Overlay
	if err := toml.Unmarshal(data, &ov); err != nil {
		return Overlay{}, fmt.Errorf("parse overlay: %w", err)
	}
	for _, e := range ov.Edits {
		if e.IndexID == "" {
			return Overlay{}, fmt.Errorf("parse overlay: edit without index_id")
		}
	}
	return ov, nil
}

func (o Overlay) byID() (map[string]Edit, error) {
	m := make(map[string]Edit, len(o.Edits))
	for _, e := range o.Edits {
		if _, dup := m[e.IndexID]; dup {
			return nil, fmt.Errorf("overlay: duplicate edit for index_id %s", e.IndexID)
		}
		m[e.IndexID] = e
	}
	return m, nil
}

// EncodeOverlay renders an overlay to TOML (the review TUI's output).
func EncodeOverlay(ov Overlay) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(ov); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
