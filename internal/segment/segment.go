// Package segment splits a window's message sequence into contiguous
// topics. Boundary detection and title derivation are pluggable; the
// segmenter itself only guarantees the structural invariants: topics are
// ordered, non-overlapping, and cover the window exactly.
package segment

import (
	"sort"

	"github.com/google/uuid"
	"github.com/wenjun-hu/chat-archive/internal/parse"
	"github.com/wenjun-hu/chat-archive/internal/window"
)

type Topic struct {
	IndexID string
	Title   string
	Tags    []string
	Lo, Hi  int // half-open message index range within the window
}

// Messages returns the topic's slice of the window's messages.
func (t Topic) Messages(w window.Window) []parse.Message {
	return w.Messages[t.Lo:t.Hi]
}

// BoundaryDetector proposes cut points for a message sequence. Returned
// indices mark the first message of a new topic; values outside (0, len)
// and duplicates are discarded by the segmenter.
type BoundaryDetector interface {
	Boundaries(msgs []parse.Message) []int
}

// Titler derives a display title and keyword set for a message sequence.
type Titler interface {
	Title(msgs []parse.Message) string
	Keywords(msgs []parse.Message, max int) []string
}

type Segmenter struct {
	Detector BoundaryDetector
	Titler   Titler
	// NewID produces candidate index ids. Defaults to NewIndexID;
	// injectable so tests and re-exports can pin ids.
	NewID func() string
}

// NewIndexID returns a fresh short topic id.
func NewIndexID() string {
	return "t-" + uuid.NewString()[:8]
}

// Split produces the topics covering w. With no detected boundaries the
// whole window is a single topic.
func (s *Segmenter) Split(w window.Window) []Topic {
	n := len(w.Messages)
	if n == 0 {
		return nil
	}

	bounds := Sanitize(s.Detector.Boundaries(w.Messages), n)

	newID := s.NewID
	if newID == nil {
		newID = NewIndexID
	}
	used := make(map[string]bool)
	nextID := func() string {
		for {
			id := newID()
			if !used[id] {
				used[id] = true
				return id
			}
		}
	}

	cuts := append([]int{0}, bounds...)
	topics := make([]Topic, 0, len(cuts))
	for i, lo := range cuts {
		hi := n
		if i+1 < len(cuts) {
			hi = cuts[i+1]
		}
		topics = append(topics, Topic{
			IndexID: nextID(),
			Title:   s.Titler.Title(w.Messages[lo:hi]),
			Lo:      lo,
			Hi:      hi,
		})
	}
	return topics
}

// Sanitize sorts, deduplicates, and clamps boundary indices to the open
// interval (0, n).
func Sanitize(bounds []int, n int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, b := range bounds {
		if b <= 0 || b >= n || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	sort.Ints(out)
	return out
}
