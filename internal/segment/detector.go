package segment

import (
	"strings"
	"time"

	"github.com/wenjun-hu/chat-archive/internal/parse"
)

// DefaultGap is the silence between two messages that starts a new topic.
const DefaultGap = 4 * time.Hour

// DefaultTriggers returns the phrases that conventionally open a topic
// change in the source conversations.
func DefaultTriggers() []string {
	return []string{"对了", "话说回来", "顺便", "另外", "再说", "哦对", "换个话题", "题外话"}
}

// GapDetector cuts where the time since the previous message reaches Gap.
// Messages without timestamps never produce a gap boundary.
type GapDetector struct {
	Gap time.Duration
}

func (d GapDetector) Boundaries(msgs []parse.Message) []int {
	gap := d.Gap
	if gap <= 0 {
		gap = DefaultGap
	}
	var bounds []int
	for i := 1; i < len(msgs); i++ {
		prev, cur := msgs[i-1].Timestamp, msgs[i].Timestamp
		if prev.IsZero() || cur.IsZero() {
			continue
		}
		if cur.Sub(prev) >= gap {
			bounds = append(bounds, i)
		}
	}
	return bounds
}

// TriggerDetector cuts at messages containing a topic-change phrase.
type TriggerDetector struct {
	Phrases []string
}

func (d TriggerDetector) Boundaries(msgs []parse.Message) []int {
	phrases := d.Phrases
	if len(phrases) == 0 {
		phrases = DefaultTriggers()
	}
	var bounds []int
	for i := 1; i < len(msgs); i++ {
		for _, p := range phrases {
			if p != "" && strings.Contains(msgs[i].Text, p) {
				bounds = append(bounds, i)
				break
			}
		}
	}
	return bounds
}

// MultiDetector merges the boundaries of several detectors.
type MultiDetector []BoundaryDetector

func (d MultiDetector) Boundaries(msgs []parse.Message) []int {
	var bounds []int
	for _, det := range d {
		bounds = append(bounds, det.Boundaries(msgs)...)
	}
	return bounds
}
