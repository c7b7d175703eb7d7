// Package window groups a conversation's messages into contiguous,
// time-bounded slices. Windows never copy messages; they reference a
// subslice of the conversation.
package window

import (
	"fmt"
	"sort"
	"time"

	"github.com/wenjun-hu/chat-archive/internal/parse"
)

// UnknownKey is the window key for messages without a usable timestamp.
const UnknownKey = "unknown"

const dayLayout = "2006-01-02"

type Window struct {
	Conv     string
	Key      string // derived from the covered date range, not position
	Start    time.Time
	End      time.Time // exclusive
	Messages []parse.Message
}

type Range struct {
	Start time.Time // inclusive date
	End   time.Time // inclusive date
}

type Policy struct {
	By     string // "day" or "ranges"
	Ranges []Range
}

func ByDay() Policy {
	return Policy{By: "day"}
}

func ByRanges(ranges []Range) Policy {
	return Policy{By: "ranges", Ranges: ranges}
}

// Key derives the window key for a range: the day for single-day ranges,
// "start..end" for spans. Spans may cross month boundaries freely.
func (r Range) Key() string {
	if r.Start.Equal(r.End) {
		return r.Start.Format(dayLayout)
	}
	return r.Start.Format(dayLayout) + ".." + r.End.Format(dayLayout)
}

type EmptySelectionError struct {
	Conv string
	Key  string
}

func (e *EmptySelectionError) Error() string {
	return fmt.Sprintf("window %s/%s: selection contains no messages", e.Conv, e.Key)
}

type InvalidRangeError struct {
	Conv   string
	Start  time.Time
	End    time.Time
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("window range %s..%s in %s: %s",
		e.Start.Format(dayLayout), e.End.Format(dayLayout), e.Conv, e.Reason)
}

// Partition produces the ordered, non-overlapping windows selected by the
// policy. Messages must already be ordered by timestamp (parse.Load
// guarantees this).
func Partition(conv parse.Conversation, pol Policy) ([]Window, error) {
	switch pol.By {
	case "", "day":
		return partitionByDay(conv), nil
	case "ranges":
		return partitionByRanges(conv, pol.Ranges)
	default:
		return nil, fmt.Errorf("unknown windowing policy: %q", pol.By)
	}
}

func partitionByDay(conv parse.Conversation) []Window {
	var wins []Window
	msgs := conv.Messages
	for lo := 0; lo < len(msgs); {
		key := dayKey(msgs[lo].Timestamp)
		hi := lo + 1
		for hi < len(msgs) && dayKey(msgs[hi].Timestamp) == key {
			hi++
		}
		w := Window{
			Conv:     conv.ID,
			Key:      key,
			Messages: msgs[lo:hi],
		}
		if key != UnknownKey {
			w.Start = truncateDay(msgs[lo].Timestamp)
			w.End = w.Start.AddDate(0, 0, 1)
		}
		wins = append(wins, w)
		lo = hi
	}
	return wins
}

func partitionByRanges(conv parse.Conversation, ranges []Range) ([]Window, error) {
	norm := make([]Range, len(ranges))
	for i, r := range ranges {
		start := truncateDay(r.Start)
		end := truncateDay(r.End)
		if end.Before(start) {
			return nil, &InvalidRangeError{Conv: conv.ID, Start: start, End: end, Reason: "end precedes start"}
		}
		norm[i] = Range{Start: start, End: end}
	}
	sort.Slice(norm, func(i, j int) bool { return norm[i].Start.Before(norm[j].Start) })
	for i := 1; i < len(norm); i++ {
		if !norm[i].Start.After(norm[i-1].End) {
			return nil, &InvalidRangeError{
				Conv: conv.ID, Start: norm[i].Start, End: norm[i].End,
				Reason: fmt.Sprintf("overlaps range %s", norm[i-1].Key()),
			}
		}
	}

	msgs := conv.Messages
	var wins []Window
	for _, r := range norm {
		end := r.End.AddDate(0, 0, 1) // exclusive bound
		lo := sort.Search(len(msgs), func(i int) bool {
			return !msgs[i].Timestamp.Before(r.Start)
		})
		hi := sort.Search(len(msgs), func(i int) bool {
			return !msgs[i].Timestamp.Before(end)
		})
		if lo == hi {
			return nil, &EmptySelectionError{Conv: conv.ID, Key: r.Key()}
		}
		wins = append(wins, Window{
			Conv:     conv.ID,
			Key:      r.Key(),
			Start:    r.Start,
			End:      end,
			Messages: msgs[lo:hi],
		})
	}
	return wins, nil
}

func dayKey(ts time.Time) string {
	if ts.IsZero() {
		return UnknownKey
	}
	return ts.UTC().Format(dayLayout)
}

func truncateDay(ts time.Time) time.Time {
	t := ts.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
