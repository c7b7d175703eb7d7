package segment

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/wenjun-hu/chat-archive/internal/parse"
	"github.com/wenjun-hu/chat-archive/internal/window"
)

type fixedDetector []int

func (d fixedDetector) Boundaries(msgs []parse.Message) []int { return d }

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("t-%04d", n)
	}
}

func makeWindow(n int) window.Window {
	msgs := make([]parse.Message, n)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := range msgs {
		msgs[i] = parse.Message{
			Role:      "user",
			Text:      fmt.Sprintf("message %d", i+1),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return window.Window{Conv: "c", Key: "2026-03-01", Messages: msgs}
}

func TestSplitCoversWindow(t *testing.T) {
	s := &Segmenter{
		Detector: fixedDetector{4, 7},
		Titler:   HeadlineTitler{},
		NewID:    seqIDs(),
	}

	topics := s.Split(makeWindow(10))
	if len(topics) != 3 {
		t.Fatalf("got %d topics, want 3", len(topics))
	}

	wantRanges := [][2]int{{0, 4}, {4, 7}, {7, 10}}
	for i, tp := range topics {
		if tp.Lo != wantRanges[i][0] || tp.Hi != wantRanges[i][1] {
			t.Errorf("topic %d range = [%d,%d), want [%d,%d)", i, tp.Lo, tp.Hi, wantRanges[i][0], wantRanges[i][1])
		}
	}

	// contiguity: each topic starts where the previous ended
	for i := 1; i < len(topics); i++ {
		if topics[i].Lo != topics[i-1].Hi {
			t.Errorf("gap between topic %d and %d", i-1, i)
		}
	}
	if topics[0].Lo != 0 || topics[len(topics)-1].Hi != 10 {
		t.Errorf("topics do not cover the window")
	}

	if topics[0].IndexID == topics[1].IndexID {
		t.Errorf("duplicate index ids")
	}
}

func TestSplitNoBoundaries(t *testing.T) {
	s := &Segmenter{
		Detector: fixedDetector{},
		Titler:   HeadlineTitler{},
		NewID:    seqIDs(),
	}
	topics := s.Split(makeWindow(5))
	if len(topics) != 1 {
		t.Fatalf("got %d topics, want 1", len(topics))
	}
	if topics[0].Lo != 0 || topics[0].Hi != 5 {
		t.Errorf("single topic range = [%d,%d), want [0,5)", topics[0].Lo, topics[0].Hi)
	}
}

func TestSplitEmptyWindow(t *testing.T) {
	s := &Segmenter{Detector: fixedDetector{}, Titler: HeadlineTitler{}}
	if topics := s.Split(window.Window{Conv: "c"}); topics != nil {
		t.Errorf("empty window produced topics: %v", topics)
	}
}

func TestSanitize(t *testing.T) {
	got := Sanitize([]int{7, 4, 4, 0, 10, -1, 12}, 10)
	want := []int{4, 7}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sanitize = %v, want %v", got, want)
	}
}

func TestGapDetector(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msgs := []parse.Message{
		{Text: "a", Timestamp: base},
		{Text: "b", Timestamp: base.Add(10 * time.Minute)},
		{Text: "c", Timestamp: base.Add(5 * time.Hour)},
		{Text: "no ts"},
		{Text: "d", Timestamp: base.Add(6 * time.Hour)},
	}

	got := GapDetector{}.Boundaries(msgs)
	want := []int{2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Boundaries = %v, want %v", got, want)
	}
}

func TestTriggerDetector(t *testing.T) {
	msgs := []parse.Message{
		{Text: "对了, 这个不算, 因为是第一条"},
		{Text: "普通消息"},
		{Text: "对了，我想问另一件事"},
		{Text: "话说回来，之前那个问题"},
	}

	got := TriggerDetector{}.Boundaries(msgs)
	want := []int{2, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Boundaries = %v, want %v", got, want)
	}
}

func TestHeadlineTitler(t *testing.T) {
	msgs := []parse.Message{
		{Role: "assistant", Text: "preamble"},
		{Role: "user", Text: "How do I do this?\nmore detail"},
	}
	if got := (HeadlineTitler{}).Title(msgs); got != "How do I do this?" {
		t.Errorf("Title = %q", got)
	}

	if got := (HeadlineTitler{}).Title(nil); got != "Untitled" {
		t.Errorf("empty Title = %q, want Untitled", got)
	}

	// no user message falls back to the first message
	onlyAssist := []parse.Message{{Role: "assistant", Text: "summary line"}}
	if got := (HeadlineTitler{}).Title(onlyAssist); got != "summary line" {
		t.Errorf("fallback Title = %q", got)
	}
}
