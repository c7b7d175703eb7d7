package reconcile

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wenjun-hu/chat-archive/internal/anchor"
	"github.com/wenjun-hu/chat-archive/internal/export"
	"github.com/wenjun-hu/chat-archive/internal/parse"
	"github.com/wenjun-hu/chat-archive/internal/segment"
	"github.com/wenjun-hu/chat-archive/internal/window"
)

// exportFixture runs a real export and returns its blobs, so reconcile
// tests always see the exporter's actual output format.
func exportFixture(t *testing.T) *export.MemWriter {
	t.Helper()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	conv := parse.Conversation{
		ID:    "c",
		Title: "Fixture",
		Messages: []parse.Message{
			{Ordinal: 1, Role: "user", Text: "alpha", Timestamp: base},
			{Ordinal: 2, Role: "assistant", Text: "beta", Timestamp: base.Add(time.Minute)},
			{Ordinal: 3, Role: "user", Text: "gamma", Timestamp: base.Add(2 * time.Minute)},
			{Ordinal: 4, Role: "assistant", Text: "delta", Timestamp: base.Add(3 * time.Minute)},
		},
	}
	win := window.Window{Conv: "c", Key: "2026-03-01", Messages: conv.Messages}
	wts := []export.WindowTopics{{
		Window: win,
		Topics: []segment.Topic{
			{IndexID: "t-one", Title: "One", Lo: 0, Hi: 1},
			{IndexID: "t-two", Title: "Two", Tags: []string{"mid"}, Lo: 1, Hi: 3},
			{IndexID: "t-three", Title: "Three", Lo: 3, Hi: 4},
		},
	}}

	exp, err := export.New(export.Config{
		Grouping:        export.GroupDay,
		AnchorStyle:     anchor.StyleClassic,
		EmitFrontmatter: true,
		EmitTopicIndex:  true,
	})
	if err != nil {
		t.Fatalf("export.New: %v", err)
	}
	w := export.NewMemWriter()
	if _, err := exp.ExportConversation(conv, wts, w); err != nil {
		t.Fatalf("ExportConversation: %v", err)
	}
	return w
}

const fixtureDoc = "by_day/c/2026-03-01.md"

// mdOnly drops the topic index table, the way the archive scanner only
// feeds .md documents into reconciliation.
func mdOnly(w *export.MemWriter) (map[string][]byte, []string) {
	blobs := make(map[string][]byte)
	var order []string
	for _, name := range w.Order {
		if strings.HasSuffix(name, ".md") {
			blobs[name] = w.Blobs[name]
			order = append(order, name)
		}
	}
	return blobs, order
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
}

func TestParseRenderRoundTrip(t *testing.T) {
	w := exportFixture(t)
	data := w.Blobs[fixtureDoc]

	doc, err := ParseDoc(fixtureDoc, data)
	if err != nil {
		t.Fatalf("ParseDoc: %v", err)
	}
	if !doc.Labeled || len(doc.Topics) != 3 {
		t.Fatalf("parsed %d topics, labeled=%v", len(doc.Topics), doc.Labeled)
	}
	if doc.Conv != "c" || doc.Window != "2026-03-01" {
		t.Errorf("frontmatter: conv=%q window=%q", doc.Conv, doc.Window)
	}
	if doc.Topics[1].Title != "Two" || doc.Topics[1].Tags[0] != "mid" {
		t.Errorf("topic 1 = %+v", doc.Topics[1])
	}

	if got := doc.Render(); !bytes.Equal(got, data) {
		t.Errorf("Render not byte-identical:\n--- got ---\n%s\n--- want ---\n%s", got, data)
	}
}

func TestApplyEmptyOverlayIsIdentity(t *testing.T) {
	w := exportFixture(t)
	blobs, order := mdOnly(w)
	docs, failures := ParseArchive(blobs, order)
	if len(failures) != 0 {
		t.Fatalf("failures: %v", failures)
	}

	rec := &Reconciler{Now: fixedNow}
	res, err := rec.Apply(docs, Overlay{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if len(res.Sidecar) != 0 {
		t.Errorf("empty overlay produced %d sidecar entries", len(res.Sidecar))
	}
	for _, d := range res.Docs {
		if !bytes.Equal(d.Data, w.Blobs[d.Name]) {
			t.Errorf("%s not byte-identical after empty overlay", d.Name)
		}
	}
}

func TestApplyFieldEdits(t *testing.T) {
	w := exportFixture(t)
	blobs, order := mdOnly(w)
	docs, _ := ParseArchive(blobs, order)

	title := "Renamed Topic"
	tags := []string{"x", "y"}
	newID := "t-renamed"
	ov := Overlay{Edits: []Edit{
		{IndexID: "t-two", Title: &title, Tags: &tags},
		{IndexID: "t-three", NewIndexID: &newID},
	}}

	rec := &Reconciler{Now: fixedNow}
	res, err := rec.Apply(docs, ov)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	body := string(res.Docs[0].Data)
	if !strings.Contains(body, "## Renamed Topic {#t-two}\n") {
		t.Errorf("title edit missing:\n%s", body)
	}
	if !strings.Contains(body, "tags: #x #y\n") {
		t.Errorf("tags edit missing")
	}
	if !strings.Contains(body, "{#t-renamed}") || strings.Contains(body, "{#t-three}") {
		t.Errorf("rename not applied:\n%s", body)
	}

	// three changed fields, three sidecar entries
	if len(res.Sidecar) != 3 {
		t.Fatalf("got %d sidecar entries, want 3", len(res.Sidecar))
	}
	fields := map[string]bool{}
	for _, e := range res.Sidecar {
		fields[e.Field] = true
		if e.Timestamp != "2026-03-02T12:00:00Z" {
			t.Errorf("sidecar timestamp = %q", e.Timestamp)
		}
	}
	if !fields["title"] || !fields["tags"] || !fields["index_id"] {
		t.Errorf("sidecar fields = %v", fields)
	}

	// regenerated index reflects the edits
	idx, ok := res.Index[export.TopicIndexName("c")]
	if !ok {
		t.Fatalf("missing regenerated index")
	}
	rows, err := export.DecodeTopicIndex(idx)
	if err != nil {
		t.Fatalf("DecodeTopicIndex: %v", err)
	}
	if rows[1].Title != "Renamed Topic" || rows[2].IndexID != "t-renamed" {
		t.Errorf("index rows = %+v", rows)
	}
}

func TestApplyNoOpEditLeavesNoSidecar(t *testing.T) {
	w := exportFixture(t)
	blobs, order := mdOnly(w)
	docs, _ := ParseArchive(blobs, order)

	sameTitle := "Two"
	ov := Overlay{Edits: []Edit{{IndexID: "t-two", Title: &sameTitle}}}

	rec := &Reconciler{Now: fixedNow}
	res, err := rec.Apply(docs, ov)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Sidecar) != 0 {
		t.Errorf("no-op edit produced sidecar entries: %+v", res.Sidecar)
	}
	if !bytes.Equal(res.Docs[0].Data, w.Blobs[fixtureDoc]) {
		t.Errorf("no-op edit changed the document")
	}
}

func TestApplyDeleteMergesIntoPreceding(t *testing.T) {
	w := exportFixture(t)
	blobs, order := mdOnly(w)
	docs, _ := ParseArchive(blobs, order)

	ov := Overlay{Edits: []Edit{{IndexID: "t-two", Deleted: true}}}

	rec := &Reconciler{Now: fixedNow}
	res, err := rec.Apply(docs, ov)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	body := string(res.Docs[0].Data)
	if strings.Contains(body, "{#t-two}") {
		t.Errorf("deleted topic header survived")
	}
	if got := strings.Count(body, "## "); got != 2 {
		t.Errorf("got %d headers, want 2", got)
	}
	// all four message lines survive, absorbed by the preceding topic
	if got := strings.Count(body, "^msg-"); got != 4 {
		t.Errorf("got %d anchored lines, want 4", got)
	}

	reparsed, err := ParseDoc(fixtureDoc, res.Docs[0].Data)
	if err != nil {
		t.Fatalf("reparse revised doc: %v", err)
	}
	if len(reparsed.Topics[0].Lines) != 3 {
		t.Errorf("first topic has %d lines, want 3 (own 1 + absorbed 2)", len(reparsed.Topics[0].Lines))
	}

	if len(res.Sidecar) != 1 || res.Sidecar[0].Field != "deleted" {
		t.Errorf("sidecar = %+v", res.Sidecar)
	}
}

func TestApplyDeleteFirstMergesForward(t *testing.T) {
	w := exportFixture(t)
	blobs, order := mdOnly(w)
	docs, _ := ParseArchive(blobs, order)

	ov := Overlay{Edits: []Edit{{IndexID: "t-one", Deleted: true}}}

	rec := &Reconciler{Now: fixedNow}
	res, err := rec.Apply(docs, ov)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	reparsed, err := ParseDoc(fixtureDoc, res.Docs[0].Data)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(reparsed.Topics) != 2 {
		t.Fatalf("got %d topics, want 2", len(reparsed.Topics))
	}
	// first surviving topic absorbed the orphaned leading lines
	if reparsed.Topics[0].IndexID != "t-two" || len(reparsed.Topics[0].Lines) != 3 {
		t.Errorf("forward merge failed: %+v", reparsed.Topics[0])
	}
}

func TestApplyUnresolvedIndexID(t *testing.T) {
	w := exportFixture(t)
	blobs, order := mdOnly(w)
	docs, _ := ParseArchive(blobs, order)

	ov := Overlay{Edits: []Edit{{IndexID: "t-nope", Deleted: true}}}
	rec := &Reconciler{Now: fixedNow}
	_, err := rec.Apply(docs, ov)

	var ue *UnresolvedIndexIDError
	if !errors.As(err, &ue) || ue.IndexID != "t-nope" {
		t.Errorf("got %v, want UnresolvedIndexIDError for t-nope", err)
	}
}

func TestParseDocRejectsOutOfOrderAnchors(t *testing.T) {
	doc := "## A {#t-1}\n\n" +
		"[2026-03-01 09:00:00] user: a ^msg-000002\n" +
		"[2026-03-01 09:01:00] user: b ^msg-000001\n"

	_, err := ParseDoc("bad.md", []byte(doc))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want ParseError", err)
	}
	if !strings.Contains(pe.Reason, "out of order") {
		t.Errorf("reason = %q", pe.Reason)
	}
}

func TestParseDocFailuresAreIsolated(t *testing.T) {
	w := exportFixture(t)
	blobs := map[string][]byte{
		fixtureDoc: w.Blobs[fixtureDoc],
		"bad.md":   []byte("not a document\n"),
	}
	order := []string{fixtureDoc, "bad.md"}

	docs, failures := ParseArchive(blobs, order)
	if len(docs) != 1 || len(failures) != 1 {
		t.Fatalf("docs=%d failures=%d, want 1 and 1", len(docs), len(failures))
	}
	if failures[0].Name != "bad.md" {
		t.Errorf("failure name = %q", failures[0].Name)
	}
}

func TestOverlayRoundTrip(t *testing.T) {
	title := "New"
	ov := Overlay{Edits: []Edit{
		{IndexID: "t-1", Title: &title},
		{IndexID: "t-2", Deleted: true},
	}}

	data, err := EncodeOverlay(ov)
	if err != nil {
		t.Fatalf("EncodeOverlay: %v", err)
	}
	got, err := LoadOverlay(data)
	if err != nil {
		t.Fatalf("LoadOverlay: %v", err)
	}
	if len(got.Edits) != 2 {
		t.Fatalf("got %d edits, want 2", len(got.Edits))
	}
	if got.Edits[0].Title == nil || *got.Edits[0].Title != "New" {
		t.Errorf("title lost in round trip: %+v", got.Edits[0])
	}
	if !got.Edits[1].Deleted {
		t.Errorf("deleted flag lost in round trip")
	}
}

func TestLoadOverlayRejectsMissingID(t *testing.T) {
	if _, err := LoadOverlay([]byte("[[edit]]\ntitle = \"x\"\n")); err == nil {
		t.Errorf("overlay without index_id accepted")
	}
}

func TestApplyDuplicateEditRejected(t *testing.T) {
	w := exportFixture(t)
	blobs, order := mdOnly(w)
	docs, _ := ParseArchive(blobs, order)

	ov := Overlay{Edits: []Edit{
		{IndexID: "t-one", Deleted: true},
		{IndexID: "t-one", Deleted: true},
	}}
	rec := &Reconciler{Now: fixedNow}
	if _, err := rec.Apply(docs, ov); err == nil {
		t.Errorf("duplicate edits accepted")
	}
}
