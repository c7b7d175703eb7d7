package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wenjun-hu/chat-archive/internal/anchor"
	"github.com/wenjun-hu/chat-archive/internal/export"
	"github.com/wenjun-hu/chat-archive/internal/parse"
	"github.com/wenjun-hu/chat-archive/internal/segment"
	"github.com/wenjun-hu/chat-archive/internal/window"
)

// writeFixtureArchive exports one small conversation into root.
func writeFixtureArchive(t *testing.T, root string) {
	t.Helper()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	conv := parse.Conversation{
		ID:    "c",
		Title: "Fixture",
		Messages: []parse.Message{
			{Ordinal: 1, Role: "user", Text: "alpha question", Timestamp: base},
			{Ordinal: 2, Role: "assistant", Text: "beta answer", Timestamp: base.Add(time.Minute)},
			{Ordinal: 3, Role: "user", Text: "gamma 对了新话题", Timestamp: base.Add(2 * time.Minute)},
		},
	}
	win := window.Window{Conv: "c", Key: "2026-03-01", Messages: conv.Messages}
	wts := []export.WindowTopics{{
		Window: win,
		Topics: []segment.Topic{
			{IndexID: "t-one", Title: "One", Lo: 0, Hi: 2},
			{IndexID: "t-two", Title: "Two", Tags: []string{"cn"}, Lo: 2, Hi: 3},
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
	if _, err := exp.ExportConversation(conv, wts, export.DirWriter{Root: root}); err != nil {
		t.Fatalf("ExportConversation: %v", err)
	}
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIndexArchive(t *testing.T) {
	root := t.TempDir()
	writeFixtureArchive(t, root)
	db := openTestDB(t)

	stats, err := IndexArchive(db, root)
	if err != nil {
		t.Fatalf("IndexArchive: %v", err)
	}
	if stats.Scanned != 1 || stats.Updated != 1 || stats.Errors != 0 {
		t.Errorf("stats = %+v", stats)
	}

	docCount, _ := db.DocCount()
	topicCount, _ := db.TopicCount()
	msgCount, _ := db.MessageCount()
	if docCount != 1 || topicCount != 2 || msgCount != 3 {
		t.Errorf("counts = %d docs, %d topics, %d messages", docCount, topicCount, msgCount)
	}

	docName := "by_day/c/2026-03-01.md"
	doc, err := db.GetDocByName(docName)
	if err != nil || doc == nil {
		t.Fatalf("GetDocByName: %v, %v", doc, err)
	}
	if doc.Conv != "c" || doc.Window != "2026-03-01" || !doc.Labeled {
		t.Errorf("doc row = %+v", doc)
	}

	topics, err := db.GetTopics(docName)
	if err != nil {
		t.Fatalf("GetTopics: %v", err)
	}
	if len(topics) != 2 || topics[0].FirstSeq != 0 || topics[1].FirstSeq != 2 {
		t.Errorf("topics = %+v", topics)
	}

	msgs, err := db.GetMessages(docName)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].Text != "alpha question" || msgs[0].Anchor != "^msg-000001" {
		t.Errorf("message 0 = %+v", msgs[0])
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Errorf("roles = %q, %q", msgs[0].Role, msgs[1].Role)
	}
}

func TestIndexArchiveSkipsUnchanged(t *testing.T) {
	root := t.TempDir()
	writeFixtureArchive(t, root)
	db := openTestDB(t)

	if _, err := IndexArchive(db, root); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	stats, err := IndexArchive(db, root)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if stats.Skipped != 1 || stats.Updated != 0 {
		t.Errorf("second pass stats = %+v", stats)
	}
}

func TestIndexArchivePrunesDeletedDocs(t *testing.T) {
	root := t.TempDir()
	writeFixtureArchive(t, root)
	db := openTestDB(t)

	if _, err := IndexArchive(db, root); err != nil {
		t.Fatalf("index: %v", err)
	}

	if err := os.RemoveAll(filepath.Join(root, "by_day")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	stats, err := IndexArchive(db, root)
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if stats.Pruned != 1 {
		t.Errorf("stats = %+v, want 1 pruned", stats)
	}
	if n, _ := db.DocCount(); n != 0 {
		t.Errorf("doc count after prune = %d", n)
	}
}
