package catalog

import (
	"fmt"
	"os"
	"strings"

	"github.com/wenjun-hu/chat-archive/internal/reconcile"
	"github.com/wenjun-hu/chat-archive/internal/scan"
)

type Stats struct {
	Scanned int
	Updated int
	Skipped int
	Pruned  int
	Errors  int
}

func (s Stats) String() string {
	return fmt.Sprintf("scanned=%d updated=%d skipped=%d pruned=%d errors=%d",
		s.Scanned, s.Updated, s.Skipped, s.Pruned, s.Errors)
}

// IndexArchive scans an archive root and brings the catalog up to date.
// Unchanged documents (same mtime and size) are skipped; documents whose
// files disappeared are pruned.
func IndexArchive(db *DB, root string) (Stats, error) {
	var stats Stats

	files, err := scan.ScanArchive(root)
	if err != nil {
		return stats, fmt.Errorf("scan: %w", err)
	}
	stats.Scanned = len(files)

	seen := make(map[string]struct{})
	for _, fi := range files {
		seen[fi.Name] = struct{}{}

		needs, err := needsUpdate(db, fi)
		if err != nil {
			stats.Errors++
			continue
		}
		if !needs {
			stats.Skipped++
			continue
		}

		data, err := os.ReadFile(fi.Path)
		if err != nil {
			stats.Errors++
			fmt.Fprintf(os.Stderr, "  WARN: read %s: %v\n", fi.Path, err)
			continue
		}
		doc, err := reconcile.ParseDoc(fi.Name, data)
		if err != nil {
			stats.Errors++
			fmt.Fprintf(os.Stderr, "  WARN: parse %s: %v\n", fi.Path, err)
			continue
		}

		if err := indexDoc(db, doc, fi); err != nil {
			stats.Errors++
			fmt.Fprintf(os.Stderr, "  WARN: index %s: %v\n", fi.Path, err)
			continue
		}
		stats.Updated++
	}

	pruned, err := pruneDocs(db, seen)
	if err != nil {
		return stats, fmt.Errorf("prune: %w", err)
	}
	stats.Pruned = pruned

	return stats, nil
}

func needsUpdate(db *DB, fi scan.FileInfo) (bool, error) {
	info, err := db.GetDocInfo(fi.Name)
	if err != nil {
		return false, err
	}
	if info == nil {
		return true, nil // new document
	}
	return info.Mtime != fi.Mtime || info.Size != fi.Size, nil
}

func indexDoc(db *DB, doc *reconcile.Doc, fi scan.FileInfo) error {
	// delete old rows first
	if err := db.DeleteDoc(doc.Name); err != nil {
		return err
	}

	tx, err := db.Raw().Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	messages := 0
	for _, t := range doc.Topics {
		messages += len(t.Lines)
	}
	labeled := 0
	topicCount := 0
	if doc.Labeled {
		labeled = 1
		topicCount = len(doc.Topics)
	}

	_, err = tx.Exec(
		`INSERT INTO docs (name, conv, window, labeled, mtime, size, topic_count, message_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.Name, doc.Conv, doc.Window, labeled, fi.Mtime, fi.Size, topicCount, messages,
	)
	if err != nil {
		return err
	}

	topicStmt, err := tx.Prepare(
		`INSERT INTO topics (doc_name, position, index_id, title, tags, first_seq) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer topicStmt.Close()

	msgStmt, err := tx.Prepare(
		`INSERT INTO messages (doc_name, seq, ts, role, text, anchor) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer msgStmt.Close()

	seq := 0
	for pos, t := range doc.Topics {
		if doc.Labeled {
			if _, err := topicStmt.Exec(doc.Name, pos, t.IndexID, t.Title, strings.Join(t.Tags, " "), seq); err != nil {
				return err
			}
		}
		for _, ln := range t.Lines {
			ts, role, text := ln.Fields()
			anchor := ""
			if len(ln.Anchors) > 0 {
				anchor = ln.Anchors[0]
			}
			if _, err := msgStmt.Exec(doc.Name, seq, ts, role, text, anchor); err != nil {
				return err
			}
			seq++
		}
	}

	return tx.Commit()
}

func pruneDocs(db *DB, seen map[string]struct{}) (int, error) {
	all, err := db.AllDocNames()
	if err != nil {
		return 0, err
	}

	pruned := 0
	for name := range all {
		if _, ok := seen[name]; !ok {
			if err := db.DeleteDoc(name); err != nil {
				return pruned, err
			}
			pruned++
		}
	}
	return pruned, nil
}
