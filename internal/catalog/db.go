// Package catalog maintains a sqlite full-text index over exported
// archive documents, so past exports stay searchable without re-running
// the pipeline.
package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA cache_size = -64000;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS docs (
    name          TEXT PRIMARY KEY,
    conv          TEXT NOT NULL DEFAULT '',
    window        TEXT NOT NULL DEFAULT '',
    labeled       INTEGER NOT NULL DEFAULT 0,
    mtime         INTEGER NOT NULL DEFAULT 0,
    size          INTEGER NOT NULL DEFAULT 0,
    topic_count   INTEGER NOT NULL DEFAULT 0,
    message_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS topics (
    doc_name  TEXT NOT NULL,
    position  INTEGER NOT NULL,
    index_id  TEXT NOT NULL DEFAULT '',
    title     TEXT NOT NULL DEFAULT '',
    tags      TEXT NOT NULL DEFAULT '',
    first_seq INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (doc_name, position)
);

CREATE TABLE IF NOT EXISTS messages (
    doc_name TEXT NOT NULL,
    seq      INTEGER NOT NULL,
    ts       TEXT NOT NULL DEFAULT '',
    role     TEXT NOT NULL DEFAULT '',
    text     TEXT NOT NULL,
    anchor   TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (doc_name, seq)
);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    text,
    content=messages,
    content_rowid=rowid,
    tokenize='unicode61'
);

-- triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, text) VALUES('delete', old.rowid, old.text);
END;

CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, text) VALUES('delete', old.rowid, old.text);
    INSERT INTO messages_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);
`

// schemaVersion should be bumped whenever document parsing changes, to
// force a full re-index.
const schemaVersion = "1"

type DB struct {
	db *sql.DB
}

func OpenDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	d := &DB{db: db}
	d.migrateSchemaVersion()
	return d, nil
}

func (d *DB) migrateSchemaVersion() {
	var ver string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&ver)
	if err != nil || ver != schemaVersion {
		// force re-index by resetting all doc mtime/size to 0
		d.db.Exec("UPDATE docs SET mtime = 0, size = 0")
		d.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion)
	}
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Raw() *sql.DB {
	return d.db
}

type DocInfo struct {
	Mtime int64
	Size  int64
}

func (d *DB) GetDocInfo(name string) (*DocInfo, error) {
	var info DocInfo
	err := d.db.QueryRow("SELECT mtime, size FROM docs WHERE name = ?", name).
		Scan(&info.Mtime, &info.Size)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (d *DB) AllDocNames() (map[string]struct{}, error) {
	rows, err := d.db.Query("SELECT name FROM docs")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names[n] = struct{}{}
	}
	return names, rows.Err()
}

func (d *DB) DeleteDoc(name string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"messages", "topics", "docs"} {
		col := "doc_name"
		if table == "docs" {
			col = "name"
		}
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, col), name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) DocCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM docs").Scan(&n)
	return n, err
}

func (d *DB) TopicCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM topics").Scan(&n)
	return n, err
}

func (d *DB) MessageCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&n)
	return n, err
}

type DocRow struct {
	Name         string
	Conv         string
	Window       string
	Labeled      bool
	TopicCount   int
	MessageCount int
}

func (d *DB) GetDocByName(name string) (*DocRow, error) {
	var r DocRow
	err := d.db.QueryRow(
		"SELECT name, conv, window, labeled, topic_count, message_count FROM docs WHERE name = ?",
		name,
	).Scan(&r.Name, &r.Conv, &r.Window, &r.Labeled, &r.TopicCount, &r.MessageCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (d *DB) ListDocs() ([]DocRow, error) {
	rows, err := d.db.Query(
		"SELECT name, conv, window, labeled, topic_count, message_count FROM docs ORDER BY conv, window",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DocRow
	for rows.Next() {
		var r DocRow
		if err := rows.Scan(&r.Name, &r.Conv, &r.Window, &r.Labeled, &r.TopicCount, &r.MessageCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type TopicRow struct {
	DocName  string
	Position int
	IndexID  string
	Title    string
	Tags     string
	FirstSeq int
}

func (d *DB) GetTopics(docName string) ([]TopicRow, error) {
	rows, err := d.db.Query(
		"SELECT doc_name, position, index_id, title, tags, first_seq FROM topics WHERE doc_name = ? ORDER BY position",
		docName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopicRow
	for rows.Next() {
		var t TopicRow
		if err := rows.Scan(&t.DocName, &t.Position, &t.IndexID, &t.Title, &t.Tags, &t.FirstSeq); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type MessageRow struct {
	DocName string
	Seq     int
	Ts      string
	Role    string
	Text    string
	Anchor  string
}

func (d *DB) GetMessages(docName string) ([]MessageRow, error) {
	rows, err := d.db.Query(
		"SELECT doc_name, seq, ts, role, text, anchor FROM messages WHERE doc_name = ? ORDER BY seq",
		docName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MessageRow
	for rows.Next() {
		var m MessageRow
		if err := rows.Scan(&m.DocName, &m.Seq, &m.Ts, &m.Role, &m.Text, &m.Anchor); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
