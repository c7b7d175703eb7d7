package search

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/wenjun-hu/chat-archive/internal/catalog"
)

type Result struct {
	DocName string
	Seq     int
	Conv    string
	Window  string
	Anchor  string
	Role    string
	Snippet string
	Rank    float64
}

type Options struct {
	Query string
	Conv  string // "" = all
	Role  string // "" = all, "user", "assistant"
	Limit int
}

// containsCJK returns true if the string contains any CJK Unified Ideograph.
func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// makeSnippet extracts a snippet around the first occurrence of query in text.
func makeSnippet(text, query string, contextChars int) string {
	lower := strings.ToLower(text)
	qLower := strings.ToLower(query)
	idx := strings.Index(lower, qLower)
	if idx < 0 {
		if len([]rune(text)) > contextChars*2 {
			return string([]rune(text)[:contextChars*2]) + "..."
		}
		return text
	}
	runes := []rune(text)
	qRunes := []rune(query)
	runePos := len([]rune(text[:idx]))
	start := runePos - contextChars
	if start < 0 {
		start = 0
	}
	end := runePos + len(qRunes) + contextChars
	if end > len(runes) {
		end = len(runes)
	}
	prefix := ""
	suffix := ""
	if start > 0 {
		prefix = "..."
	}
	if end < len(runes) {
		suffix = "..."
	}
	snippet := string(runes[start:runePos]) +
		">>>" + string(runes[runePos:runePos+len(qRunes)]) + "<<<" +
		string(runes[runePos+len(qRunes):end])
	return prefix + snippet + suffix
}

// Search queries the catalog. FTS5 handles most queries; CJK queries fall
// back to LIKE substring matching since unicode61 does not segment Han
// text. Results are deduplicated to the best hit per document.
func Search(db *catalog.DB, opts Options) ([]Result, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	// fetch more results before dedup so we still have enough after
	origLimit := opts.Limit
	opts.Limit = origLimit * 3

	var results []Result
	var err error
	if containsCJK(opts.Query) {
		results, err = searchLike(db, opts)
	} else {
		results, err = searchFTS(db, opts)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var deduped []Result
	for _, r := range results {
		if seen[r.DocName] {
			continue
		}
		seen[r.DocName] = true
		deduped = append(deduped, r)
		if len(deduped) >= origLimit {
			break
		}
	}
	return deduped, nil
}

func filters(opts Options, conds []string, args []interface{}) ([]string, []interface{}) {
	if opts.Conv != "" {
		conds = append(conds, "d.conv = ?")
		args = append(args, opts.Conv)
	}
	if opts.Role != "" {
		conds = append(conds, "m.role = ?")
		args = append(args, opts.Role)
	}
	return conds, args
}

func searchFTS(db *catalog.DB, opts Options) ([]Result, error) {
	conds := []string{"messages_fts MATCH ?"}
	args := []interface{}{opts.Query}
	conds, args = filters(opts, conds, args)

	query := fmt.Sprintf(`
		SELECT
			m.doc_name,
			m.seq,
			d.conv,
			d.window,
			m.anchor,
			m.role,
			snippet(messages_fts, 0, '>>>', '<<<', '...', 40) as snip,
			bm25(messages_fts, 1.0) as rank
		FROM messages_fts
		JOIN messages m ON messages_fts.rowid = m.rowid
		JOIN docs d ON m.doc_name = d.name
		WHERE %s
		ORDER BY rank
		LIMIT ?
	`, strings.Join(conds, " AND "))

	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.DocName, &r.Seq, &r.Conv, &r.Window, &r.Anchor, &r.Role, &r.Snippet, &r.Rank); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func searchLike(db *catalog.DB, opts Options) ([]Result, error) {
	conds := []string{"m.text LIKE ?"}
	args := []interface{}{"%" + opts.Query + "%"}
	conds, args = filters(opts, conds, args)

	query := fmt.Sprintf(`
		SELECT m.doc_name, m.seq, d.conv, d.window, m.anchor, m.role, m.text
		FROM messages m
		JOIN docs d ON m.doc_name = d.name
		WHERE %s
		ORDER BY m.doc_name, m.seq
		LIMIT ?
	`, strings.Join(conds, " AND "))

	args = append(args, opts.Limit)

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var fullText string
		if err := rows.Scan(&r.DocName, &r.Seq, &r.Conv, &r.Window, &r.Anchor, &r.Role, &fullText); err != nil {
			return nil, err
		}
		r.Snippet = makeSnippet(fullText, opts.Query, 30)
		results = append(results, r)
	}
	return results, rows.Err()
}

func scanPlain(rows *sql.Rows) ([]Result, error) {
	var results []Result
	for rows.Next() {
		var r Result
		var text string
		if err := rows.Scan(&r.DocName, &r.Seq, &r.Conv, &r.Window, &r.Anchor, &r.Role, &text); err != nil {
			return nil, err
		}
		r.Snippet = text
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListAll returns the first message of every cataloged document, newest
// window first, for browsing without a query.
func ListAll(db *catalog.DB, opts Options) ([]Result, error) {
	conds := []string{"m.seq = 0"}
	var args []interface{}
	conds, args = filters(opts, conds, args)

	query := fmt.Sprintf(`
		SELECT m.doc_name, m.seq, d.conv, d.window, m.anchor, m.role, m.text
		FROM messages m
		JOIN docs d ON m.doc_name = d.name
		WHERE %s
		ORDER BY d.window DESC, d.conv
	`, strings.Join(conds, " AND "))

	rows, err := db.Raw().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	return scanPlain(rows)
}
