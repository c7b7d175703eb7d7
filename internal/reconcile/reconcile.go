package reconcile

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wenjun-hu/chat-archive/internal/export"
)

// SidecarEntry records one changed field. The sidecar is append-only
// audit output; it is never re-ingested by the pipeline.
type SidecarEntry struct {
	IndexIDBefore string `json:"index_id_before"`
	IndexIDAfter  string `json:"index_id_after"`
	Field         string `json:"field"`
	OldValue      string `json:"old_value"`
	NewValue      string `json:"new_value"`
	Timestamp     string `json:"timestamp"`
}

// SidecarName is the blob name for a reconciliation's audit log.
const SidecarName = "revision_sidecar.jsonl"

// EncodeSidecar renders sidecar entries as JSONL.
func EncodeSidecar(entries []SidecarEntry) []byte {
	var b strings.Builder
	for _, e := range entries {
		line, _ := json.Marshal(e)
		b.Write(line)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

type UnresolvedIndexIDError struct {
	IndexID string
}

func (e *UnresolvedIndexIDError) Error() string {
	return fmt.Sprintf("overlay references unknown index_id %s", e.IndexID)
}

// Failure reports one window's reconciliation error. Other windows in the
// same pass complete independently.
type Failure struct {
	Name string
	Err  error
}

type RevisedDoc struct {
	Name string
	Data []byte
}

type Result struct {
	Docs    []RevisedDoc
	Index   map[string][]byte // revised topic index per conversation
	Sidecar []SidecarEntry
}

// ParseArchive parses each document independently; a malformed document
// fails alone and the rest proceed.
func ParseArchive(files map[string][]byte, order []string) ([]*Doc, []Failure) {
	var docs []*Doc
	var failures []Failure
	for _, name := range order {
		doc, err := ParseDoc(name, files[name])
		if err != nil {
			failures = append(failures, Failure{Name: name, Err: err})
			continue
		}
		docs = append(docs, doc)
	}
	return docs, failures
}

// Reconciler applies an overlay to a parsed archive. Now is injectable for
// deterministic sidecar timestamps; it defaults to time.Now.
type Reconciler struct {
	Now func() time.Time
}

// Apply produces the revised documents, the regenerated topic index, and
// the sidecar. Input docs are never mutated: each revision is a new
// generation. Topics absent from the overlay pass through unchanged and
// leave no sidecar entry.
func (r *Reconciler) Apply(docs []*Doc, ov Overlay) (*Result, error) {
	edits, err := ov.byID()
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool)
	for _, doc := range docs {
		for _, t := range doc.Topics {
			if t.IndexID != "" {
				known[t.IndexID] = true
			}
		}
	}
	for id := range edits {
		if !known[id] {
			return nil, &UnresolvedIndexIDError{IndexID: id}
		}
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	stamp := now().UTC().Format(time.RFC3339)

	res := &Result{Index: make(map[string][]byte)}
	indexRows := make(map[string][]export.IndexRow)

	for _, doc := range docs {
		revised := r.applyDoc(doc, edits, stamp, res)
		if revised == nil {
			continue
		}
		res.Docs = append(res.Docs, RevisedDoc{Name: doc.Name, Data: revised.Render()})
		if revised.Labeled && revised.Conv != "" {
			indexRows[revised.Conv] = append(indexRows[revised.Conv], docIndexRows(revised)...)
		}
	}

	for conv, rows := range indexRows {
		data, err := export.EncodeTopicIndex(rows)
		if err != nil {
			return nil, fmt.Errorf("topic index for %s: %w", conv, err)
		}
		res.Index[export.TopicIndexName(conv)] = data
	}
	return res, nil
}

// applyDoc builds the revised generation of one document. A deleted
// topic's range merges into the preceding surviving topic, or into the
// following one when it had no predecessor, so windows stay gap-free.
// Returns nil when every topic of the document was deleted.
func (r *Reconciler) applyDoc(doc *Doc, edits map[string]Edit, stamp string, res *Result) *Doc {
	revised := &Doc{
		Name:     doc.Name,
		Conv:     doc.Conv,
		Window:   doc.Window,
		FrontRaw: doc.FrontRaw,
		Labeled:  doc.Labeled,
	}

	var pending []Line // lines of deleted topics with no surviving predecessor
	for _, t := range doc.Topics {
		edit, ok := edits[t.IndexID]
		if ok && edit.Deleted {
			res.Sidecar = append(res.Sidecar, SidecarEntry{
				IndexIDBefore: t.IndexID,
				Field:         "deleted",
				OldValue:      t.Title,
				Timestamp:     stamp,
			})
			if n := len(revised.Topics); n > 0 {
				last := &revised.Topics[n-1]
				last.Lines = append(last.Lines, t.Lines...)
			} else {
				pending = append(pending, t.Lines...)
			}
			continue
		}

		nt := Topic{
			IndexID: t.IndexID,
			Title:   t.Title,
			Tags:    append([]string(nil), t.Tags...),
			Lines:   append(append([]Line(nil), pending...), t.Lines...),
		}
		pending = nil

		if ok {
			r.applyFields(&nt, t, edit, stamp, res)
		}
		revised.Topics = append(revised.Topics, nt)
	}

	if len(revised.Topics) == 0 {
		return nil
	}
	return revised
}

func (r *Reconciler) applyFields(nt *Topic, old Topic, edit Edit, stamp string, res *Result) {
	after := old.IndexID
	if edit.NewIndexID != nil && *edit.NewIndexID != old.IndexID {
		after = *edit.NewIndexID
		nt.IndexID = after
		res.Sidecar = append(res.Sidecar, SidecarEntry{
			IndexIDBefore: old.IndexID,
			IndexIDAfter:  after,
			Field:         "index_id",
			OldValue:      old.IndexID,
			NewValue:      after,
			Timestamp:     stamp,
		})
	}
	if edit.Title != nil && *edit.Title != old.Title {
		nt.Title = *edit.Title
		res.Sidecar = append(res.Sidecar, SidecarEntry{
			IndexIDBefore: old.IndexID,
			IndexIDAfter:  after,
			Field:         "title",
			OldValue:      old.Title,
			NewValue:      *edit.Title,
			Timestamp:     stamp,
		})
	}
	if edit.Tags != nil {
		oldTags := strings.Join(old.Tags, " ")
		newTags := strings.Join(*edit.Tags, " ")
		if oldTags != newTags {
			nt.Tags = append([]string(nil), *edit.Tags...)
			res.Sidecar = append(res.Sidecar, SidecarEntry{
				IndexIDBefore: old.IndexID,
				IndexIDAfter:  after,
				Field:         "tags",
				OldValue:      oldTags,
				NewValue:      newTags,
				Timestamp:     stamp,
			})
		}
	}
}

func docIndexRows(doc *Doc) []export.IndexRow {
	var rows []export.IndexRow
	for _, t := range doc.Topics {
		row := export.IndexRow{
			Conv:    doc.Conv,
			Window:  doc.Window,
			IndexID: t.IndexID,
			Title:   t.Title,
			Tags:    t.Tags,
		}
		if len(t.Lines) > 0 && len(t.Lines[0].Anchors) > 0 {
			row.Anchor = t.Lines[0].Anchors[0]
		}
		rows = append(rows, row)
	}
	return rows
}
