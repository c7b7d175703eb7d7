package export

import (
	"os"
	"path/filepath"
)

// Writer is the boundary to the external container/storage layer: the
// pipeline hands it fully materialized named blobs and knows nothing about
// where they land.
type Writer interface {
	WriteBlob(name string, data []byte) error
}

// DirWriter writes blobs as files under a root directory.
type DirWriter struct {
	Root string
}

func (d DirWriter) WriteBlob(name string, data []byte) error {
	path := filepath.Join(d.Root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// MemWriter collects blobs in memory, for tests and dry runs.
type MemWriter struct {
	Blobs map[string][]byte
	Order []string
}

func NewMemWriter() *MemWriter {
	return &MemWriter{Blobs: make(map[string][]byte)}
}

func (m *MemWriter) WriteBlob(name string, data []byte) error {
	if _, ok := m.Blobs[name]; !ok {
		m.Order = append(m.Order, name)
	}
	m.Blobs[name] = append([]byte(nil), data...)
	return nil
}
