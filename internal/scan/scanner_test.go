package scan

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanArchive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "by_day/c/2026-03-01.md", "doc\n")
	writeFile(t, root, "by_day/c/2026-03-02.md", "doc\n")
	writeFile(t, root, "topic_map_c.csv", "conv,window\n")
	writeFile(t, root, "revised/by_day/c/2026-03-01.md", "revised doc\n")

	files, err := ScanArchive(root)
	if err != nil {
		t.Fatalf("ScanArchive: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2 (csv and revised/ skipped): %+v", len(files), files)
	}
	for _, f := range files {
		if filepath.IsAbs(f.Name) {
			t.Errorf("Name should be relative: %q", f.Name)
		}
		if f.Size == 0 || f.Mtime == 0 {
			t.Errorf("missing stat info: %+v", f)
		}
	}

	blobs, order, err := ReadArchive(files)
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if len(blobs) != 2 || len(order) != 2 {
		t.Fatalf("blobs=%d order=%d", len(blobs), len(order))
	}
	if string(blobs["by_day/c/2026-03-01.md"]) != "doc\n" {
		t.Errorf("blob content = %q", blobs["by_day/c/2026-03-01.md"])
	}
}

func TestScanArchiveMissingRoot(t *testing.T) {
	files, err := ScanArchive(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("missing root should not error, got %v", err)
	}
	if len(files) != 0 {
		t.Errorf("got %d files from missing root", len(files))
	}
}

func TestIsTopicMap(t *testing.T) {
	if !IsTopicMap("topic_map_c.csv") || !IsTopicMap("sub/topic_map_c.csv") {
		t.Errorf("topic map not recognized")
	}
	if IsTopicMap("by_day/c/2026-03-01.md") {
		t.Errorf("document misidentified as topic map")
	}
}
