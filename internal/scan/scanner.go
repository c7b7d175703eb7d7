package scan

import (
	"os"
	"path/filepath"
	"strings"
)

type FileInfo struct {
	Path  string
	Name  string // archive-relative, slash-separated
	Mtime int64
	Size  int64
}

// ScanArchive walks an archive root and returns its window documents.
// Topic maps, sidecars, and overlay files are not documents and are
// skipped.
func ScanArchive(root string) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable dirs
		}
		if info.IsDir() {
			if filepath.Base(path) == "revised" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".md" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		files = append(files, FileInfo{
			Path:  path,
			Name:  filepath.ToSlash(rel),
			Mtime: info.ModTime().Unix(),
			Size:  info.Size(),
		})
		return nil
	})
	if err != nil && os.IsNotExist(err) {
		return nil, nil
	}
	return files, err
}

// ReadArchive materializes the scanned documents into named blobs.
func ReadArchive(files []FileInfo) (map[string][]byte, []string, error) {
	blobs := make(map[string][]byte, len(files))
	order := make([]string, 0, len(files))
	for _, fi := range files {
		data, err := os.ReadFile(fi.Path)
		if err != nil {
			return nil, nil, err
		}
		blobs[fi.Name] = data
		order = append(order, fi.Name)
	}
	return blobs, order, nil
}

// IsTopicMap reports whether a file name looks like an exported topic
// index table.
func IsTopicMap(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, "topic_map_") && strings.HasSuffix(base, ".csv")
}
