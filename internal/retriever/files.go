package retriever

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IsTextFile reports whether name has a .txt extension, ignoring case.
func IsTextFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".txt")
}

// ListTextFiles returns the .txt regular files directly inside dir, sorted by name.
func ListTextFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !IsTextFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}
