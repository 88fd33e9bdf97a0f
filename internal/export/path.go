// Package export writes traces to CSV, Parquet and PNG heatmaps. No exporter
// overwrites an existing file: a taken name gains a " (n)" suffix.
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// maxSuffix bounds the search for a free name.
const maxSuffix = 10000

// UniquePath returns base+ext if no such file exists, otherwise the first
// free "base (n)"+ext. Missing parent directories are created.
func UniquePath(base, ext string) (string, error) {
	if dir := filepath.Dir(base); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create export dir: %w", err)
		}
	}
	p := base + ext
	for n := 1; n <= maxSuffix; n++ {
		_, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
		p = fmt.Sprintf("%s (%d)%s", base, n, ext)
	}
	return "", fmt.Errorf("no free name for %s%s", base, ext)
}

// create opens a fresh file at the unique path, failing if it appeared
// in the meantime.
func create(base, ext string) (*os.File, string, error) {
	p, err := UniquePath(base, ext)
	if err != nil {
		return nil, "", err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("create %s: %w", p, err)
	}
	return f, p, nil
}
