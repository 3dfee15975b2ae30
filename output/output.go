// Package output writes generated HTML without ever replacing an existing file.
package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Ext is the extension of every written file.
const Ext = ".html"

// maxAttempts bounds the suffix search so a broken file system cannot spin forever.
const maxAttempts = 100000

// Candidate returns the path tried for the n-th attempt: base.html, base_1.html, …
func Candidate(dir, base string, n int) string {
	if n == 0 {
		return filepath.Join(dir, base+Ext)
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, n, Ext))
}

// Write creates dir when missing and writes content as UTF-8 to the first
// free candidate path. Files are created exclusively, so a path taken between
// the check and the write is skipped rather than overwritten.
func Write(dir, base, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	for n := 0; n < maxAttempts; n++ {
		path := Candidate(dir, base, n)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", path, err)
		}
		if _, err := f.WriteString(content); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free file name for %s in %s", base, dir)
}
