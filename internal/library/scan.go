package library

import (
	"os"
	"path/filepath"
	"strings"
)

// ScanResult is one video found without captions.
type ScanResult struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Scan walks root looking for video files that have no .srt sibling yet.
// Hidden files and directories are skipped. maxResults caps the walk so a huge
// library cannot stall the API; pass 0 for the default of 500.
func Scan(root string, maxResults int) ([]ScanResult, error) {
	if maxResults <= 0 {
		maxResults = 500
	}
	var results []ScanResult

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if len(results) >= maxResults {
			return filepath.SkipAll
		}
		if strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !IsVideo(path) {
			return nil
		}
		srt := strings.TrimSuffix(path, filepath.Ext(path)) + ".srt"
		if _, err := os.Stat(srt); err == nil {
			return nil
		}
		results = append(results, ScanResult{Path: path, Size: info.Size()})
		return nil
	})
	return results, err
}

// WithinRoot reports whether path resolves to a location under root. Used to
// confine API-supplied paths to the media tree.
func WithinRoot(root, path string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
