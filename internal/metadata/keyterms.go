// Package metadata persists per-identity keyterm lists and speaker maps as
// human-editable CSV files.
package metadata

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MergeMode selects what a keyterm regeneration does with existing terms.
type MergeMode string

const (
	// MergePreserve keeps every existing term and appends new ones
	// (case-insensitive union, existing order first).
	MergePreserve MergeMode = "preserve"
	// MergeOverwrite replaces the stored list entirely.
	MergeOverwrite MergeMode = "overwrite"
)

// LoadKeyterms reads a keyterm file: one UTF-8 term per line, '#' lines are
// comments, blank lines ignored, whitespace trimmed. Order is preserved and
// duplicates are kept as-is. A missing file yields an empty list, not an error.
func LoadKeyterms(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open keyterms: %w", err)
	}
	defer f.Close()

	var terms []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read keyterms: %w", err)
	}
	return terms, nil
}

// SaveKeyterms writes the list atomically (temp file + rename) so a crash can
// never leave a half-written file behind. Containing directories are created.
func SaveKeyterms(path string, terms []string) error {
	var b strings.Builder
	b.WriteString("# Keyterms for Deepgram transcription accuracy\n")
	b.WriteString("# One term per line. Lines starting with # are ignored.\n")
	for _, term := range terms {
		b.WriteString(term)
		b.WriteByte('\n')
	}
	return writeFileAtomic(path, []byte(b.String()))
}

// MergeKeyterms applies the caller-selected regeneration policy.
func MergeKeyterms(existing, generated []string, mode MergeMode) []string {
	if mode == MergeOverwrite {
		return generated
	}
	merged := make([]string, 0, len(existing)+len(generated))
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		merged = append(merged, t)
		seen[strings.ToLower(t)] = true
	}
	for _, t := range generated {
		if !seen[strings.ToLower(t)] {
			merged = append(merged, t)
			seen[strings.ToLower(t)] = true
		}
	}
	return merged
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
