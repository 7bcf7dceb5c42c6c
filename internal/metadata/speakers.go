package metadata

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
)

// LoadSpeakerMap reads a speaker-map CSV: a required "speaker_id,name" header
// followed by one row per diarized speaker index. Malformed rows are logged and
// skipped so one bad edit does not lose the whole map. A missing file yields an
// empty map.
func LoadSpeakerMap(path string) (map[int]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int]string{}, nil
		}
		return nil, fmt.Errorf("open speaker map: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read speaker map header: %w", err)
	}
	if len(header) < 2 || strings.TrimSpace(header[0]) != "speaker_id" || strings.TrimSpace(header[1]) != "name" {
		return nil, fmt.Errorf("speaker map %s: missing speaker_id,name header", path)
	}

	m := make(map[int]string)
	line := 1
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		line++
		if len(record) < 2 {
			log.Printf("[metadata] %s line %d: expected speaker_id,name, skipping", path, line)
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			log.Printf("[metadata] %s line %d: bad speaker id %q, skipping", path, line, record[0])
			continue
		}
		name := strings.TrimSpace(record[1])
		if name == "" {
			log.Printf("[metadata] %s line %d: empty name, skipping", path, line)
			continue
		}
		m[id] = name
	}
	return m, nil
}

// SaveSpeakerMap writes the map atomically with rows sorted by speaker id.
func SaveSpeakerMap(path string, m map[int]string) error {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var b strings.Builder
	b.WriteString("speaker_id,name\n")
	w := csv.NewWriter(&b)
	for _, id := range ids {
		if err := w.Write([]string{strconv.Itoa(id), m[id]}); err != nil {
			return fmt.Errorf("encode speaker map: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode speaker map: %w", err)
	}
	return writeFileAtomic(path, []byte(b.String()))
}
