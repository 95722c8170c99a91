package heartbeat

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Doc is the patrol heartbeat document. The supervisor seeds it right before
// the orchestrator comes up so the first patrol cycle reads a well-formed
// file; afterwards the patrol agent owns it.
type Doc struct {
	Timestamp    string `json:"timestamp"`
	Status       string `json:"status"`
	PatrolActive bool   `json:"patrol_active"`
}

// Seed writes a fresh booting document at path, creating parents as needed.
func Seed(path string) error {
	doc := Doc{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Status:       "booting",
		PatrolActive: false,
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// Read parses the document at path.
func Read(path string) (Doc, error) {
	var doc Doc
	b, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	err = json.Unmarshal(b, &doc)
	return doc, err
}

// Age returns how old the document's timestamp is, when it parses.
func (d Doc) Age(now time.Time) (time.Duration, bool) {
	ts, err := time.Parse(time.RFC3339, d.Timestamp)
	if err != nil {
		return 0, false
	}
	return now.Sub(ts), true
}
