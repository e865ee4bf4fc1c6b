package watermark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"juiceWatch/internal/jsoncodec"
	"juiceWatch/internal/model"
)

// FileStore keeps watermarks in a single local JSON file.
type FileStore struct {
	path    string
	streams []string
	now     func() time.Time
}

type fileRecord struct {
	Watermarks map[string]int64 `json:"watermarks"`
	UpdatedAt  string           `json:"updated_at,omitempty"`

	// Flat keys written by earlier releases.
	LastPayEventTime           *int64 `json:"lastPayEventTime,omitempty"`
	LastProjectCreateEventTime *int64 `json:"lastProjectCreateEventTime,omitempty"`
}

func NewFileStore(path string, streams []string) *FileStore {
	return &FileStore{path: path, streams: streams, now: time.Now}
}

func (s *FileStore) Load(_ context.Context) (map[string]int64, error) {
	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Seed(nil, s.streams, s.now()), nil
		}
		return nil, fmt.Errorf("stat state: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("state path is a directory")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	var rec fileRecord
	if err := jsoncodec.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}

	marks := make(map[string]int64, len(rec.Watermarks)+2)
	if rec.LastPayEventTime != nil {
		marks[model.StreamPayEvents] = *rec.LastPayEventTime
	}
	if rec.LastProjectCreateEventTime != nil {
		marks[model.StreamProjectCreateEvents] = *rec.LastProjectCreateEventTime
	}
	for stream, ts := range rec.Watermarks {
		marks[stream] = ts
	}

	return Seed(marks, s.streams, s.now()), nil
}

// Save writes to a temp file in the target directory, syncs it, and renames
// it over the previous state so readers never observe a partial write.
func (s *FileStore) Save(_ context.Context, marks map[string]int64) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	rec := fileRecord{
		Watermarks: marks,
		UpdatedAt:  s.now().UTC().Format(time.RFC3339Nano),
	}
	data, err := jsoncodec.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create state tmp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync state tmp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state tmp: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod state tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}

	return nil
}
