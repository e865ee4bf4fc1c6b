package storage

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"juiceWatch/internal/jsoncodec"
	"juiceWatch/internal/model"
)

// JsonlStorage appends failure records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// AppendFailures appends records as JSON lines.
func (s *JsonlStorage) AppendFailures(_ context.Context, records []model.FailureRecord) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create error log dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		if err := jsoncodec.Encode(writer, record); err != nil {
			return fmt.Errorf("write failure record: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush error log: %w", err)
	}

	return nil
}
