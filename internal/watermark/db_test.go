package watermark

import (
	"context"
	"errors"
	"testing"
	"time"

	"juiceWatch/internal/model"
)

type fakeBackend struct {
	loaded  map[string]int64
	saved   map[string]int64
	saveErr error
}

func (f *fakeBackend) LoadWatermarks(context.Context) (map[string]int64, error) {
	return f.loaded, nil
}

func (f *fakeBackend) SaveWatermarks(_ context.Context, marks map[string]int64) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = marks
	return nil
}

func TestDBStoreSeedsAndSaves(t *testing.T) {
	backend := &fakeBackend{loaded: map[string]int64{model.StreamPayEvents: 5}}
	s := NewDBStore(backend, testStreams)
	s.now = func() time.Time { return time.Unix(77, 0) }

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got[model.StreamPayEvents] != 5 || got[model.StreamProjectCreateEvents] != 77 {
		t.Fatalf("unexpected watermarks: %+v", got)
	}

	if err := s.Save(context.Background(), got); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if backend.saved[model.StreamProjectCreateEvents] != 77 {
		t.Fatalf("save not forwarded: %+v", backend.saved)
	}
}

func TestDBStoreSaveError(t *testing.T) {
	backend := &fakeBackend{saveErr: errors.New("conn reset")}
	err := NewDBStore(backend, testStreams).Save(context.Background(), map[string]int64{})
	if !errors.Is(err, backend.saveErr) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
}
