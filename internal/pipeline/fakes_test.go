package pipeline

import (
	"context"
	"errors"
	"sync"

	"juiceWatch/internal/model"
)

type fakeSource struct {
	name   string
	events []model.Event
	err    error

	mu     sync.Mutex
	sinces []int64
}

func (s *fakeSource) Name() string { return s.name }

// FetchSince mirrors the subgraph's timestamp_gt filter.
func (s *fakeSource) FetchSince(_ context.Context, since int64) ([]model.Event, error) {
	s.mu.Lock()
	s.sinces = append(s.sinces, since)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []model.Event
	for _, ev := range s.events {
		if int64(ev.Header().Timestamp) > since {
			out = append(out, ev)
		}
	}
	return out, nil
}

type fakeMetadata struct {
	fail map[string]error
}

func (m *fakeMetadata) Resolve(_ context.Context, ref string) (model.ProjectMetadata, error) {
	if err, ok := m.fail[ref]; ok {
		return model.ProjectMetadata{}, err
	}
	return model.ProjectMetadata{Name: "project " + ref}, nil
}

type fakeIdentity struct{}

func (fakeIdentity) Resolve(_ context.Context, address string) string {
	if address == "0xabc" {
		return "alice.eth"
	}
	return address
}

// titleFormatter titles notifications with the tx hash so the sink can
// target individual events.
type titleFormatter struct {
	mu   sync.Mutex
	seen []model.EnrichedEvent
}

func (f *titleFormatter) Build(ev model.EnrichedEvent) (model.Notification, error) {
	f.mu.Lock()
	f.seen = append(f.seen, ev)
	f.mu.Unlock()
	return model.Notification{
		Title:  ev.Event.Header().TxHash,
		Fields: []model.Field{{Name: "Who", Value: ev.Identity}},
	}, nil
}

type fakeSink struct {
	mu sync.Mutex
	// failures maps a title to the number of times delivery should fail.
	failures  map[string]int
	delivered []string
}

var errSinkDown = errors.New("sink down")

func (s *fakeSink) Deliver(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures[n.Title] > 0 {
		s.failures[n.Title]--
		return errSinkDown
	}
	s.delivered = append(s.delivered, n.Title)
	return nil
}

func (s *fakeSink) Delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.delivered...)
}

type memLog struct {
	mu      sync.Mutex
	records []model.FailureRecord
}

func (l *memLog) AppendFailures(_ context.Context, records []model.FailureRecord) error {
	l.mu.Lock()
	l.records = append(l.records, records...)
	l.mu.Unlock()
	return nil
}

func (l *memLog) Records() []model.FailureRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.FailureRecord(nil), l.records...)
}

type memStore struct {
	marks   map[string]int64
	loadErr error
	saveErr error
	saves   int
}

func (s *memStore) Load(context.Context) (map[string]int64, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make(map[string]int64, len(s.marks))
	for k, v := range s.marks {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) Save(_ context.Context, marks map[string]int64) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.marks = make(map[string]int64, len(marks))
	for k, v := range marks {
		s.marks[k] = v
	}
	return nil
}

func pay(tx string, ts int64, project string) model.Event {
	return model.PayEvent{
		EventHeader: model.EventHeader{
			Project:   model.Project{Handle: project, MetadataURI: project},
			ProjectID: 1,
			TxHash:    tx,
			PV:        "2",
			Timestamp: model.FlexInt(ts),
		},
		Amount:      "1000000000000000000",
		Beneficiary: "0xabc",
	}
}

func create(tx string, ts int64) model.Event {
	return model.ProjectCreateEvent{
		EventHeader: model.EventHeader{
			Project:   model.Project{Handle: "new", MetadataURI: "new"},
			ProjectID: 2,
			TxHash:    tx,
			PV:        "2",
			Timestamp: model.FlexInt(ts),
		},
		From: "0xdef",
	}
}
