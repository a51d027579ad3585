package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spudstack/tuber/internal/agent"
	"github.com/spudstack/tuber/internal/provider"
	"github.com/spudstack/tuber/internal/stats"
	"github.com/spudstack/tuber/internal/store"
	"github.com/spudstack/tuber/internal/tool"
	"go.uber.org/zap"
)

type staticGen struct {
	answer string
}

func (g *staticGen) Generate(context.Context, *provider.Request) (*provider.Response, error) {
	return &provider.Response{Content: g.answer, Model: "static"}, nil
}

// failingStore always errors on Append; Stats and Recent stay usable.
type failingStore struct {
	store.Memory
	mu       sync.Mutex
	attempts int
}

func (s *failingStore) Append(context.Context, string, string, int64) error {
	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()
	return errors.New("disk full")
}

func (s *failingStore) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func newTestDispatcher(t *testing.T, storage store.Storage) *Dispatcher {
	t.Helper()
	logger := zap.NewNop()
	reg := tool.NewRegistry(logger)
	loop := agent.NewLoop(reg, &staticGen{answer: "a direct answer"}, 10, logger)
	return New(loop, storage, stats.NewAggregator(), time.Minute, logger)
}

func TestHandleRejectsEmptyQuery(t *testing.T) {
	d := newTestDispatcher(t, store.NewMemory())

	for _, input := range []string{"", "   ", "\t\n"} {
		if _, err := d.Handle(context.Background(), input); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("input %q: got %v, want ErrEmptyQuery", input, err)
		}
	}
	if s := d.Stats(); s.TotalQueries != 0 {
		t.Errorf("rejected queries counted: got %d, want 0", s.TotalQueries)
	}
}

func TestHandleRecordsStatsOnce(t *testing.T) {
	d := newTestDispatcher(t, store.NewMemory())

	resp, err := d.Handle(context.Background(), "a question")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(resp.Answer, "a direct answer") {
		t.Errorf("got answer %q", resp.Answer)
	}
	if resp.ProcessingTimeMs < 0 {
		t.Errorf("got negative processing time %d", resp.ProcessingTimeMs)
	}

	s := d.Stats()
	if s.TotalQueries != 1 {
		t.Errorf("got %d queries, want 1", s.TotalQueries)
	}
}

func TestHandleConcurrentQueries(t *testing.T) {
	d := newTestDispatcher(t, store.NewMemory())

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := d.Handle(context.Background(), "concurrent question"); err != nil {
				t.Errorf("handle: %v", err)
			}
		}()
	}
	wg.Wait()

	if s := d.Stats(); s.TotalQueries != n {
		t.Errorf("got %d queries, want exactly %d", s.TotalQueries, n)
	}
}

func TestHandleSurvivesStorageFailure(t *testing.T) {
	fs := &failingStore{}
	d := newTestDispatcher(t, fs)

	resp, err := d.Handle(context.Background(), "a question")
	if err != nil {
		t.Fatalf("storage failure leaked to caller: %v", err)
	}
	if resp.Answer == "" {
		t.Fatal("expected an answer despite the storage failure")
	}

	// Persistence is async; wait for the attempt to land.
	deadline := time.After(2 * time.Second)
	for fs.Attempts() == 0 {
		select {
		case <-deadline:
			t.Fatal("storage append never attempted")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if s := d.Stats(); s.TotalQueries != 1 {
		t.Errorf("got %d queries, want 1", s.TotalQueries)
	}
}

func TestHandleNilStorage(t *testing.T) {
	d := newTestDispatcher(t, nil)

	if _, err := d.Handle(context.Background(), "no storage configured"); err != nil {
		t.Fatalf("handle: %v", err)
	}
}
