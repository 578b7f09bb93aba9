package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/LJTian/TrendPress/internal/storage"
)

type blockingRunner struct {
	release chan struct{}
	ok      bool
	panic   bool

	mu    sync.Mutex
	calls int
}

func (r *blockingRunner) Run(ctx context.Context) bool {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.release != nil {
		<-r.release
	}
	if r.panic {
		panic("boom")
	}
	return r.ok
}

type fakeLoader struct {
	summary *storage.RunSummary
	err     error
}

func (l fakeLoader) LoadResults() (*storage.RunSummary, error) {
	return l.summary, l.err
}

func TestStartRejectsConcurrentRun(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{}), ok: true}
	tr := New(runner, fakeLoader{err: storage.ErrNoResults})

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, rejected := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.Start()
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ErrAlreadyRunning) {
				rejected++
			} else if err == nil {
				accepted++
			}
		}()
	}
	wg.Wait()
	if accepted != 1 || rejected != 7 {
		t.Fatalf("accepted=%d rejected=%d, want 1/7", accepted, rejected)
	}
	if !tr.Status().IsRunning {
		t.Fatalf("status should report running")
	}

	close(runner.release)
	tr.Wait()
	if runner.calls != 1 {
		t.Fatalf("runner calls = %d, want 1", runner.calls)
	}
}

func TestRejectedStartReturnsCurrentStartTime(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{}), ok: true}
	tr := New(runner, fakeLoader{err: storage.ErrNoResults})
	first := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return first }

	startedAt, err := tr.Start()
	if err != nil || !startedAt.Equal(first) {
		t.Fatalf("Start = %v, %v", startedAt, err)
	}
	tr.now = func() time.Time { return first.Add(time.Minute) }
	again, err := tr.Start()
	if !errors.Is(err, ErrAlreadyRunning) || !again.Equal(first) {
		t.Fatalf("second Start = %v, %v", again, err)
	}
	close(runner.release)
	tr.Wait()
}

func TestInitialState(t *testing.T) {
	tr := New(&blockingRunner{}, fakeLoader{})
	st := tr.Status()
	if st.IsRunning || st.LastRun != nil || st.LastStatus != nil {
		t.Fatalf("unexpected initial status: %+v", st)
	}
	if _, err := tr.Results(); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("Results err = %v, want ErrNotAvailable", err)
	}
}

func TestSuccessfulRunLoadsResults(t *testing.T) {
	summary := &storage.RunSummary{TotalProcessed: 1, Results: []storage.Result{{Trend: "x", Status: storage.StatusPublished}}}
	tr := New(&blockingRunner{ok: true}, fakeLoader{summary: summary})

	if _, err := tr.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	tr.Wait()

	st := tr.Status()
	if st.IsRunning || st.LastStatus == nil || *st.LastStatus != RunSuccess || st.LastRun == nil {
		t.Fatalf("unexpected status: %+v", st)
	}
	got, err := tr.Results()
	if err != nil || got.TotalProcessed != 1 {
		t.Fatalf("Results = %+v, %v", got, err)
	}
	// 查询不改变状态
	again, _ := tr.Results()
	if again != got || tr.Status().IsRunning {
		t.Fatalf("queries should be idempotent")
	}
}

func TestFailedRunKeepsPreviousResults(t *testing.T) {
	summary := &storage.RunSummary{TotalProcessed: 2}
	runner := &blockingRunner{ok: true}
	tr := New(runner, fakeLoader{summary: summary})
	tr.Start()
	tr.Wait()

	runner.ok = false
	if _, err := tr.Start(); err != nil {
		t.Fatalf("Start after completion should be accepted: %v", err)
	}
	tr.Wait()

	st := tr.Status()
	if *st.LastStatus != RunError {
		t.Fatalf("last status = %s, want error", *st.LastStatus)
	}
	got, err := tr.Results()
	if err != nil || got.TotalProcessed != 2 {
		t.Fatalf("previous results should remain: %+v, %v", got, err)
	}
}

func TestRunPanicMarksError(t *testing.T) {
	tr := New(&blockingRunner{panic: true}, fakeLoader{})
	tr.Start()
	tr.Wait()

	st := tr.Status()
	if st.IsRunning || st.LastStatus == nil || *st.LastStatus != RunError {
		t.Fatalf("unexpected status after panic: %+v", st)
	}
}

func TestSuccessWithoutResultsFile(t *testing.T) {
	tr := New(&blockingRunner{ok: true}, fakeLoader{err: storage.ErrNoResults})
	tr.Start()
	tr.Wait()
	if _, err := tr.Results(); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("Results err = %v", err)
	}
}

func TestFailedRunLoadsPersistedSummary(t *testing.T) {
	store, err := storage.NewStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	if err := store.SaveResults(&storage.RunSummary{Timestamp: time.Now(), TotalProcessed: 3}); err != nil {
		t.Fatalf("SaveResults error: %v", err)
	}

	tr := New(&blockingRunner{ok: false}, store)
	if _, err := tr.Start(); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	tr.Wait()

	if st := tr.Status(); st.LastStatus == nil || *st.LastStatus != RunError {
		t.Fatalf("unexpected status: %+v", st)
	}
	got, err := tr.Results()
	if err != nil || got.TotalProcessed != 3 {
		t.Fatalf("summary on disk should be loaded after a failed run: %+v, %v", got, err)
	}
}
