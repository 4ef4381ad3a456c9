package residency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"scribed/internal/engine"
)

// fakeEngine records calls and lets tests inject failures per stage.
type fakeEngine struct {
	mu         sync.Mutex
	downloaded map[string]bool
	loads      []string
	loaded     string
	closed     int

	downloadErr   error
	downloadDelay time.Duration
	loadErr       error
	transcribeErr error
	text          string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{downloaded: make(map[string]bool), text: "hello world"}
}

func (f *fakeEngine) IsDownloaded(model string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloaded[model]
}

func (f *fakeEngine) Download(ctx context.Context, model string, onProgress engine.ProgressFunc) error {
	if f.downloadErr != nil {
		return f.downloadErr
	}
	if f.downloadDelay > 0 {
		time.Sleep(f.downloadDelay)
	}
	if onProgress != nil {
		onProgress(1, 2)
		onProgress(2, 2)
	}
	f.mu.Lock()
	f.downloaded[model] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) Load(ctx context.Context, model string) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	f.mu.Lock()
	f.loads = append(f.loads, model)
	f.loaded = model
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	if f.transcribeErr != nil {
		return "", f.transcribeErr
	}
	return f.text, nil
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

func TestEnsureResidentSwapKeepsHistory(t *testing.T) {
	eng := newFakeEngine()
	c := New(eng)
	ctx := context.Background()

	if err := c.EnsureResident(ctx, "a"); err != nil {
		t.Fatalf("ensure a: %v", err)
	}
	if err := c.EnsureResident(ctx, "b"); err != nil {
		t.Fatalf("ensure b: %v", err)
	}
	if got := c.Hot(); got != "b" {
		t.Fatalf("hot = %q, want b", got)
	}
	loaded := c.EverLoaded()
	if len(loaded) != 2 || loaded[0] != "a" || loaded[1] != "b" {
		t.Fatalf("everLoaded = %v, want [a b]", loaded)
	}
}

func TestEnsureResidentIdempotent(t *testing.T) {
	eng := newFakeEngine()
	c := New(eng)
	ctx := context.Background()

	if err := c.EnsureResident(ctx, "a"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := c.EnsureResident(ctx, "a"); err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if len(eng.loads) != 1 {
		t.Fatalf("expected 1 load, got %d", len(eng.loads))
	}
	if c.Hot() != "a" {
		t.Fatalf("hot = %q, want a", c.Hot())
	}
	if c.LoadsTotal() != 1 {
		t.Fatalf("loadsTotal = %d, want 1", c.LoadsTotal())
	}
}

func TestEnsureResidentSkipsDownloadWhenOnDisk(t *testing.T) {
	eng := newFakeEngine()
	eng.downloaded["a"] = true
	eng.downloadErr = errors.New("must not be called")
	c := New(eng)
	if err := c.EnsureResident(context.Background(), "a"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
}

func TestEnsureResidentDownloadFailure(t *testing.T) {
	eng := newFakeEngine()
	eng.downloadErr = errors.New("network down")
	c := New(eng)
	err := c.EnsureResident(context.Background(), "a")
	if err == nil || !IsDownloadFailed(err) {
		t.Fatalf("expected download failure, got %v", err)
	}
	if c.Hot() != "" {
		t.Fatalf("hot should stay empty after failure")
	}
	if len(c.EverLoaded()) != 0 {
		t.Fatalf("everLoaded should stay empty after failure")
	}
}

func TestEnsureResidentLoadFailureClearsHot(t *testing.T) {
	eng := newFakeEngine()
	c := New(eng)
	ctx := context.Background()
	if err := c.EnsureResident(ctx, "a"); err != nil {
		t.Fatalf("ensure a: %v", err)
	}
	eng.loadErr = errors.New("boom")
	err := c.EnsureResident(ctx, "b")
	if err == nil || !IsLoadFailed(err) {
		t.Fatalf("expected load failure, got %v", err)
	}
	if c.Hot() != "" {
		t.Fatalf("hot = %q, want empty after failed swap", c.Hot())
	}
	// History keeps the previously loaded model.
	loaded := c.EverLoaded()
	if len(loaded) != 1 || loaded[0] != "a" {
		t.Fatalf("everLoaded = %v, want [a]", loaded)
	}
}

func TestTranscribeEnsuresAndRuns(t *testing.T) {
	eng := newFakeEngine()
	c := New(eng)
	text, seconds, err := c.Transcribe(context.Background(), "a", "/tmp/x.wav", "en")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("text = %q", text)
	}
	if seconds < 0 {
		t.Fatalf("seconds = %v", seconds)
	}
	if c.Hot() != "a" {
		t.Fatalf("hot = %q, want a", c.Hot())
	}
}

func TestTranscribeSecondsExcludeColdStart(t *testing.T) {
	eng := newFakeEngine()
	eng.downloadDelay = 300 * time.Millisecond
	c := New(eng)
	_, seconds, err := c.Transcribe(context.Background(), "a", "/tmp/x.wav", "")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	// First use pays download+load; the reported duration covers only the
	// inference itself.
	if seconds >= 0.25 {
		t.Fatalf("seconds = %v, includes cold-start time", seconds)
	}
}

func TestTranscribeFailureTyped(t *testing.T) {
	eng := newFakeEngine()
	eng.transcribeErr = errors.New("decode error")
	c := New(eng)
	_, _, err := c.Transcribe(context.Background(), "a", "/tmp/x.wav", "")
	if err == nil || !IsTranscribeFailed(err) {
		t.Fatalf("expected transcribe failure, got %v", err)
	}
}

func TestSerializedAccessConsistency(t *testing.T) {
	eng := newFakeEngine()
	c := New(eng)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		model := "a"
		if i%2 == 1 {
			model = "b"
		}
		wg.Add(1)
		go func(m string) {
			defer wg.Done()
			if _, _, err := c.Transcribe(context.Background(), m, "/tmp/x.wav", ""); err != nil {
				t.Errorf("transcribe %s: %v", m, err)
			}
		}(model)
	}
	wg.Wait()
	if hot := c.Hot(); hot != "a" && hot != "b" {
		t.Fatalf("hot = %q", hot)
	}
	loaded := c.EverLoaded()
	if len(loaded) != 2 {
		t.Fatalf("everLoaded = %v", loaded)
	}
}

func TestEventsPublished(t *testing.T) {
	eng := newFakeEngine()
	c := New(eng)
	pub := NewMemoryPublisher()
	c.SetPublisher(pub)
	if err := c.EnsureResident(context.Background(), "a"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	var names []string
	for _, e := range pub.Events() {
		names = append(names, e.Name)
	}
	want := map[string]bool{"ensure_start": false, "download_done": false, "load_ready": false}
	for _, n := range names {
		if _, ok := want[n]; ok {
			want[n] = true
		}
	}
	for n, seen := range want {
		if !seen {
			t.Fatalf("missing event %s in %v", n, names)
		}
	}
}

func TestCloseClearsHot(t *testing.T) {
	eng := newFakeEngine()
	c := New(eng)
	if err := c.EnsureResident(context.Background(), "a"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if c.Hot() != "" {
		t.Fatalf("hot should be empty after close")
	}
	if eng.closed != 1 {
		t.Fatalf("engine close count = %d", eng.closed)
	}
}
