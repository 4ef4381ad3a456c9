// Package residency owns the single hot engine instance. Every operation
// that can mutate engine state or invoke the engine passes through one mutex,
// so no two requests ever race on a load, swap, or transcription. That mutex
// is the daemon's serialization point; handlers hold no locks of their own.
package residency

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"scribed/internal/engine"
)

// Cache tracks which model is hot and which models have been loaded this
// session. State lives for the daemon process only; nothing persists.
type Cache struct {
	mu  sync.Mutex
	eng engine.Engine

	hot        string
	everLoaded map[string]struct{}
	loadsTotal uint64

	publisher EventPublisher
}

// New constructs a Cache around the given engine.
func New(eng engine.Engine) *Cache {
	return &Cache{
		eng:        eng,
		everLoaded: make(map[string]struct{}),
		publisher:  noopPublisher{},
	}
}

// SetPublisher installs an EventPublisher for lifecycle events.
func (c *Cache) SetPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	c.publisher = p
}

// IsResident reports on-disk availability of the model's assets, not
// in-memory hotness.
func (c *Cache) IsResident(model string) bool {
	return c.eng.IsDownloaded(model)
}

// Hot returns the currently hot model id, or "" when none is loaded.
func (c *Cache) Hot() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hot
}

// EverLoaded returns the sorted set of model ids loaded at least once this
// session. The set only grows; eviction from hot never removes an entry.
func (c *Cache) EverLoaded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.everLoadedLocked()
}

func (c *Cache) everLoadedLocked() []string {
	out := make([]string, 0, len(c.everLoaded))
	for id := range c.everLoaded {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LoadsTotal returns the number of engine loads performed this session.
func (c *Cache) LoadsTotal() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadsTotal
}

// EnsureResident makes model the hot instance. Idempotent: a no-op when the
// model is already hot. Otherwise it downloads assets if absent on disk and
// loads the engine, which releases the previous hot instance. Download and
// load can take seconds to minutes on first use; callers queue behind the
// cache mutex in arrival order.
func (c *Cache) EnsureResident(ctx context.Context, model string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureResidentLocked(ctx, model)
}

func (c *Cache) ensureResidentLocked(ctx context.Context, model string) error {
	if c.hot == model {
		return nil
	}
	start := time.Now()
	log.Printf("residency event=ensure_start model=%q", model)
	c.publisher.Publish(Event{Name: "ensure_start", Model: model})

	if !c.eng.IsDownloaded(model) {
		if err := c.eng.Download(ctx, model, func(received, total int64) {
			c.publisher.Publish(Event{Name: "download_progress", Model: model, Fields: map[string]any{"received": received, "total": total}})
		}); err != nil {
			log.Printf("residency event=download_fail model=%q err=%v", model, err)
			c.publisher.Publish(Event{Name: "download_fail", Model: model, Fields: map[string]any{"error": err.Error()}})
			return ErrDownloadFailed(model, err)
		}
		log.Printf("residency event=download_done model=%q dur_ms=%d", model, time.Since(start)/time.Millisecond)
		c.publisher.Publish(Event{Name: "download_done", Model: model})
	}

	if err := c.eng.Load(ctx, model); err != nil {
		// The engine may have released the previous instance before
		// failing; do not keep advertising it as hot.
		c.hot = ""
		log.Printf("residency event=load_fail model=%q err=%v", model, err)
		c.publisher.Publish(Event{Name: "load_fail", Model: model, Fields: map[string]any{"error": err.Error()}})
		return ErrLoadFailed(model, err)
	}

	c.hot = model
	c.everLoaded[model] = struct{}{}
	c.loadsTotal++
	log.Printf("residency event=load_ready model=%q dur_ms=%d", model, time.Since(start)/time.Millisecond)
	c.publisher.Publish(Event{Name: "load_ready", Model: model, Fields: map[string]any{"dur_ms": int(time.Since(start) / time.Millisecond)}})
	return nil
}

// Transcribe ensures model is resident, then runs inference on audioPath
// under the same critical section, so the hot instance cannot be swapped out
// from under an in-flight transcription. The returned seconds cover the
// inference only; download and load time on a cold model is excluded.
func (c *Cache) Transcribe(ctx context.Context, model, audioPath, language string) (string, float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureResidentLocked(ctx, model); err != nil {
		return "", 0, err
	}
	start := time.Now()
	text, err := c.eng.Transcribe(ctx, audioPath, language)
	if err != nil {
		return "", 0, ErrTranscribeFailed(model, err)
	}
	return text, time.Since(start).Seconds(), nil
}

// Close releases the hot instance and clears session state.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hot = ""
	return c.eng.Close()
}
