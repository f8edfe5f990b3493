package widget

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/popkit/popkit/internal/model"
)

// LiveQueue buffers events received over the stream until the scheduler is
// ready to display them. Live events always take priority over fallback picks
// and are shown in arrival order.
type LiveQueue struct {
	mu     sync.Mutex
	events []*model.Event
}

// Push appends an event to the queue.
func (q *LiveQueue) Push(evt *model.Event) {
	q.mu.Lock()
	q.events = append(q.events, evt)
	q.mu.Unlock()
}

// Pop removes and returns the oldest queued event.
func (q *LiveQueue) Pop() (*model.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil, false
	}
	evt := q.events[0]
	q.events = q.events[1:]
	return evt, true
}

// Len returns the number of queued events.
func (q *LiveQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// RuntimeOptions configures a widget Runtime.
type RuntimeOptions struct {
	Client   *Client
	Cache    *CacheStore // optional; nil disables snapshot persistence
	Renderer Renderer
	Rand     *rand.Rand // optional; seeded from the clock when nil
}

// Runtime drives one embedded widget: it authenticates, loads the fallback
// snapshot, subscribes to the live stream, and paces displays through the
// toast stack. Every external failure degrades to fewer (or no) notifications;
// Start itself never fails.
type Runtime struct {
	client *Client
	cache  *CacheStore
	stack  *ToastStack
	queue  *LiveQueue
	rng    *rand.Rand

	mu        sync.Mutex
	mode      Mode
	burstLeft int
	fallback  *FallbackCache

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRuntime assembles a runtime from its parts.
func NewRuntime(opts RuntimeOptions) *Runtime {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Runtime{
		client: opts.Client,
		cache:  opts.Cache,
		stack:  NewToastStack(opts.Renderer, 1, displayDuration),
		queue:  &LiveQueue{},
		rng:    rng,
		done:   make(chan struct{}),
	}
}

// Start brings the runtime up and returns immediately; display continues on
// background goroutines until the context is canceled or Stop is called.
func (r *Runtime) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	online := true
	if _, err := r.client.IssueToken(ctx); err != nil {
		slog.Warn("token issuance failed, running from cache only", "error", err)
		online = false
	}

	r.loadFallback(ctx, online)

	if online {
		sub := NewStreamSubscriber(r.client, r.queue.Push)
		go func() {
			if err := sub.Run(ctx); err != nil {
				// Live delivery is gone but fallback display continues.
				slog.Warn("event stream disconnected", "error", err)
			}
		}()
	}

	go r.loop(ctx)
}

// Stop cancels the runtime and blocks until the display loop has cleared the
// screen and exited. Safe to call once after Start.
func (r *Runtime) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

// loadFallback uses a fresh local snapshot when one exists; only a miss or a
// stale record triggers a fetch from the gateway. The cached last-shown index
// rides along, so the no-repeat rule holds across reloads.
func (r *Runtime) loadFallback(ctx context.Context, online bool) {
	if r.cache != nil {
		fc, err := r.cache.Load(r.client.creds.SiteAPIKey)
		if err != nil {
			slog.Warn("failed to load fallback snapshot", "error", err)
		} else if fc != nil {
			r.setFallback(fc)
			return
		}
	}

	if !online {
		return
	}
	payload, err := r.client.Initialize(ctx)
	if err != nil {
		slog.Warn("initialization failed, no fallback events", "error", err)
		return
	}
	fc := &FallbackCache{
		SiteID:         payload.SiteID,
		Events:         payload.FallbackEvents,
		FetchedAt:      time.Now().UTC(),
		LastShownIndex: -1,
	}
	r.setFallback(fc)
	if r.cache != nil {
		if err := r.cache.Save(r.client.creds.SiteAPIKey, fc); err != nil {
			slog.Warn("failed to persist fallback snapshot", "error", err)
		}
	}
}

func (r *Runtime) setFallback(fc *FallbackCache) {
	r.mu.Lock()
	r.fallback = fc
	r.mu.Unlock()
}

// loop paces displays. The delay timer always rearms, even when there was
// nothing to show, so the runtime picks up new live events without stalling.
func (r *Runtime) loop(ctx context.Context) {
	defer close(r.done)

	burst := time.NewTimer(burstInterval(r.rng))
	defer burst.Stop()
	delay := time.NewTimer(r.nextDelay())
	defer delay.Stop()

	for {
		select {
		case <-ctx.Done():
			r.stack.Clear()
			return
		case <-burst.C:
			r.mu.Lock()
			r.mode = ModeBurst
			r.burstLeft = burstDisplayCount
			r.mu.Unlock()
			burst.Reset(burstInterval(r.rng))
		case <-delay.C:
			r.showNext()
			delay.Reset(r.nextDelay())
		}
	}
}

func (r *Runtime) nextDelay() time.Duration {
	r.mu.Lock()
	mode := r.mode
	r.mu.Unlock()
	return nextDelay(mode, r.rng)
}

// showNext displays one notification: the oldest live event if any is queued,
// otherwise a random fallback pick. Doing nothing is fine; the loop rearms.
func (r *Runtime) showNext() {
	if evt, ok := r.queue.Pop(); ok {
		r.stack.Push(evt)
		r.countBurstDisplay()
		return
	}

	r.mu.Lock()
	fc := r.fallback
	r.mu.Unlock()
	if fc == nil || len(fc.Events) == 0 {
		return
	}

	idx := pickFallbackEvent(len(fc.Events), fc.LastShownIndex, r.rng)
	if idx < 0 {
		return
	}
	r.stack.Push(fc.Events[idx])
	r.countBurstDisplay()

	r.mu.Lock()
	fc.LastShownIndex = idx
	r.mu.Unlock()
	if r.cache != nil {
		if err := r.cache.SetLastShownIndex(r.client.creds.SiteAPIKey, idx); err != nil {
			slog.Warn("failed to persist last shown index", "error", err)
		}
	}
}

// countBurstDisplay decrements the burst budget and reverts to normal pacing
// once the burst has shown its quota.
func (r *Runtime) countBurstDisplay() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode != ModeBurst {
		return
	}
	r.burstLeft--
	if r.burstLeft <= 0 {
		r.mode = ModeNormal
	}
}
