package widget

import (
	"sync"
	"time"

	"github.com/popkit/popkit/internal/model"
)

// Toast is one visible notification.
type Toast struct {
	ID     int
	Event  *model.Event
	Offset int // distance from the anchored edge, in renderer units
	Height int // set by the renderer on Show
}

// Renderer draws toasts to some surface. Show returns the rendered height so
// the stack can place the next toast above it. Implementations need not be
// safe for concurrent use; the stack serializes all calls.
type Renderer interface {
	Show(t *Toast) int
	Move(t *Toast)
	Hide(t *Toast)
}

// ToastStack manages the visible notifications anchored to one screen edge.
// New toasts are placed past the cumulative height of those already visible;
// when one expires the remainder re-settle toward the edge.
type ToastStack struct {
	mu       sync.Mutex
	renderer Renderer
	gap      int
	duration time.Duration
	nextID   int
	toasts   []*Toast
	timers   map[int]*time.Timer
}

// NewToastStack returns a stack rendering through r, with gap spacing between
// toasts. A non-positive duration falls back to the default display duration.
func NewToastStack(r Renderer, gap int, duration time.Duration) *ToastStack {
	if duration <= 0 {
		duration = displayDuration
	}
	return &ToastStack{
		renderer: r,
		gap:      gap,
		duration: duration,
		timers:   make(map[int]*time.Timer),
	}
}

// Push displays a new toast for the event and schedules its removal.
func (s *ToastStack) Push(evt *model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	t := &Toast{
		ID:     s.nextID,
		Event:  evt,
		Offset: s.stackHeightLocked(),
	}
	t.Height = s.renderer.Show(t)
	s.toasts = append(s.toasts, t)

	id := t.ID
	s.timers[id] = time.AfterFunc(s.duration, func() {
		s.expire(id)
	})
}

// Len returns the number of visible toasts.
func (s *ToastStack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.toasts)
}

// Clear removes every toast immediately and cancels pending expirations.
func (s *ToastStack) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	for _, t := range s.toasts {
		s.renderer.Hide(t)
	}
	s.toasts = nil
}

// expire hides the toast, holds its slot through the exit delay, then removes
// it and re-settles the remainder.
func (s *ToastStack) expire(id int) {
	s.mu.Lock()
	delete(s.timers, id)
	var target *Toast
	for _, t := range s.toasts {
		if t.ID == id {
			target = t
			break
		}
	}
	if target != nil {
		s.renderer.Hide(target)
	}
	s.mu.Unlock()
	if target == nil {
		return
	}

	time.AfterFunc(exitDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, t := range s.toasts {
			if t.ID == id {
				s.toasts = append(s.toasts[:i], s.toasts[i+1:]...)
				break
			}
		}
		s.resettleLocked()
	})
}

// resettleLocked recomputes offsets from the anchored edge and moves any toast
// whose position changed.
func (s *ToastStack) resettleLocked() {
	offset := 0
	for _, t := range s.toasts {
		if t.Offset != offset {
			t.Offset = offset
			s.renderer.Move(t)
		}
		offset += t.Height + s.gap
	}
}

// stackHeightLocked is the cumulative height of the visible stack, including
// trailing gap, i.e. the offset for the next toast.
func (s *ToastStack) stackHeightLocked() int {
	h := 0
	for _, t := range s.toasts {
		h += t.Height + s.gap
	}
	return h
}
