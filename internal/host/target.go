// Package host connects the desk to its environment: an event target that
// fans key events out to listeners, and a tcell terminal that produces
// those events and draws the window list.
package host

import (
	"sync"

	"go.uber.org/zap"
)

// EventTarget delivers events to registered listeners in registration
// order. It is the source a keymap router attaches to.
type EventTarget struct {
	mu        sync.Mutex
	listeners []*targetListener
	logger    *zap.Logger
}

type targetListener struct {
	fn func(event any)
}

// NewEventTarget creates an event target. A nil logger discards output.
func NewEventTarget(logger *zap.Logger) *EventTarget {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventTarget{logger: logger}
}

// AddListener registers fn and returns a function that removes it.
// Removing twice is harmless.
func (t *EventTarget) AddListener(fn func(event any)) (remove func()) {
	l := &targetListener{fn: fn}

	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(l) })
	}
}

func (t *EventTarget) remove(l *targetListener) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, existing := range t.listeners {
		if existing == l {
			next := make([]*targetListener, 0, len(t.listeners)-1)
			next = append(next, t.listeners[:i]...)
			t.listeners = append(next, t.listeners[i+1:]...)
			return
		}
	}
}

// Emit delivers event to a snapshot of the listeners. Listeners may add
// or remove listeners; changes apply from the next Emit.
func (t *EventTarget) Emit(event any) {
	t.mu.Lock()
	listeners := t.listeners
	t.mu.Unlock()

	for _, l := range listeners {
		t.call(l, event)
	}
}

// Len returns the number of listeners.
func (t *EventTarget) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners)
}

func (t *EventTarget) call(l *targetListener, event any) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("event listener panicked", zap.Any("panic", r))
		}
	}()
	l.fn(event)
}
