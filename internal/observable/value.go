// Package observable provides a value container with change notification.
//
// A Value holds state and a list of observers. Every update mutates the
// state and then notifies observers, in subscription order, with the new
// state. Derived values recompute whenever their source changes.
//
//	table := observable.NewValue([]string{})
//	sub := table.Subscribe(func(list []string) {
//	    fmt.Println("now", len(list))
//	})
//	defer sub.Unsubscribe()
//
//	table.Update(func(list []string) []string {
//	    return append(list, "calculator")
//	})
//
// Observers are always called outside the internal lock, so they may read
// the value or update other values. An observer must not update the value
// it is being notified about from within the notification.
package observable

import (
	"slices"
	"sync"
)

// Observer is called with the current state when a Value changes.
type Observer[T any] func(value T)

// Subscription represents an active observer subscription.
type Subscription struct {
	once        sync.Once
	unsubscribe func()
}

// Unsubscribe removes this subscription. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.unsubscribe)
}

type entry[T any] struct {
	id       uint64
	observer Observer[T]
}

// Value is an observable state container. It is safe for concurrent use.
type Value[T any] struct {
	mu        sync.RWMutex
	value     T
	observers []entry[T]
	nextID    uint64
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{value: initial}
}

// Get returns the current state.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set replaces the state and notifies observers.
func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	v.value = value
	v.mu.Unlock()

	v.notify(value)
}

// Update replaces the state with fn(state) and notifies observers.
// fn runs under the write lock and must not call back into v.
func (v *Value[T]) Update(fn func(T) T) {
	v.Mutate(func(current T) (T, bool) {
		return fn(current), true
	})
}

// Mutate is like Update, but observers are notified only if fn reports a
// change. It returns whether the state changed.
func (v *Value[T]) Mutate(fn func(T) (T, bool)) bool {
	v.mu.Lock()
	next, changed := fn(v.value)
	if changed {
		v.value = next
	}
	v.mu.Unlock()

	if changed {
		v.notify(next)
	}
	return changed
}

// Touch notifies observers with the current state without changing it.
func (v *Value[T]) Touch() {
	v.notify(v.Get())
}

// Subscribe registers an observer. The observer is called immediately
// with the current state and then after every change.
func (v *Value[T]) Subscribe(observer Observer[T]) *Subscription {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.observers = append(v.observers, entry[T]{id: id, observer: observer})
	current := v.value
	v.mu.Unlock()

	observer(current)

	return &Subscription{unsubscribe: func() { v.unsubscribe(id) }}
}

// Len returns the number of active observers.
func (v *Value[T]) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.observers)
}

func (v *Value[T]) unsubscribe(id uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.observers = slices.DeleteFunc(v.observers, func(e entry[T]) bool {
		return e.id == id
	})
}

// notify calls observers outside the lock.
func (v *Value[T]) notify(value T) {
	v.mu.RLock()
	observers := slices.Clone(v.observers)
	v.mu.RUnlock()

	for _, e := range observers {
		e.observer(value)
	}
}

// Derive creates a Value computed from src by fn. It is recomputed
// whenever src changes; the returned Subscription detaches it from src.
func Derive[S, T any](src *Value[S], fn func(S) T) (*Value[T], *Subscription) {
	derived := NewValue(fn(src.Get()))
	first := true
	sub := src.Subscribe(func(s S) {
		if first {
			first = false
			return
		}
		derived.Set(fn(s))
	})
	return derived, sub
}
