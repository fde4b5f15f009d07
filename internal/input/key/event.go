package key

import (
	"fmt"
	"strings"
	"time"
)

// EventType distinguishes key down from key up events.
type EventType uint8

const (
	// KeyDown is delivered when a key is pressed.
	KeyDown EventType = iota

	// KeyUp is delivered when a key is released.
	KeyUp
)

// String returns the host event name.
func (t EventType) String() string {
	switch t {
	case KeyDown:
		return "keydown"
	case KeyUp:
		return "keyup"
	default:
		return fmt.Sprintf("EventType(%d)", t)
	}
}

// ParseEventType parses "keydown" or "keyup".
func ParseEventType(s string) (EventType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keydown":
		return KeyDown, nil
	case "keyup":
		return KeyUp, nil
	default:
		return KeyDown, fmt.Errorf("unknown key event type %q", s)
	}
}

// Event represents a single keyboard event.
type Event struct {
	// Type is keydown or keyup.
	Type EventType

	// Key is the logical key value: "a", "A", "Escape", "Shift", "/".
	Key string

	// Code is the physical key identifier: "KeyA", "Digit1", "Escape".
	Code string

	// Modifiers contains the modifier state at the time of the event.
	Modifiers Modifier

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// NewEvent creates a keydown event with the current timestamp.
func NewEvent(keyName, code string, mods Modifier) Event {
	return Event{
		Type:      KeyDown,
		Key:       keyName,
		Code:      code,
		Modifiers: mods,
		Timestamp: time.Now(),
	}
}

// ModifierState reports whether the named modifier is held.
// Unknown names report false.
func (e Event) ModifierState(name string) bool {
	mod := ModifierFromName(name)
	return mod != ModNone && e.Modifiers.Has(mod)
}

// String returns a representation like "Control+Shift+P".
func (e Event) String() string {
	names := e.Modifiers.Names()
	// A modifier key event already carries its own modifier state.
	if IsModifierKey(e.Key) {
		filtered := names[:0]
		for _, n := range names {
			if n != e.Key {
				filtered = append(filtered, n)
			}
		}
		names = filtered
	}
	return strings.Join(append(names, e.Key), "+")
}

// GoString implements fmt.GoStringer for debugging.
func (e Event) GoString() string {
	return fmt.Sprintf("Event{Type: %s, Key: %q, Code: %q, Modifiers: %s}",
		e.Type, e.Key, e.Code, e.Modifiers)
}
