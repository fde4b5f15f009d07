package host

import (
	"strings"
	"unicode"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/desk/internal/input/key"
)

// EventType identifies the type of terminal event.
type EventType int

const (
	EventNone EventType = iota
	EventKey
	EventResize
	EventInterrupt
	EventClosed
)

// Event represents a terminal event.
type Event struct {
	Type EventType

	// Key is set for EventKey.
	Key key.Event

	// Width and Height are set for EventResize.
	Width, Height int

	// Data is the payload of EventInterrupt.
	Data any
}

// namedKeys maps tcell special keys to key names. Code equals the name
// for all of them.
var namedKeys = map[tcell.Key]string{
	tcell.KeyEscape:     "Escape",
	tcell.KeyEnter:      "Enter",
	tcell.KeyTab:        "Tab",
	tcell.KeyBackspace:  "Backspace",
	tcell.KeyBackspace2: "Backspace",
	tcell.KeyDelete:     "Delete",
	tcell.KeyInsert:     "Insert",
	tcell.KeyHome:       "Home",
	tcell.KeyEnd:        "End",
	tcell.KeyPgUp:       "PageUp",
	tcell.KeyPgDn:       "PageDown",
	tcell.KeyUp:         "ArrowUp",
	tcell.KeyDown:       "ArrowDown",
	tcell.KeyLeft:       "ArrowLeft",
	tcell.KeyRight:      "ArrowRight",
	tcell.KeyF1:         "F1",
	tcell.KeyF2:         "F2",
	tcell.KeyF3:         "F3",
	tcell.KeyF4:         "F4",
	tcell.KeyF5:         "F5",
	tcell.KeyF6:         "F6",
	tcell.KeyF7:         "F7",
	tcell.KeyF8:         "F8",
	tcell.KeyF9:         "F9",
	tcell.KeyF10:        "F10",
	tcell.KeyF11:        "F11",
	tcell.KeyF12:        "F12",
}

// convertEvent converts tcell events to our Event type.
func convertEvent(ev tcell.Event) Event {
	switch e := ev.(type) {
	case nil:
		return Event{Type: EventClosed}
	case *tcell.EventKey:
		k, ok := convertKey(e)
		if !ok {
			return Event{Type: EventNone}
		}
		return Event{Type: EventKey, Key: k}
	case *tcell.EventResize:
		w, h := e.Size()
		return Event{Type: EventResize, Width: w, Height: h}
	case *tcell.EventInterrupt:
		return Event{Type: EventInterrupt, Data: e.Data()}
	default:
		return Event{Type: EventNone}
	}
}

// convertKey converts a tcell key event to a keydown key.Event.
//
// Terminals report Control+letter as control characters, so those are
// turned back into the lowercase letter with Control held. An uppercase
// rune implies Shift. BackTab becomes Shift+Tab.
func convertKey(e *tcell.EventKey) (key.Event, bool) {
	mods := convertMod(e.Modifiers())

	switch k := e.Key(); {
	case k == tcell.KeyRune:
		r := e.Rune()
		if mods.Has(key.ModControl) && unicode.IsLetter(r) {
			r = unicode.ToLower(r)
		} else if unicode.IsUpper(r) {
			mods = mods.With(key.ModShift)
		}
		if r == ' ' {
			return key.NewEvent(" ", "Space", mods), true
		}
		return key.NewEvent(string(r), codeForRune(r), mods), true

	case k == tcell.KeyBacktab:
		return key.NewEvent("Tab", "Tab", mods.With(key.ModShift)), true

	case namedKeys[k] != "":
		name := namedKeys[k]
		return key.NewEvent(name, name, mods), true

	case k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ:
		letter := rune('a' + (k - tcell.KeyCtrlA))
		return key.NewEvent(string(letter), codeForRune(letter), mods.With(key.ModControl)), true

	case k == tcell.KeyCtrlSpace:
		return key.NewEvent(" ", "Space", mods.With(key.ModControl)), true

	case k == tcell.KeyCtrlUnderscore:
		// Most terminals send Control+/ as 0x1F.
		return key.NewEvent("/", "Slash", mods.With(key.ModControl)), true
	}
	return key.Event{}, false
}

// codeForRune returns the physical code of a US layout key, or the empty
// string when there is no obvious one.
func codeForRune(r rune) string {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return "Key" + strings.ToUpper(string(r))
	case r >= '0' && r <= '9':
		return "Digit" + string(r)
	}
	return ""
}

// convertMod converts a tcell modifier mask to key modifiers.
func convertMod(m tcell.ModMask) key.Modifier {
	var result key.Modifier
	if m&tcell.ModShift != 0 {
		result |= key.ModShift
	}
	if m&tcell.ModCtrl != 0 {
		result |= key.ModControl
	}
	if m&tcell.ModAlt != 0 {
		result |= key.ModAlt
	}
	if m&tcell.ModMeta != 0 {
		result |= key.ModMeta
	}
	return result
}
