package key

import "strings"

// Modifier represents keyboard modifier keys held during an event.
type Modifier uint16

const (
	// ModNone indicates no modifiers.
	ModNone Modifier = 0

	// ModShift indicates the Shift key.
	ModShift Modifier = 1 << (iota - 1)

	// ModControl indicates the Control key.
	ModControl

	// ModAlt indicates the Alt key (Option on macOS).
	ModAlt

	// ModMeta indicates the Meta key (Cmd on macOS, Win on Windows).
	ModMeta

	// ModAltGraph indicates the AltGr key or its platform equivalent.
	ModAltGraph

	// ModCapsLock indicates Caps Lock is engaged.
	ModCapsLock

	// ModNumLock indicates Num Lock is engaged.
	ModNumLock

	// ModScrollLock indicates Scroll Lock is engaged.
	ModScrollLock

	// ModFn indicates the Fn key.
	ModFn
)

// Modifier names as reported by the host.
const (
	Shift      = "Shift"
	Control    = "Control"
	Alt        = "Alt"
	Meta       = "Meta"
	AltGraph   = "AltGraph"
	CapsLock   = "CapsLock"
	NumLock    = "NumLock"
	ScrollLock = "ScrollLock"
	Fn         = "Fn"
)

// BindingModifiers are the modifiers that change the meaning of a keybinding.
// One of these held without being part of a press invalidates the press.
// AltGraph is left out because it is covered by the others.
var BindingModifiers = []string{Shift, Meta, Alt, Control}

// modifierNameMap maps host modifier names to Modifier values.
var modifierNameMap = map[string]Modifier{
	Shift:      ModShift,
	Control:    ModControl,
	Alt:        ModAlt,
	Meta:       ModMeta,
	AltGraph:   ModAltGraph,
	CapsLock:   ModCapsLock,
	NumLock:    ModNumLock,
	ScrollLock: ModScrollLock,
	Fn:         ModFn,
}

// modifierOrder is the display order used by String.
var modifierOrder = []string{Control, Alt, Shift, Meta, AltGraph, CapsLock, NumLock, ScrollLock, Fn}

// ModifierFromName returns the Modifier for a host modifier name.
// Names are case-sensitive. Returns ModNone if the name is not recognized.
func ModifierFromName(name string) Modifier {
	return modifierNameMap[name]
}

// Has returns true if m contains the specified modifier.
func (m Modifier) Has(mod Modifier) bool {
	return m&mod != 0
}

// With returns a new Modifier with the specified modifier added.
func (m Modifier) With(mod Modifier) Modifier {
	return m | mod
}

// Without returns a new Modifier with the specified modifier removed.
func (m Modifier) Without(mod Modifier) Modifier {
	return m &^ mod
}

// IsEmpty returns true if no modifiers are set.
func (m Modifier) IsEmpty() bool {
	return m == ModNone
}

// Names returns the host names of all modifiers in m.
func (m Modifier) Names() []string {
	var names []string
	for _, name := range modifierOrder {
		if m.Has(modifierNameMap[name]) {
			names = append(names, name)
		}
	}
	return names
}

// String returns a human-readable representation like "Control+Alt".
func (m Modifier) String() string {
	return strings.Join(m.Names(), "+")
}

// IsModifierKey returns true if key is the name of a modifier key.
func IsModifierKey(key string) bool {
	_, ok := modifierNameMap[key]
	return ok
}
