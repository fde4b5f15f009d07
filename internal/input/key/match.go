package key

import "strings"

// Match reports whether e satisfies press on the host platform.
func Match(e Event, press Press) bool {
	return HostPlatform.Match(e, press)
}

// Match reports whether e satisfies press.
//
// All of the following must hold:
//   - the press key equals the event key (case-insensitive) or the event code
//   - every modifier of the press is held
//   - no binding modifier is held unless the press requires it or is that key
func (p Platform) Match(e Event, press Press) bool {
	// A malformed binding leaves an empty key, which never matches.
	if press.Key == "" {
		return false
	}
	if strings.ToUpper(press.Key) != strings.ToUpper(e.Key) && press.Key != e.Code {
		return false
	}

	for _, mod := range press.Mods {
		if !p.ModifierState(e, mod) {
			return false
		}
	}

	// Shift, Meta and friends change the meaning of a press, so an extra one
	// held by accident means Shift+N does not trigger "N".
	for _, mod := range BindingModifiers {
		if !press.Requires(mod) && press.Key != mod && p.ModifierState(e, mod) {
			return false
		}
	}

	return true
}

// IsHeldModifier reports whether the event's own key is a modifier that is
// currently held. A bare modifier keydown does not abort pending sequences.
func (p Platform) IsHeldModifier(e Event) bool {
	return p.ModifierState(e, e.Key)
}
