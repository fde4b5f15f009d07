// Package key provides key event types, keybinding parsing and matching.
//
// This package defines the fundamental types for representing keyboard input:
//
//   - Modifier: Modifier keys held during an event (Shift, Control, Alt, Meta, ...)
//   - Event: A single keydown or keyup with its key, physical code and modifiers
//   - Press: One keystroke requirement of a keybinding (modifiers + key)
//   - Platform: The host platform, which decides what "$mod" means
//
// # Keybinding Strings
//
// A keybinding string is a sequence of presses separated by a single space.
// Within a press, modifiers and the final key are joined by "+":
//
//   - Simple keys: "a", "N", "Escape", "F2"
//   - With modifiers: "Control+S", "Shift+Alt+P"
//   - Platform modifier: "$mod+S" (Meta on Apple platforms, Control elsewhere)
//   - Sequences: "g g", "Control+X Control+C"
//
// Key tokens are compared case-insensitively against Event.Key, or exactly
// against Event.Code ("KeyA", "Digit1"). Modifier names are the host's
// modifier names and are case-sensitive.
//
// Parsing is permissive: malformed strings such as "Control+" produce a
// press with an empty key that never matches. No error is reported.
package key
