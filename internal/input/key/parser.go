package key

import (
	"regexp"
	"slices"
	"strings"
)

// ModAlias is the placeholder resolved to the platform's primary modifier.
const ModAlias = "$mod"

// pressSplit splits a press on "+" that follows a word character, so that
// "Control++" yields the modifier "Control" and the key "+".
var pressSplit = regexp.MustCompile(`\b\+`)

// Press is one keystroke requirement within a keybinding sequence.
type Press struct {
	// Mods are the modifier names that must be held.
	Mods []string

	// Key is the key token compared against Event.Key or Event.Code.
	Key string
}

// String returns the press in keybinding-string form.
func (p Press) String() string {
	return strings.Join(append(slices.Clone(p.Mods), p.Key), "+")
}

// Requires reports whether mod is one of the press's modifiers.
func (p Press) Requires(mod string) bool {
	return slices.Contains(p.Mods, mod)
}

// Parse parses a keybinding string for the host platform.
//
// Grammar:
//
//	<sequence> = <press> " " <press> " " ...
//	<press>    = <key> | <mods> "+" <key>
//	<mods>     = <mod> "+" <mod> "+" ...
func Parse(s string) []Press {
	return ParseFor(HostPlatform, s)
}

// ParseFor parses a keybinding string, resolving "$mod" for platform p.
// It never fails; malformed presses simply never match.
func ParseFor(p Platform, s string) []Press {
	parts := strings.Split(strings.TrimSpace(s), " ")
	presses := make([]Press, 0, len(parts))
	for _, part := range parts {
		tokens := pressSplit.Split(part, -1)
		keyName := tokens[len(tokens)-1]
		mods := make([]string, 0, len(tokens)-1)
		for _, mod := range tokens[:len(tokens)-1] {
			if mod == ModAlias {
				mod = p.PrimaryModifier()
			}
			mods = append(mods, mod)
		}
		presses = append(presses, Press{Mods: mods, Key: keyName})
	}
	return presses
}

// FormatSequence returns presses in keybinding-string form.
func FormatSequence(presses []Press) string {
	parts := make([]string, len(presses))
	for i, p := range presses {
		parts[i] = p.String()
	}
	return strings.Join(parts, " ")
}
