package key

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
)

// Platform identifies the host platform family for modifier semantics.
type Platform uint8

const (
	// PlatformOther covers Linux, BSD and anything not listed below.
	PlatformOther Platform = iota

	// PlatformApple covers macOS and iOS.
	PlatformApple

	// PlatformWindows covers Windows.
	PlatformWindows
)

// HostPlatform is the platform this process runs on, resolved once at startup.
var HostPlatform = DetectPlatform(runtime.GOOS)

// DetectPlatform maps a GOOS value to a Platform.
func DetectPlatform(goos string) Platform {
	switch goos {
	case "darwin", "ios":
		return PlatformApple
	case "windows":
		return PlatformWindows
	default:
		return PlatformOther
	}
}

// ParsePlatform parses a platform name. "auto" and "" resolve to HostPlatform.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return HostPlatform, nil
	case "apple", "mac", "macos", "darwin":
		return PlatformApple, nil
	case "windows", "win32":
		return PlatformWindows, nil
	case "other", "linux":
		return PlatformOther, nil
	default:
		return HostPlatform, fmt.Errorf("unknown platform %q", s)
	}
}

// String returns the platform name.
func (p Platform) String() string {
	switch p {
	case PlatformApple:
		return "apple"
	case PlatformWindows:
		return "windows"
	default:
		return "other"
	}
}

// PrimaryModifier returns the modifier "$mod" resolves to.
func (p Platform) PrimaryModifier() string {
	if p == PlatformApple {
		return Meta
	}
	return Control
}

// AltGraphAliases returns the modifiers that AltGraph stands in for.
//
// Windows reports AltGr as Control+Alt, macOS reports Option as AltGraph,
// and Linux uses a separate level-3 shift that aliases nothing.
func (p Platform) AltGraphAliases() []string {
	switch p {
	case PlatformWindows:
		return []string{Control, Alt}
	case PlatformApple:
		return []string{Alt}
	default:
		return nil
	}
}

// ModifierState reports whether mod is held for e, counting AltGraph
// as each of the platform's aliases.
func (p Platform) ModifierState(e Event, mod string) bool {
	if e.ModifierState(mod) {
		return true
	}
	return slices.Contains(p.AltGraphAliases(), mod) && e.ModifierState(AltGraph)
}
