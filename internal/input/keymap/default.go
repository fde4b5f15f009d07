package keymap

import "fmt"

// Binding identifiers used by the desk shell.
const (
	CommandCancel  = "commands.cancel"
	CommandConfirm = "commands.confirm"

	WindowClose = "desk.window.close"
	WindowNext  = "desk.window.next"
	WindowPrev  = "desk.window.prev"
	WindowKill  = "desk.window.kill"
	Quit        = "desk.quit"
	Launcher    = "desk.launcher"
)

// LaunchSlots is the number of "desk.launch.N" bindings in the default keymap.
const LaunchSlots = 9

// LaunchIdentifier returns the binding identifier for launcher slot n (1-based).
func LaunchIdentifier(n int) string {
	return fmt.Sprintf("desk.launch.%d", n)
}

// Default returns the built-in desk keymap.
//
// Terminal input cannot report Meta reliably, so the shell bindings use
// Control explicitly. "$mod" bindings still work in loaded keymaps.
func Default() Keymap {
	km := Keymap{
		CommandCancel: {
			Name:        "Cancel",
			Keybindings: []string{"Escape"},
		},
		CommandConfirm: {
			Name:        "Confirm",
			Keybindings: []string{"Y", "Enter"},
		},
		WindowClose: {
			Name:        "Close window",
			Keybindings: []string{"Control+W"},
		},
		WindowKill: {
			Name:        "Force close window",
			Keybindings: []string{"Control+X K"},
		},
		WindowNext: {
			Name:        "Next window",
			Keybindings: []string{"Control+X O", "Tab"},
		},
		WindowPrev: {
			Name:        "Previous window",
			Keybindings: []string{"Control+X P", "Shift+Tab"},
		},
		Launcher: {
			Name:        "Show launcher",
			Keybindings: []string{"Control+X L"},
		},
		Quit: {
			Name:        "Quit",
			Keybindings: []string{"Control+X Control+C"},
		},
	}

	for n := 1; n <= LaunchSlots; n++ {
		km[LaunchIdentifier(n)] = Binding{
			Name:        fmt.Sprintf("Launch application %d", n),
			Keybindings: []string{fmt.Sprintf("Control+X %d", n)},
		}
	}

	return km
}
