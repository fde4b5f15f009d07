package app

import (
	"fmt"
	"strings"

	"github.com/dshills/desk/internal/input/key"
	"github.com/dshills/desk/internal/input/keymap"
	"github.com/dshills/desk/internal/plugin/lua"
	"github.com/dshills/desk/internal/process"
)

// Built-in application keys.
const (
	CalculatorKey = "system.calculator"
	NoteableKey   = "system.noteable"
	SettingsKey   = "system.settings"
	TaskerKey     = "system.tasker"

	// TaskKey is the child application tasker spawns per argument. It is
	// not in the catalog.
	TaskKey = "system.tasker.task"
)

// Noteable binding identifiers.
const (
	NoteableKeymapHelp = "noteable.keymap"
	NoteableNewNote    = "noteable.notes.new"
	NoteableSaveNote   = "noteable.notes.save"
)

// windowComponent is the window slot of a built-in application.
type windowComponent struct {
	title string
}

// builtinApps returns the descriptors that ship with the desk.
func (a *Application) builtinApps() []process.Descriptor {
	return []process.Descriptor{
		{
			Key:         CalculatorKey,
			Name:        "Calculator",
			Description: "a simple calculator demo",
			Icon:        "calculator",
			Location:    process.LocationSystem,
			Components:  process.Components{Window: windowComponent{title: "Calculator"}},
			Flags:       process.Flags{Multiple: true},
		},
		{
			Key:         NoteableKey,
			Name:        "Noteable",
			Description: "A notepad you'll remember",
			Icon:        "noteable",
			Location:    process.LocationSystem,
			Components:  process.Components{Window: windowComponent{title: "Noteable"}},
			Events: process.Events{
				Launched: a.noteableLaunched,
				Exit:     a.noteableExit,
			},
		},
		{
			Key:         SettingsKey,
			Name:        "Settings",
			Description: "desk settings",
			Icon:        "settings",
			Location:    process.LocationSystem,
			Components:  process.Components{Window: windowComponent{title: "Settings"}},
			Details: map[string]any{
				"keymap":     a.cfg.Keymap.Path,
				"timeout_ms": a.cfg.Keymap.TimeoutMS,
				"event":      a.cfg.EventType().String(),
				"platform":   a.cfg.KeyPlatform().String(),
				"scripts":    a.cfg.Scripts.Dir,
			},
		},
		{
			Key:         TaskerKey,
			Name:        "Tasker",
			Description: "Tasker",
			Icon:        "tasker",
			Location:    process.LocationSystem,
			Components:  process.Components{Window: windowComponent{title: "Tasker"}},
			Flags:       process.Flags{SpawnsChildren: true},
			Events:      process.Events{Launched: a.taskerLaunched},
		},
	}
}

func taskDescriptor() process.Descriptor {
	return process.Descriptor{
		Key:        TaskKey,
		Name:       "Task",
		Location:   process.LocationSystem,
		Components: process.Components{Window: windowComponent{title: "Task"}},
		Flags:      process.Flags{Multiple: true},
	}
}

// taskerLaunched opens one task window per launch argument.
func (a *Application) taskerLaunched(p *process.Process) {
	for _, arg := range p.App.Arguments {
		p.Children.Open(taskDescriptor(), []string{arg}, nil)
	}
}

// windowTitle returns the title drawn for a window process.
func windowTitle(p *process.Process) string {
	title := p.App.Title()
	switch c := p.App.Components.Window.(type) {
	case windowComponent:
		title = c.title
	case lua.ScriptComponent:
		if c.Title != "" {
			title = c.Title
		}
	}
	if len(p.App.Arguments) > 0 {
		title += " (" + strings.Join(p.App.Arguments, " ") + ")"
	}
	return title
}

// NoteableKeymap returns the keymap noteable installs while it runs.
func NoteableKeymap() keymap.Keymap {
	return keymap.Keymap{
		NoteableNewNote: {
			Name:        "New Note",
			Keybindings: []string{"N"},
		},
		NoteableSaveNote: {
			Name:        "Save Note",
			Keybindings: []string{key.ModAlias + "+S"},
		},
		NoteableKeymapHelp: {
			Name:        "Keymap",
			Keybindings: []string{key.ModAlias + "+/"},
		},
	}
}

// noteable is the state of the running noteable process. Its router lives
// exactly as long as the process.
type noteable struct {
	pid    string
	router *keymap.Router
	notes  int
	saved  int
}

func (n *noteable) close() {
	n.router.Close()
}

func (n *noteable) unsaved() int {
	return n.notes - n.saved
}

func (a *Application) noteableLaunched(p *process.Process) {
	n := &noteable{pid: p.PID}
	n.router = keymap.NewRouter(a.target, NoteableKeymap(), a.keymapOptions("noteable")...)

	// Noteable commands only apply while its window has focus.
	focused := func(fn func()) keymap.Trigger {
		return func(keymap.TriggerContext) keymap.Propagation {
			if a.isFocused(n.pid) {
				fn()
			}
			return keymap.Continue
		}
	}

	n.router.On(NoteableNewNote, "noteable", focused(func() {
		n.notes++
		a.status = fmt.Sprintf("noteable: note %d created", n.notes)
	}))
	n.router.On(NoteableSaveNote, "noteable", focused(func() {
		n.saved = n.notes
		a.status = fmt.Sprintf("noteable: %d notes saved", n.saved)
	}))
	n.router.On(NoteableKeymapHelp, "noteable", focused(func() {
		a.status = describeKeymap(n.router.Keymap(), a.cfg.KeyPlatform())
	}))

	a.noteable = n
}

// noteableExit asks before discarding unsaved notes.
func (a *Application) noteableExit(complete func()) {
	n := a.noteable
	if n == nil || n.unsaved() == 0 {
		complete()
		return
	}
	a.ask(fmt.Sprintf("noteable: %d unsaved notes, close anyway? (y/Escape)", n.unsaved()),
		complete,
		func() { a.status = "noteable: close cancelled" },
	)
}

// describeKeymap lists bindings as "Keys Name" pairs in identifier order,
// with $mod resolved for platform.
func describeKeymap(km keymap.Keymap, platform key.Platform) string {
	parts := make([]string, 0, len(km))
	for _, id := range km.Identifiers() {
		b := km[id]
		keys := make([]string, len(b.Keybindings))
		for i, kb := range b.Keybindings {
			keys[i] = key.FormatSequence(key.ParseFor(platform, kb))
		}
		parts = append(parts, strings.Join(keys, ", ")+" "+b.Name)
	}
	return strings.Join(parts, "  ")
}
