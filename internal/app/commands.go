package app

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/desk/internal/input/keymap"
	"github.com/dshills/desk/internal/process"
)

// confirmation is a pending yes/no question on the status line.
type confirmation struct {
	yes func()
	no  func()
}

// ask shows prompt and routes the next confirm or cancel to yes or no.
func (a *Application) ask(prompt string, yes, no func()) {
	a.confirm = &confirmation{yes: yes, no: no}
	a.status = prompt
}

// bindCommands subscribes the desktop to its own keymap.
func (a *Application) bindCommands() {
	a.on(keymap.CommandConfirm, a.cmdConfirm)
	a.on(keymap.CommandCancel, a.cmdCancel)
	a.on(keymap.WindowClose, a.command(func() { a.exitFocused(false) }))
	a.on(keymap.WindowKill, a.command(func() { a.exitFocused(true) }))
	a.on(keymap.WindowNext, a.command(func() { a.cycleFocus(1) }))
	a.on(keymap.WindowPrev, a.command(func() { a.cycleFocus(-1) }))
	a.on(keymap.Launcher, a.command(a.showLauncher))
	a.on(keymap.Quit, a.command(func() { a.quit = true }))

	for n := 1; n <= keymap.LaunchSlots; n++ {
		a.on(keymap.LaunchIdentifier(n), a.command(func() { a.launchSlot(n) }))
	}
}

func (a *Application) on(identifier string, trigger keymap.Trigger) {
	a.offs = append(a.offs, a.router.On(identifier, "desk", trigger))
}

// command adapts fn to a trigger that lets later subscribers run.
func (a *Application) command(fn func()) keymap.Trigger {
	return func(ctx keymap.TriggerContext) keymap.Propagation {
		a.logger.Debug("command", zap.String("identifier", ctx.Keybinding.Identifier))
		fn()
		return keymap.Continue
	}
}

func (a *Application) cmdConfirm(keymap.TriggerContext) keymap.Propagation {
	c := a.confirm
	if c == nil {
		return keymap.Continue
	}
	a.confirm = nil
	a.status = ""
	c.yes()
	return keymap.Stop
}

func (a *Application) cmdCancel(keymap.TriggerContext) keymap.Propagation {
	c := a.confirm
	if c == nil {
		a.status = ""
		return keymap.Continue
	}
	a.confirm = nil
	a.status = "cancelled"
	if c.no != nil {
		c.no()
	}
	return keymap.Stop
}

// exitFocused closes the focused window through its owning supervisor.
func (a *Application) exitFocused(force bool) {
	p := a.focusedWindow(a.supervisor.Windows())
	if p == nil {
		a.status = "no window"
		return
	}

	result := p.Exit(force)
	a.logger.Debug("window exit",
		zap.String("pid", p.PID),
		zap.Bool("force", force),
		zap.Stringer("result", result),
	)
	if result == process.ExitSuccess {
		a.status = "closed " + windowTitle(p)
	}
}

// cycleFocus moves focus by delta through the window list, wrapping.
func (a *Application) cycleFocus(delta int) {
	windows := a.supervisor.Windows()
	focused := a.focusedWindow(windows)
	if focused == nil {
		return
	}

	for i, p := range windows {
		if p == focused {
			next := (i + delta + len(windows)) % len(windows)
			a.focused = windows[next].PID
			return
		}
	}
}

// launcherKeys returns the window applications in registration order,
// one per launcher slot.
func (a *Application) launcherKeys() []string {
	var keys []string
	for _, d := range a.catalog.List() {
		if d.HasWindow() {
			keys = append(keys, d.Key)
		}
		if len(keys) == keymap.LaunchSlots {
			break
		}
	}
	return keys
}

func (a *Application) showLauncher() {
	keys := a.launcherKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		d, _ := a.catalog.Get(k)
		parts[i] = fmt.Sprintf("%d %s", i+1, d.Title())
	}
	a.status = "launch: " + strings.Join(parts, "  ")
}

func (a *Application) launchSlot(n int) {
	keys := a.launcherKeys()
	if n < 1 || n > len(keys) {
		a.status = fmt.Sprintf("launcher slot %d is empty", n)
		return
	}
	a.launch(keys[n-1], nil)
}
