package host

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/desk/internal/input/key"
)

func newSimTerminal(t *testing.T, width, height int) (*Terminal, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	term := NewTerminalWithScreen(screen)
	if err := term.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	screen.SetSize(width, height)
	t.Cleanup(term.Shutdown)
	return term, screen
}

func TestConvertKey(t *testing.T) {
	tests := []struct {
		name     string
		ev       *tcell.EventKey
		wantKey  string
		wantCode string
		wantMods key.Modifier
	}{
		{"rune", tcell.NewEventKey(tcell.KeyRune, 'n', tcell.ModNone), "n", "KeyN", key.ModNone},
		{"upper rune", tcell.NewEventKey(tcell.KeyRune, 'N', tcell.ModNone), "N", "KeyN", key.ModShift},
		{"digit", tcell.NewEventKey(tcell.KeyRune, '3', tcell.ModNone), "3", "Digit3", key.ModNone},
		{"punctuation", tcell.NewEventKey(tcell.KeyRune, '/', tcell.ModNone), "/", "", key.ModNone},
		{"space", tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), " ", "Space", key.ModNone},
		{"alt rune", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModAlt), "x", "KeyX", key.ModAlt},
		{"ctrl letter", tcell.NewEventKey(tcell.KeyCtrlW, 0, tcell.ModCtrl), "w", "KeyW", key.ModControl},
		{"ctrl x", tcell.NewEventKey(tcell.KeyCtrlX, 0, tcell.ModCtrl), "x", "KeyX", key.ModControl},
		{"escape", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), "Escape", "Escape", key.ModNone},
		{"enter", tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), "Enter", "Enter", key.ModNone},
		{"tab", tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone), "Tab", "Tab", key.ModNone},
		{"backtab", tcell.NewEventKey(tcell.KeyBacktab, 0, tcell.ModNone), "Tab", "Tab", key.ModShift},
		{"arrow", tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), "ArrowUp", "ArrowUp", key.ModNone},
		{"f5", tcell.NewEventKey(tcell.KeyF5, 0, tcell.ModNone), "F5", "F5", key.ModNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := convertKey(tt.ev)
			if !ok {
				t.Fatalf("convertKey() not ok")
			}
			if got.Key != tt.wantKey || got.Code != tt.wantCode || got.Modifiers != tt.wantMods {
				t.Errorf("convertKey() = %q/%q/%v, want %q/%q/%v",
					got.Key, got.Code, got.Modifiers, tt.wantKey, tt.wantCode, tt.wantMods)
			}
			if got.Type != key.KeyDown {
				t.Errorf("Type = %v, want keydown", got.Type)
			}
		})
	}
}

func TestTerminal_PollEvent(t *testing.T) {
	term, screen := newSimTerminal(t, 40, 10)

	screen.InjectKey(tcell.KeyCtrlW, 0, tcell.ModCtrl)
	ev := term.PollEvent()
	for ev.Type == EventResize {
		ev = term.PollEvent()
	}
	if ev.Type != EventKey {
		t.Fatalf("PollEvent() type = %v, want EventKey", ev.Type)
	}
	if ev.Key.Key != "w" || !ev.Key.Modifiers.Has(key.ModControl) {
		t.Errorf("PollEvent() key = %v", ev.Key)
	}

	term.Interrupt("wake")
	ev = term.PollEvent()
	if ev.Type != EventInterrupt || ev.Data != "wake" {
		t.Errorf("PollEvent() after Interrupt = %+v", ev)
	}
}

func screenLine(screen tcell.SimulationScreen, y int) string {
	cells, width, _ := screen.GetContents()
	var b strings.Builder
	for x := range width {
		c := cells[y*width+x]
		if len(c.Runes) == 0 {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(c.Runes[0])
	}
	return strings.TrimRight(b.String(), " ")
}

func TestTerminal_Draw(t *testing.T) {
	term, screen := newSimTerminal(t, 40, 6)

	term.Draw(View{
		Title: "desk",
		Windows: []Window{
			{PID: "0123456789abcdef", Title: "Noteable"},
			{PID: "fedcba9876543210", Title: "Calculator", Focused: true},
		},
		Status:  "2 windows",
		Pending: "Control+X",
	})

	if got := screenLine(screen, 0); got != " desk" {
		t.Errorf("title line = %q", got)
	}
	if got := screenLine(screen, 1); got != "  1  Noteable  01234567" {
		t.Errorf("line 1 = %q", got)
	}
	if got := screenLine(screen, 2); got != "  2  Calculator  fedcba98" {
		t.Errorf("line 2 = %q", got)
	}
	if got := screenLine(screen, 5); got != "2 windows Control+X" {
		t.Errorf("status line = %q", got)
	}

	cells, width, _ := screen.GetContents()
	if _, _, attrs := cells[2*width].Style.Decompose(); attrs&tcell.AttrReverse == 0 {
		t.Error("focused row is not highlighted")
	}
}

func TestTerminal_DrawEmptyAndClipped(t *testing.T) {
	term, screen := newSimTerminal(t, 12, 3)

	term.Draw(View{Title: "desk", Status: "a very long status line"})

	if got := screenLine(screen, 1); got != "  no windows" {
		t.Errorf("line 1 = %q", got)
	}
	if got := screenLine(screen, 2); got != "a very long" {
		t.Errorf("status line = %q", got)
	}
}
