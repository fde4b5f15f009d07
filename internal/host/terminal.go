package host

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// Window is one row of the window list.
type Window struct {
	PID     string
	Title   string
	Focused bool
}

// View is everything the terminal draws.
type View struct {
	Title   string
	Windows []Window

	// Status is shown on the bottom line.
	Status string

	// Pending is the partially typed key sequence, shown after Status.
	Pending string
}

var (
	styleTitle   = tcell.StyleDefault.Reverse(true).Bold(true)
	styleWindow  = tcell.StyleDefault
	styleFocused = tcell.StyleDefault.Reverse(true)
	styleStatus  = tcell.StyleDefault.Dim(true)
	stylePending = tcell.StyleDefault.Bold(true)
)

// Terminal is a tcell screen that produces key events and draws a View.
type Terminal struct {
	screen tcell.Screen
	mu     sync.Mutex
}

// NewTerminal creates a terminal on the controlling tty.
func NewTerminal() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("creating screen: %w", err)
	}
	return &Terminal{screen: screen}, nil
}

// NewTerminalWithScreen wraps an existing screen, typically a simulation
// screen in tests.
func NewTerminalWithScreen(screen tcell.Screen) *Terminal {
	return &Terminal{screen: screen}
}

// Init initializes the screen.
func (t *Terminal) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.screen.Init(); err != nil {
		return fmt.Errorf("initializing screen: %w", err)
	}
	t.screen.HideCursor()
	return nil
}

// Shutdown restores the terminal. PollEvent then reports EventClosed.
func (t *Terminal) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Fini()
}

// Size returns the screen size.
func (t *Terminal) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.screen.Size()
}

// PollEvent blocks until the next event.
func (t *Terminal) PollEvent() Event {
	return convertEvent(t.screen.PollEvent())
}

// Interrupt wakes PollEvent with an EventInterrupt carrying data.
func (t *Terminal) Interrupt(data any) {
	_ = t.screen.PostEvent(tcell.NewEventInterrupt(data)) // best-effort; queue may be full
}

// Draw renders v and shows it.
func (t *Terminal) Draw(v View) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.screen.Clear()
	width, height := t.screen.Size()
	if width <= 0 || height <= 0 {
		return
	}

	t.fillLine(0, width, styleTitle)
	t.drawText(1, 0, width, v.Title, styleTitle)

	row := 1
	if len(v.Windows) == 0 && height > 2 {
		t.drawText(2, row, width, "no windows", styleStatus)
	}
	for i, w := range v.Windows {
		if row >= height-1 {
			break
		}
		style := styleWindow
		if w.Focused {
			style = styleFocused
			t.fillLine(row, width, style)
		}
		t.drawText(2, row, width, fmt.Sprintf("%d  %s  %s", i+1, w.Title, shortPID(w.PID)), style)
		row++
	}

	if height > 1 {
		x := t.drawText(0, height-1, width, v.Status, styleStatus)
		if v.Pending != "" {
			t.drawText(x+1, height-1, width, v.Pending, stylePending)
		}
	}

	t.screen.Show()
}

func (t *Terminal) fillLine(y, width int, style tcell.Style) {
	for x := range width {
		t.screen.SetContent(x, y, ' ', nil, style)
	}
}

// drawText draws s from x, clipped at width, and returns the column after
// the last cell drawn.
func (t *Terminal) drawText(x, y, width int, s string, style tcell.Style) int {
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if x+w > width {
			break
		}
		t.screen.SetContent(x, y, r, nil, style)
		x += w
	}
	return x
}

func shortPID(pid string) string {
	if len(pid) > 8 {
		return pid[:8]
	}
	return pid
}
