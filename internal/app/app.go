// Package app wires the desk together. It owns the process supervisor,
// the keymap routers, the script runtime and the terminal host, and runs
// the event loop.
//
// Everything is built by New and torn down by Shutdown; there is no
// package level state.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/desk/internal/config"
	"github.com/dshills/desk/internal/config/watcher"
	"github.com/dshills/desk/internal/host"
	"github.com/dshills/desk/internal/input/key"
	"github.com/dshills/desk/internal/input/keymap"
	"github.com/dshills/desk/internal/observable"
	"github.com/dshills/desk/internal/plugin/lua"
	"github.com/dshills/desk/internal/process"
)

// Terminal is the host the event loop reads from and draws to.
type Terminal interface {
	Init() error
	Shutdown()
	PollEvent() host.Event
	Interrupt(data any)
	Draw(v host.View)
}

// Application is the central coordinator for all desk components.
//
// All state below the component fields is owned by the event loop
// goroutine. Supervisor hooks and keymap subscribers run on it too.
type Application struct {
	cfg    *config.Config
	logger *zap.Logger

	catalog    *process.Catalog
	supervisor *process.Supervisor
	target     *host.EventTarget
	router     *keymap.Router
	scripts    *lua.Runtime
	watcher    *watcher.Watcher
	term       Terminal

	routerOpts []keymap.Option

	focused  string
	status   string
	confirm  *confirmation
	noteable *noteable
	quit     bool

	offs     []func()
	tableSub *observable.Subscription
	reloads  chan struct{}

	running      atomic.Bool
	shutdownOnce sync.Once
}

// Option configures an Application.
type Option func(*Application)

// WithLogger sets the logger instead of building one from the config.
func WithLogger(l *zap.Logger) Option {
	return func(a *Application) {
		a.logger = l
	}
}

// WithTerminal sets the terminal. Run creates a tcell terminal otherwise.
func WithTerminal(t Terminal) Option {
	return func(a *Application) {
		a.term = t
	}
}

// WithRouterOptions adds options to every keymap router the desk creates.
func WithRouterOptions(opts ...keymap.Option) Option {
	return func(a *Application) {
		a.routerOpts = append(a.routerOpts, opts...)
	}
}

// New creates an Application from cfg and initializes every component
// in dependency order.
func New(cfg *config.Config, opts ...Option) (*Application, error) {
	a := &Application{
		cfg:     cfg,
		reloads: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		logger, err := NewLogger(cfg.Log)
		if err != nil {
			return nil, &InitError{Component: "logger", Err: err}
		}
		a.logger = logger
	}

	// 1. Processes
	a.catalog = process.NewCatalog()
	a.supervisor = process.NewSupervisor(process.WithLogger(a.logger.Named("supervisor")))
	for _, d := range a.builtinApps() {
		if err := a.catalog.Register(d); err != nil {
			return nil, &InitError{Component: "catalog", Err: err}
		}
	}

	// 2. Input
	a.target = host.NewEventTarget(a.logger.Named("host"))
	km, err := a.loadKeymap()
	if err != nil {
		return nil, &InitError{Component: "keymap", Err: err}
	}
	a.router = keymap.NewRouter(a.target, km, a.keymapOptions("router")...)
	a.bindCommands()
	a.tableSub = a.supervisor.Watch(a.onTableChange)

	// 3. Scripts
	a.scripts = lua.NewRuntime(a.supervisor, a.catalog, a.router,
		lua.WithLogger(a.logger),
		lua.WithTimeout(cfg.ScriptTimeout()),
	)
	a.loadScripts()

	// 4. Keymap hot reload
	if cfg.Keymap.Watch && cfg.Keymap.Path != "" {
		a.watchKeymap()
	}

	a.logger.Info("desk initialized",
		zap.Strings("apps", a.catalog.Keys()),
		zap.String("platform", cfg.KeyPlatform().String()),
		zap.Duration("timeout", cfg.KeymapTimeout()),
	)
	return a, nil
}

// keymapOptions returns the router options shared by every router.
func (a *Application) keymapOptions(name string) []keymap.Option {
	opts := []keymap.Option{
		keymap.WithTimeout(a.cfg.KeymapTimeout()),
		keymap.WithEventType(a.cfg.EventType()),
		keymap.WithPlatform(a.cfg.KeyPlatform()),
		keymap.WithLogger(a.logger.Named(name)),
		keymap.WithAfterFunc(func(d time.Duration, f func()) keymap.Timer {
			return time.AfterFunc(d, func() {
				f()
				a.wake()
			})
		}),
	}
	return append(opts, a.routerOpts...)
}

// loadKeymap returns the built-in keymap merged with the keymap file.
// A missing file is not an error.
func (a *Application) loadKeymap() (keymap.Keymap, error) {
	km := keymap.Default()
	if a.cfg.Keymap.Path == "" {
		return km, nil
	}

	file, err := keymap.NewLoader().LoadFile(a.cfg.Keymap.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return km, nil
	}
	if err != nil {
		return nil, err
	}
	return km.Merge(file), nil
}

func (a *Application) reloadKeymap() {
	km, err := a.loadKeymap()
	if err != nil {
		a.logger.Warn("keymap reload failed", zap.Error(err))
		a.status = "keymap: " + err.Error()
		return
	}
	a.router.Reload(km)
	a.logger.Info("keymap reloaded", zap.Int("bindings", len(km)))
	a.status = "keymap reloaded"
}

func (a *Application) watchKeymap() {
	w, err := watcher.New(watcher.WithLogger(a.logger.Named("watcher")))
	if err != nil {
		a.logger.Warn("keymap watcher unavailable", zap.Error(err))
		return
	}
	if err := w.Watch(a.cfg.Keymap.Path); err != nil {
		a.logger.Warn("cannot watch keymap", zap.String("path", a.cfg.Keymap.Path), zap.Error(err))
		_ = w.Stop()
		return
	}

	w.OnChange(func(watcher.Event) {
		select {
		case a.reloads <- struct{}{}:
		default:
		}
		a.wake()
	})
	a.watcher = w
}

func (a *Application) loadScripts() {
	loaded, err := a.scripts.LoadDir(a.cfg.Scripts.Dir)
	if err != nil {
		a.logger.Warn("script directory", zap.Error(err))
	}
	for _, path := range a.cfg.Scripts.Files {
		if err := a.scripts.LoadFile(path); err != nil {
			a.logger.Warn("script", zap.Error(err))
			continue
		}
		loaded = append(loaded, path)
	}
	if len(loaded) > 0 {
		a.logger.Info("scripts loaded", zap.Strings("files", loaded))
	}
}

// Run initializes the terminal and processes events until quit is
// requested, the terminal goes away or ctx is done.
func (a *Application) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer a.running.Store(false)

	if a.term == nil {
		t, err := host.NewTerminal()
		if err != nil {
			return &InitError{Component: "terminal", Err: err}
		}
		a.term = t
	}
	if err := a.term.Init(); err != nil {
		return &InitError{Component: "terminal", Err: err}
	}
	defer a.term.Shutdown()

	if a.watcher != nil {
		if err := a.watcher.Start(); err != nil {
			a.logger.Warn("keymap watcher", zap.Error(err))
		}
	}

	a.autostart()
	a.redraw()

	stop := context.AfterFunc(ctx, a.wake)
	defer stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		err := a.handleEvent(ctx, a.term.PollEvent())
		if errors.Is(err, ErrQuit) {
			a.logger.Info("quit requested")
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// handleEvent processes one terminal event and redraws.
// Returns ErrQuit if the application should exit.
func (a *Application) handleEvent(ctx context.Context, ev host.Event) error {
	switch ev.Type {
	case host.EventKey:
		// Terminals only report presses; a release follows each one so
		// keyup routers work too.
		a.target.Emit(ev.Key)
		up := ev.Key
		up.Type = key.KeyUp
		a.target.Emit(up)

	case host.EventInterrupt:
		if ctx.Err() != nil {
			return nil
		}
		select {
		case <-a.reloads:
			a.reloadKeymap()
		default:
		}

	case host.EventClosed:
		return ErrQuit

	case host.EventResize:

	default:
		return nil
	}

	if a.quit {
		return ErrQuit
	}
	a.redraw()
	return nil
}

// wake interrupts PollEvent so the loop redraws.
func (a *Application) wake() {
	if a.running.Load() && a.term != nil {
		a.term.Interrupt(nil)
	}
}

func (a *Application) autostart() {
	for _, appKey := range a.cfg.Apps.Autostart {
		a.launch(appKey, nil)
	}
}

// launch opens appKey and focuses it when it is a window.
func (a *Application) launch(appKey string, args []string) process.StartResult {
	result, err := a.catalog.Launch(a.supervisor, appKey, args, func(p *process.Process) {
		if p.IsWindow() {
			a.focused = p.PID
		}
	})
	if err != nil {
		a.logger.Warn("launch failed", zap.String("app", appKey), zap.Error(err))
		a.status = err.Error()
		return result
	}
	a.status = fmt.Sprintf("%s: %s", appKey, result)
	return result
}

// onTableChange runs on every change to the process table.
func (a *Application) onTableChange([]*process.Process) {
	if a.noteable != nil && a.supervisor.Find(a.noteable.pid) == nil {
		a.noteable.close()
		a.noteable = nil
	}
}

func (a *Application) redraw() {
	if a.term != nil {
		a.term.Draw(a.view())
	}
}

// view builds what the terminal shows.
func (a *Application) view() host.View {
	windows := a.supervisor.Windows()
	focused := a.focusedWindow(windows)

	rows := make([]host.Window, len(windows))
	for i, p := range windows {
		rows[i] = host.Window{PID: p.PID, Title: windowTitle(p), Focused: p == focused}
	}

	return host.View{
		Title:   fmt.Sprintf("desk  %d windows  %d processes", len(windows), a.supervisor.Len()),
		Windows: rows,
		Status:  a.status,
		Pending: strings.Join(a.router.Pending(), " | "),
	}
}

// focusedWindow resolves the focused window, falling back to the most
// recent one when the focused window went away.
func (a *Application) focusedWindow(windows []*process.Process) *process.Process {
	for _, p := range windows {
		if p.PID == a.focused {
			return p
		}
	}
	if len(windows) == 0 {
		a.focused = ""
		return nil
	}
	p := windows[len(windows)-1]
	a.focused = p.PID
	return p
}

func (a *Application) isFocused(pid string) bool {
	p := a.focusedWindow(a.supervisor.Windows())
	return p != nil && p.PID == pid
}

// Shutdown stops the watcher, force-closes every process and releases
// the routers and the script runtime. It is safe to call more than once.
func (a *Application) Shutdown() {
	a.shutdownOnce.Do(func() {
		if a.watcher != nil {
			if err := a.watcher.Stop(); err != nil {
				a.logger.Warn("stopping watcher", zap.Error(err))
			}
		}

		a.supervisor.CloseAll(true)
		a.tableSub.Unsubscribe()
		if a.noteable != nil {
			a.noteable.close()
			a.noteable = nil
		}

		for _, off := range a.offs {
			off()
		}
		a.offs = nil
		a.scripts.Close()
		a.router.Close()

		a.logger.Info("desk shut down")
		_ = a.logger.Sync()
	})
}

// Catalog returns the application catalog.
func (a *Application) Catalog() *process.Catalog {
	return a.catalog
}

// Supervisor returns the root process supervisor.
func (a *Application) Supervisor() *process.Supervisor {
	return a.supervisor
}

// Router returns the desktop keymap router.
func (a *Application) Router() *keymap.Router {
	return a.router
}

// Scripts returns the script runtime.
func (a *Application) Scripts() *lua.Runtime {
	return a.scripts
}

// Status returns the status line text.
func (a *Application) Status() string {
	return a.status
}
