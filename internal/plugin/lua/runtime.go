package lua

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/desk/internal/input/key"
	"github.com/dshills/desk/internal/input/keymap"
	"github.com/dshills/desk/internal/process"
)

// ModuleName is the global table scripts use.
const ModuleName = "desk"

// StopValue is the value of desk.STOP.
const StopValue = "stop"

// Supervisor is the part of process.Supervisor scripts drive.
type Supervisor interface {
	Open(d process.Descriptor, args []string, onStarted func(p *process.Process)) process.StartResult
	Close(pid string, force bool) process.ExitResult
	Windows() []*process.Process
}

// Catalog is the part of process.Catalog scripts drive.
type Catalog interface {
	Register(d process.Descriptor) error
	Get(key string) (process.Descriptor, bool)
	Keys() []string
}

// Router is the part of keymap.Router scripts drive.
type Router interface {
	On(identifier, label string, trigger keymap.Trigger) (off func())
}

// ScriptComponent is the component placed in a descriptor slot by a script.
type ScriptComponent struct {
	Script string
	Title  string
}

// Runtime runs desk scripts against a supervisor, a catalog and a router.
type Runtime struct {
	state      *State
	supervisor Supervisor
	catalog    Catalog
	router     Router
	logger     *zap.Logger

	// script is the file being loaded, used to tag registered apps.
	script string

	registered []string

	// offs holds the live script subscriptions by id until they are
	// removed by the script or by Close.
	offs   map[uint64]func()
	nextID uint64
}

// Option configures a Runtime.
type Option func(*runtimeConfig)

type runtimeConfig struct {
	logger  *zap.Logger
	timeout time.Duration
}

// WithLogger sets the runtime's logger. desk.log writes to it.
func WithLogger(l *zap.Logger) Option {
	return func(c *runtimeConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTimeout sets the deadline of each call into a script.
func WithTimeout(d time.Duration) Option {
	return func(c *runtimeConfig) {
		c.timeout = d
	}
}

// NewRuntime creates a runtime with the desk module installed.
func NewRuntime(s Supervisor, c Catalog, r Router, opts ...Option) *Runtime {
	cfg := runtimeConfig{logger: zap.NewNop(), timeout: DefaultCallTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	rt := &Runtime{
		state:      NewState(WithCallTimeout(cfg.timeout)),
		supervisor: s,
		catalog:    c,
		router:     r,
		logger:     cfg.logger.Named("lua"),
		offs:       make(map[uint64]func()),
	}

	mod := rt.state.RegisterModule(ModuleName, map[string]lua.LGFunction{
		"register_app": rt.registerApp,
		"open":         rt.open,
		"close":        rt.close,
		"on":           rt.on,
		"windows":      rt.windows,
		"apps":         rt.apps,
		"log":          rt.log,
	})
	mod.RawSetString("STOP", lua.LString(StopValue))
	return rt
}

// State returns the underlying state.
func (rt *Runtime) State() *State {
	return rt.state
}

// LoadFile runs one script.
func (rt *Runtime) LoadFile(path string) error {
	rt.script = path
	defer func() { rt.script = "" }()

	if err := rt.state.DoFile(path); err != nil {
		return fmt.Errorf("loading script %s: %w", path, err)
	}
	rt.logger.Debug("script loaded", zap.String("path", path))
	return nil
}

// LoadDir runs every *.lua file in dir in name order and returns the
// files that loaded. A missing directory loads nothing. A failing script
// does not stop the others; all failures are joined.
func (rt *Runtime) LoadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading script directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".lua") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var loaded []string
	var errs []error
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := rt.LoadFile(path); err != nil {
			errs = append(errs, err)
			continue
		}
		loaded = append(loaded, path)
	}
	return loaded, errors.Join(errs...)
}

// DoString runs a chunk of script.
func (rt *Runtime) DoString(code string) error {
	return rt.state.DoString(code)
}

// Registered returns the application keys registered by scripts.
func (rt *Runtime) Registered() []string {
	return append([]string(nil), rt.registered...)
}

// Close removes every script subscriber and closes the state.
func (rt *Runtime) Close() {
	for _, off := range rt.offs {
		off()
	}
	clear(rt.offs)
	rt.state.Close()
}

// desk.register_app{...}
func (rt *Runtime) registerApp(L *lua.LState) int {
	t := L.CheckTable(1)

	d := process.Descriptor{
		Key:         stringField(t, "key"),
		Name:        stringField(t, "name"),
		Description: stringField(t, "description"),
		Author:      stringField(t, "author"),
		Icon:        stringField(t, "icon"),
		Location:    rt.location(),
		Flags: process.Flags{
			Multiple:       lua.LVAsBool(t.RawGetString("multiple")),
			SpawnsChildren: lua.LVAsBool(t.RawGetString("spawns_children")),
		},
	}

	switch w := t.RawGetString("window").(type) {
	case lua.LBool:
		if w {
			d.Components.Window = ScriptComponent{Script: rt.script, Title: d.Title()}
		}
	case lua.LString:
		d.Components.Window = ScriptComponent{Script: rt.script, Title: string(w)}
	}
	if lua.LVAsBool(t.RawGetString("background")) {
		d.Components.Background = ScriptComponent{Script: rt.script, Title: d.Title()}
	}
	if details, ok := t.RawGetString("details").(*lua.LTable); ok {
		if m, ok := toGoValue(details).(map[string]any); ok {
			d.Details = m
		}
	}

	if fn := funcField(t, "preflight"); fn != nil {
		d.Events.Preflight = rt.preflightHook(fn)
	}
	if fn := funcField(t, "launched"); fn != nil {
		d.Events.Launched = rt.launchedHook(d.Key, fn)
	}
	if fn := funcField(t, "exit"); fn != nil {
		d.Events.Exit = rt.exitHook(d.Key, fn)
	}

	if err := rt.catalog.Register(d); err != nil {
		L.RaiseError("register_app: %v", err)
		return 0
	}
	rt.registered = append(rt.registered, d.Key)
	rt.logger.Debug("script registered app", zap.String("key", d.Key), zap.String("location", d.Location))
	return 0
}

func (rt *Runtime) location() string {
	if rt.script == "" {
		return "script"
	}
	return "script:" + filepath.Base(rt.script)
}

// preflightHook refuses the launch when fn errors or returns false. A
// string second result becomes the refusal reason.
func (rt *Runtime) preflightHook(fn *lua.LFunction) func(p *process.Process) error {
	return func(p *process.Process) error {
		ret, err := rt.state.Call(fn, rt.processTable(p))
		if err != nil {
			return err
		}
		if len(ret) > 0 && ret[0] == lua.LFalse {
			if len(ret) > 1 {
				if reason, ok := ret[1].(lua.LString); ok && reason != "" {
					return fmt.Errorf("%w: %s", process.ErrRefused, string(reason))
				}
			}
			return process.ErrRefused
		}
		return nil
	}
}

func (rt *Runtime) launchedHook(appKey string, fn *lua.LFunction) func(p *process.Process) {
	return func(p *process.Process) {
		if _, err := rt.state.Call(fn, rt.processTable(p)); err != nil {
			rt.logger.Warn("launched hook failed", zap.String("app", appKey), zap.Error(err))
		}
	}
}

// exitHook hands fn a complete function. If fn fails the process is
// completed anyway so a broken script cannot pin it open.
func (rt *Runtime) exitHook(appKey string, fn *lua.LFunction) func(complete func()) {
	return func(complete func()) {
		L := rt.state.L
		completeFn := L.NewFunction(func(L *lua.LState) int {
			complete()
			return 0
		})
		if _, err := rt.state.Call(fn, completeFn); err != nil {
			rt.logger.Warn("exit hook failed", zap.String("app", appKey), zap.Error(err))
			complete()
		}
	}
}

// desk.open(key, ...) -> result, pid
func (rt *Runtime) open(L *lua.LState) int {
	appKey := L.CheckString(1)
	args := make([]string, 0, L.GetTop())
	for i := 2; i <= L.GetTop(); i++ {
		args = append(args, lua.LVAsString(L.ToStringMeta(L.Get(i))))
	}

	d, ok := rt.catalog.Get(appKey)
	if !ok {
		L.Push(lua.LString(process.StartFailed.String()))
		L.Push(lua.LNil)
		L.Push(lua.LString(fmt.Sprintf("%v: %s", process.ErrUnknownApplication, appKey)))
		return 3
	}

	var pid string
	result := rt.supervisor.Open(d, args, func(p *process.Process) {
		pid = p.PID
	})

	L.Push(lua.LString(result.String()))
	if pid != "" {
		L.Push(lua.LString(pid))
	} else {
		L.Push(lua.LNil)
	}
	return 2
}

// desk.close(pid, force) -> result
func (rt *Runtime) close(L *lua.LState) int {
	pid := L.CheckString(1)
	force := L.OptBool(2, false)
	L.Push(lua.LString(rt.supervisor.Close(pid, force).String()))
	return 1
}

// desk.on(identifier, label, fn) -> off
func (rt *Runtime) on(L *lua.LState) int {
	identifier := L.CheckString(1)
	label := L.CheckString(2)
	fn := L.CheckFunction(3)

	off := rt.router.On(identifier, label, func(ctx keymap.TriggerContext) keymap.Propagation {
		ret, err := rt.state.Call(fn, rt.contextTable(ctx))
		if err != nil {
			rt.logger.Warn("script subscriber failed",
				zap.String("identifier", identifier),
				zap.String("label", label),
				zap.Error(err),
			)
			return keymap.Continue
		}
		if len(ret) > 0 && (ret[0] == lua.LFalse || ret[0] == lua.LString(StopValue)) {
			return keymap.Stop
		}
		return keymap.Continue
	})
	id := rt.nextID
	rt.nextID++
	rt.offs[id] = off

	L.Push(L.NewFunction(func(L *lua.LState) int {
		if _, ok := rt.offs[id]; ok {
			delete(rt.offs, id)
			off()
		}
		return 0
	}))
	return 1
}

// desk.windows() -> {proc, ...}
func (rt *Runtime) windows(L *lua.LState) int {
	windows := rt.supervisor.Windows()
	t := L.CreateTable(len(windows), 0)
	for i, p := range windows {
		t.RawSetInt(i+1, rt.processTable(p))
	}
	L.Push(t)
	return 1
}

// desk.apps() -> {key, ...}
func (rt *Runtime) apps(L *lua.LState) int {
	L.Push(stringsToTable(L, rt.catalog.Keys()))
	return 1
}

// desk.log(msg [, level])
func (rt *Runtime) log(L *lua.LState) int {
	msg := L.CheckString(1)
	level := zapcore.InfoLevel
	if name := L.OptString(2, ""); name != "" {
		parsed, err := zapcore.ParseLevel(name)
		if err != nil {
			L.ArgError(2, err.Error())
			return 0
		}
		level = parsed
	}
	if ce := rt.logger.Check(level, msg); ce != nil {
		ce.Write(zap.String("script", rt.location()))
	}
	return 0
}

// processTable builds the Lua view of a process.
func (rt *Runtime) processTable(p *process.Process) *lua.LTable {
	L := rt.state.L
	t := L.CreateTable(0, 8)
	t.RawSetString("pid", lua.LString(p.PID))
	t.RawSetString("key", lua.LString(p.App.Key))
	t.RawSetString("name", lua.LString(p.App.Title()))
	t.RawSetString("args", stringsToTable(L, p.App.Arguments))
	t.RawSetString("created", lua.LNumber(p.Created.Unix()))
	t.RawSetString("window", lua.LBool(p.IsWindow()))
	t.RawSetString("children", lua.LBool(p.Children != nil))
	t.RawSetString("details", toLuaValue(L, p.App.Details))
	t.RawSetString("exit", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(p.Exit(L.OptBool(1, false)).String()))
		return 1
	}))
	return t
}

// contextTable builds the Lua view of a trigger context.
func (rt *Runtime) contextTable(ctx keymap.TriggerContext) *lua.LTable {
	L := rt.state.L
	t := L.CreateTable(0, 6)
	t.RawSetString("name", lua.LString(ctx.Name))
	t.RawSetString("identifier", lua.LString(ctx.Keybinding.Identifier))
	t.RawSetString("binding", lua.LString(ctx.Keybinding.Name))
	t.RawSetString("keybindings", stringsToTable(L, ctx.Keybinding.Keybindings))
	t.RawSetString("trigger", lua.LString(key.FormatSequence(ctx.Trigger)))
	t.RawSetString("key", lua.LString(ctx.Event.Key))
	t.RawSetString("code", lua.LString(ctx.Event.Code))
	return t
}
