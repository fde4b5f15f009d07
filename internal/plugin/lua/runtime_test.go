package lua

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/dshills/desk/internal/input/key"
	"github.com/dshills/desk/internal/input/keymap"
	"github.com/dshills/desk/internal/process"
)

type fakeRouter struct {
	subs map[string][]keymap.Subscriber
	offs int
}

func (r *fakeRouter) On(identifier, label string, trigger keymap.Trigger) func() {
	r.subs[identifier] = append(r.subs[identifier], keymap.Subscriber{Label: label, Trigger: trigger})
	return func() { r.offs++ }
}

func (r *fakeRouter) fire(identifier string) []keymap.Propagation {
	var results []keymap.Propagation
	for _, s := range r.subs[identifier] {
		results = append(results, s.Trigger(keymap.TriggerContext{
			Name:       s.Label,
			Keybinding: keymap.Info{Identifier: identifier, Name: "Close", Keybindings: []string{"Control+W"}},
			Trigger:    key.Parse("Control+W"),
			Event:      key.NewEvent("w", "KeyW", key.ModControl),
		}))
	}
	return results
}

type fixture struct {
	rt      *Runtime
	sup     *process.Supervisor
	catalog *process.Catalog
	router  *fakeRouter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sup:     process.NewSupervisor(),
		catalog: process.NewCatalog(),
		router:  &fakeRouter{subs: make(map[string][]keymap.Subscriber)},
	}
	f.rt = NewRuntime(f.sup, f.catalog, f.router)
	t.Cleanup(f.rt.Close)
	return f
}

func (f *fixture) run(t *testing.T, code string) {
	t.Helper()
	if err := f.rt.DoString(code); err != nil {
		t.Fatalf("DoString: %v", err)
	}
}

func (f *fixture) global(name string) string {
	return f.rt.State().GetGlobal(name).String()
}

func TestRegisterAndOpen(t *testing.T) {
	f := newFixture(t)

	f.run(t, `
desk.register_app{
    key = "clock",
    name = "Clock",
    window = true,
    details = { version = "1.0" },
    launched = function(proc) launched_args = table.concat(proc.args, ",") end,
}
result, pid = desk.open("clock", "utc", 3)
again = desk.open("clock")
count = #desk.windows()
first = desk.windows()[1].name
`)

	d, ok := f.catalog.Get("clock")
	if !ok {
		t.Fatal("clock not registered")
	}
	if !d.HasWindow() || d.Location != "script" || d.Details["version"] != "1.0" {
		t.Errorf("descriptor = %+v", d)
	}
	if f.global("result") != "success" || f.global("again") != "duplicate" {
		t.Errorf("results = %s, %s", f.global("result"), f.global("again"))
	}
	if p := f.sup.Find(f.global("pid")); p == nil {
		t.Errorf("pid %q not in the table", f.global("pid"))
	}
	if f.global("launched_args") != "utc,3" {
		t.Errorf("launched args = %q", f.global("launched_args"))
	}
	if f.global("count") != "1" || f.global("first") != "Clock" {
		t.Errorf("windows = %s, %s", f.global("count"), f.global("first"))
	}
	if !slices.Equal(f.rt.Registered(), []string{"clock"}) {
		t.Errorf("Registered() = %v", f.rt.Registered())
	}
}

func TestOpenUnknown(t *testing.T) {
	f := newFixture(t)
	f.run(t, `result, pid, err = desk.open("nope")`)

	if f.global("result") != "failed" || f.global("pid") != "nil" {
		t.Errorf("open(nope) = %s, %s", f.global("result"), f.global("pid"))
	}
	if !strings.Contains(f.global("err"), "nope") {
		t.Errorf("err = %q", f.global("err"))
	}
}

func TestPreflightRefuses(t *testing.T) {
	f := newFixture(t)

	f.run(t, `
desk.register_app{
    key = "locked",
    preflight = function(proc) return false, "locked by policy" end,
}
desk.register_app{
    key = "broken",
    preflight = function(proc) error("boom") end,
}
desk.register_app{
    key = "open",
    preflight = function(proc) return true end,
}
locked = desk.open("locked")
broken = desk.open("broken")
opened = desk.open("open")
`)

	if f.global("locked") != "failed" || f.global("broken") != "failed" || f.global("opened") != "success" {
		t.Errorf("results = %s, %s, %s", f.global("locked"), f.global("broken"), f.global("opened"))
	}
	if f.sup.Len() != 1 {
		t.Errorf("Len() = %d, want 1", f.sup.Len())
	}
}

func TestExitHookDefers(t *testing.T) {
	f := newFixture(t)

	f.run(t, `
desk.register_app{
    key = "notes",
    window = "Notes",
    exit = function(complete) pending = complete end,
}
result, pid = desk.open("notes")
closed = desk.close(pid, false)
`)

	if f.global("closed") != "deferred" {
		t.Fatalf("close = %s, want deferred", f.global("closed"))
	}
	if f.sup.Len() != 1 {
		t.Fatalf("process removed before complete")
	}

	f.run(t, `pending()`)
	if f.sup.Len() != 0 {
		t.Errorf("process still present after complete")
	}
}

func TestExitHookFailureCompletes(t *testing.T) {
	f := newFixture(t)

	f.run(t, `
desk.register_app{ key = "bad", exit = function(complete) error("boom") end }
result, pid = desk.open("bad")
closed = desk.close(pid)
`)

	if f.global("closed") != "deferred" || f.sup.Len() != 0 {
		t.Errorf("close = %s, Len() = %d", f.global("closed"), f.sup.Len())
	}
}

func TestProcessExitFromScript(t *testing.T) {
	f := newFixture(t)

	f.run(t, `
desk.register_app{ key = "a", window = true, multiple = true }
desk.open("a")
desk.open("a")
for _, w in ipairs(desk.windows()) do last = w.exit(true) end
`)

	if f.global("last") != "success" || f.sup.Len() != 0 {
		t.Errorf("exit = %s, Len() = %d", f.global("last"), f.sup.Len())
	}
}

func TestRegisterDuplicateRaises(t *testing.T) {
	f := newFixture(t)
	f.run(t, `desk.register_app{ key = "dup" }`)

	err := f.rt.DoString(`desk.register_app{ key = "dup" }`)
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Errorf("duplicate register error = %v", err)
	}
	if err := f.rt.DoString(`desk.register_app{ name = "no key" }`); err == nil {
		t.Error("register without key succeeded")
	}
}

func TestOnSubscriber(t *testing.T) {
	f := newFixture(t)

	f.run(t, `
off = desk.on("desk.window.close", "first", function(ctx)
    seen = ctx.name .. " " .. ctx.identifier .. " " .. ctx.trigger .. " " .. ctx.key
    return desk.STOP
end)
desk.on("desk.window.close", "second", function(ctx) return false end)
desk.on("desk.window.close", "third", function(ctx) end)
desk.on("desk.window.close", "fourth", function(ctx) error("boom") end)
`)

	got := f.router.fire("desk.window.close")
	want := []keymap.Propagation{keymap.Stop, keymap.Stop, keymap.Continue, keymap.Continue}
	if !slices.Equal(got, want) {
		t.Errorf("propagation = %v, want %v", got, want)
	}
	if f.global("seen") != "first desk.window.close Control+W w" {
		t.Errorf("context = %q", f.global("seen"))
	}

	f.run(t, `off()`)
	if f.router.offs != 1 {
		t.Errorf("offs = %d after off(), want 1", f.router.offs)
	}

	f.rt.Close()
	if f.router.offs != 4 {
		t.Errorf("offs = %d after Close, want 4", f.router.offs)
	}
}

func TestOffReleasesSubscription(t *testing.T) {
	f := newFixture(t)

	f.run(t, `
for i = 1, 50 do
    local off = desk.on("desk.window.close", "loop", function(ctx) end)
    off()
    off()
end
keep = desk.on("desk.window.close", "keep", function(ctx) end)
`)

	if len(f.rt.offs) != 1 {
		t.Errorf("held subscriptions = %d, want 1", len(f.rt.offs))
	}
	if f.router.offs != 50 {
		t.Errorf("offs = %d after off loop, want 50", f.router.offs)
	}

	f.rt.Close()
	if f.router.offs != 51 {
		t.Errorf("offs = %d after Close, want 51", f.router.offs)
	}
	if len(f.rt.offs) != 0 {
		t.Errorf("held subscriptions = %d after Close, want 0", len(f.rt.offs))
	}
}

func TestLog(t *testing.T) {
	f := newFixture(t)
	f.run(t, `desk.log("hello") desk.log("careful", "warn")`)

	if err := f.rt.DoString(`desk.log("x", "loud")`); err == nil {
		t.Error("desk.log with a bad level succeeded")
	}
}

func TestApps(t *testing.T) {
	f := newFixture(t)
	if err := f.catalog.Register(process.Descriptor{Key: "builtin"}); err != nil {
		t.Fatal(err)
	}
	f.run(t, `desk.register_app{ key = "scripted" } apps = table.concat(desk.apps(), ",")`)

	if f.global("apps") != "builtin,scripted" {
		t.Errorf("apps = %q", f.global("apps"))
	}
}

func TestLoadDir(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	files := map[string]string{
		"10-first.lua":  `desk.register_app{ key = "first", window = true }`,
		"20-broken.lua": `this is not lua`,
		"30-second.lua": `desk.register_app{ key = "second" }`,
		"notes.txt":     `ignored`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	loaded, err := f.rt.LoadDir(dir)
	if err == nil || !strings.Contains(err.Error(), "20-broken.lua") {
		t.Errorf("LoadDir error = %v, want the broken script named", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded = %v, want 2 files", loaded)
	}
	if !slices.Equal(f.rt.Registered(), []string{"first", "second"}) {
		t.Errorf("Registered() = %v", f.rt.Registered())
	}

	d, _ := f.catalog.Get("first")
	if d.Location != "script:10-first.lua" {
		t.Errorf("Location = %q", d.Location)
	}
	if c, ok := d.Components.Window.(ScriptComponent); !ok || c.Title != "first" {
		t.Errorf("Window = %#v", d.Components.Window)
	}

	if loaded, err := f.rt.LoadDir(filepath.Join(dir, "missing")); err != nil || loaded != nil {
		t.Errorf("LoadDir(missing) = %v, %v", loaded, err)
	}
}

func TestRuntimeClosed(t *testing.T) {
	f := newFixture(t)
	f.rt.Close()

	if err := f.rt.DoString(`x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString after Close = %v", err)
	}
}
