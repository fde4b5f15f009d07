package process

import (
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"
)

type window struct{ name string }

func windowApp(key string) Descriptor {
	return Descriptor{
		Key:        key,
		Name:       key,
		Components: Components{Window: window{key}},
	}
}

func pids(list []*Process) []string {
	result := make([]string, 0, len(list))
	for _, p := range list {
		result = append(result, p.PID)
	}
	return result
}

func keys(list []*Process) []string {
	result := make([]string, 0, len(list))
	for _, p := range list {
		result = append(result, p.App.Key)
	}
	return result
}

func sequentialPIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("pid-%d", n)
	}
}

func TestOpenSingleInstance(t *testing.T) {
	s := NewSupervisor()
	app := windowApp("calculator")

	if got := s.Open(app, nil, nil); got != StartSuccess {
		t.Fatalf("first Open = %v, want success", got)
	}
	if got := s.Open(app, nil, nil); got != StartDuplicate {
		t.Errorf("second Open = %v, want duplicate", got)
	}
	if got := len(s.FindByKey("calculator")); got != 1 {
		t.Errorf("processes for key = %d, want 1", got)
	}
}

func TestOpenMultipleInstances(t *testing.T) {
	s := NewSupervisor()
	app := windowApp("terminal")
	app.Flags.Multiple = true

	const n = 5
	for i := 0; i < n; i++ {
		if got := s.Open(app, nil, nil); got != StartSuccess {
			t.Fatalf("Open #%d = %v, want success", i, got)
		}
	}

	ids := pids(s.List())
	if len(ids) != n {
		t.Fatalf("Len = %d, want %d", len(ids), n)
	}
	slices.Sort(ids)
	if len(slices.Compact(ids)) != n {
		t.Errorf("PIDs not distinct: %v", ids)
	}
}

func TestOpenOrderAndHooks(t *testing.T) {
	var order []string
	s := NewSupervisor(WithPIDGenerator(sequentialPIDs()))

	app := windowApp("notes")
	app.Events.Launched = func(p *Process) {
		order = append(order, "launched")
	}
	var preflightLen int
	app.Events.Preflight = func(p *Process) error {
		order = append(order, "preflight")
		preflightLen = s.Len()
		return nil
	}

	var started *Process
	got := s.Open(app, []string{"todo.txt"}, func(p *Process) {
		order = append(order, "started")
		started = p
	})

	if got != StartSuccess {
		t.Fatalf("Open = %v, want success", got)
	}
	if !slices.Equal(order, []string{"preflight", "launched", "started"}) {
		t.Errorf("order = %v", order)
	}
	if preflightLen != 0 {
		t.Errorf("process visible during preflight")
	}
	if started == nil || started.PID != "pid-1" {
		t.Fatalf("started = %v", started)
	}
	if !slices.Equal(started.App.Arguments, []string{"todo.txt"}) {
		t.Errorf("Arguments = %v", started.App.Arguments)
	}
}

func TestOpenPreflightRefusal(t *testing.T) {
	s := NewSupervisor()

	launched := false
	app := windowApp("settings")
	app.Events.Preflight = func(*Process) error { return ErrRefused }
	app.Events.Launched = func(*Process) { launched = true }

	if got := s.Open(app, nil, func(*Process) { launched = true }); got != StartFailed {
		t.Errorf("Open = %v, want failed", got)
	}
	if s.Len() != 0 || launched {
		t.Errorf("refused process leaked: len = %d, launched = %v", s.Len(), launched)
	}

	app.Events.Preflight = func(*Process) error { panic("boom") }
	if got := s.Open(app, nil, nil); got != StartFailed {
		t.Errorf("Open with panicking preflight = %v, want failed", got)
	}
}

func TestOpenAppendsInLaunchOrder(t *testing.T) {
	s := NewSupervisor()
	for _, key := range []string{"a", "b", "c"} {
		s.Open(windowApp(key), nil, nil)
	}
	if got := keys(s.List()); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("table = %v", got)
	}
}

func TestCreatedTimestamp(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewSupervisor(WithClock(func() time.Time { return at }))
	s.Open(windowApp("a"), nil, nil)

	if got := s.List()[0].Created; !got.Equal(at) {
		t.Errorf("Created = %v, want %v", got, at)
	}
}

func TestCloseUnknown(t *testing.T) {
	s := NewSupervisor()
	s.Open(windowApp("a"), nil, nil)
	before := s.List()

	if got := s.Close("missing", false); got != ExitFailed {
		t.Errorf("Close = %v, want failed", got)
	}
	if got := s.Close("missing", true); got != ExitFailed {
		t.Errorf("forced Close = %v, want failed", got)
	}
	if !slices.Equal(pids(s.List()), pids(before)) {
		t.Errorf("table changed")
	}
}

func TestCloseWithoutHookIgnoresForce(t *testing.T) {
	for _, force := range []bool{false, true} {
		t.Run(fmt.Sprint(force), func(t *testing.T) {
			s := NewSupervisor()
			var pid string
			s.Open(windowApp("a"), nil, func(p *Process) { pid = p.PID })

			if got := s.Close(pid, force); got != ExitSuccess {
				t.Errorf("Close = %v, want success", got)
			}
			if s.Len() != 0 {
				t.Errorf("Len = %d, want 0", s.Len())
			}
		})
	}
}

func TestCloseDeferredNeverCompleted(t *testing.T) {
	s := NewSupervisor()
	hookCalls := 0
	app := windowApp("notes")
	app.Events.Exit = func(complete func()) { hookCalls++ }

	var pid string
	s.Open(app, nil, func(p *Process) { pid = p.PID })

	for i := 0; i < 3; i++ {
		if got := s.Close(pid, false); got != ExitDeferred {
			t.Errorf("Close = %v, want deferred", got)
		}
	}
	if hookCalls != 3 {
		t.Errorf("hook calls = %d, want 3", hookCalls)
	}
	if s.Find(pid) == nil {
		t.Errorf("process removed without completion")
	}

	if got := s.Close(pid, true); got != ExitSuccess {
		t.Errorf("forced Close = %v, want success", got)
	}
	if s.Find(pid) != nil {
		t.Errorf("forced close left the process")
	}
}

func TestCloseDeferredCompletedLater(t *testing.T) {
	s := NewSupervisor()
	var complete func()
	app := windowApp("notes")
	app.Events.Exit = func(c func()) { complete = c }

	var p *Process
	s.Open(app, nil, func(started *Process) { p = started })

	if got := p.Exit(false); got != ExitDeferred {
		t.Fatalf("Exit = %v, want deferred", got)
	}
	if s.Len() != 1 {
		t.Fatalf("table mutated before completion")
	}

	complete()
	complete()

	if s.Len() != 0 {
		t.Errorf("Len after completion = %d, want 0", s.Len())
	}
}

func TestCloseDeferredCompletedSynchronously(t *testing.T) {
	s := NewSupervisor()
	app := windowApp("calculator")
	app.Events.Exit = func(complete func()) { complete() }

	var pid string
	s.Open(app, nil, func(p *Process) { pid = p.PID })

	if got := s.Close(pid, false); got != ExitDeferred {
		t.Errorf("Close = %v, want deferred", got)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestCloseAll(t *testing.T) {
	s := NewSupervisor()
	deferred := windowApp("notes")
	deferred.Events.Exit = func(func()) {}

	s.Open(windowApp("a"), nil, nil)
	s.Open(deferred, nil, nil)
	s.Open(windowApp("b"), nil, nil)

	got := s.CloseAll(false)
	want := []ExitResult{ExitSuccess, ExitDeferred, ExitSuccess}
	if !slices.Equal(got, want) {
		t.Errorf("CloseAll(false) = %v, want %v", got, want)
	}
	if !slices.Equal(keys(s.List()), []string{"notes"}) {
		t.Errorf("table = %v", keys(s.List()))
	}

	if got := s.CloseAll(true); !slices.Equal(got, []ExitResult{ExitSuccess}) {
		t.Errorf("CloseAll(true) = %v", got)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestFind(t *testing.T) {
	s := NewSupervisor(WithPIDGenerator(sequentialPIDs()))
	multi := windowApp("term")
	multi.Flags.Multiple = true
	s.Open(multi, nil, nil)
	s.Open(windowApp("calc"), nil, nil)
	s.Open(multi, nil, nil)

	if p := s.Find("pid-2"); p == nil || p.App.Key != "calc" {
		t.Errorf("Find(pid-2) = %v", p)
	}
	if p := s.Find("pid-9"); p != nil {
		t.Errorf("Find(pid-9) = %v, want nil", p)
	}
	if p := s.FindFunc(func(p *Process) bool { return p.App.Key == "term" }); p == nil || p.PID != "pid-1" {
		t.Errorf("FindFunc = %v, want first term", p)
	}
	if got := pids(s.FindMany([]string{"pid-3", "pid-9", "pid-1"})); !slices.Equal(got, []string{"pid-1", "pid-3"}) {
		t.Errorf("FindMany = %v, want table order", got)
	}
}

func TestWindowsProjection(t *testing.T) {
	s := NewSupervisor()

	s.Open(windowApp("root"), nil, nil)

	var tasker *Process
	s.Open(Descriptor{Key: "tasker", Flags: Flags{SpawnsChildren: true}}, nil, func(p *Process) {
		tasker = p
	})
	if tasker == nil || tasker.Children == nil {
		t.Fatalf("tasker has no nested supervisor")
	}
	tasker.Children.Open(windowApp("child-1"), nil, nil)
	tasker.Children.Open(windowApp("child-2"), nil, nil)

	got := keys(s.Windows())
	want := []string{"root", "child-1", "child-2"}
	if !slices.Equal(got, want) {
		t.Errorf("Windows() = %v, want %v", got, want)
	}
}

func TestWindowsDepthFirst(t *testing.T) {
	s := NewSupervisor()

	parent := windowApp("parent")
	parent.Flags.SpawnsChildren = true

	var p *Process
	s.Open(parent, nil, func(started *Process) { p = started })
	s.Open(windowApp("after"), nil, nil)
	p.Children.Open(windowApp("nested"), nil, nil)

	got := keys(s.Windows())
	want := []string{"parent", "nested", "after"}
	if !slices.Equal(got, want) {
		t.Errorf("Windows() = %v, want %v", got, want)
	}
}

func TestWatchWindowsSeesNestedChanges(t *testing.T) {
	s := NewSupervisor()

	var updates [][]string
	sub := s.WatchWindows(func(w []*Process) {
		updates = append(updates, keys(w))
	})
	defer sub.Unsubscribe()

	var tasker *Process
	s.Open(Descriptor{Key: "tasker", Flags: Flags{SpawnsChildren: true}}, nil, func(p *Process) { tasker = p })

	var childPID string
	tasker.Children.Open(windowApp("child"), nil, func(p *Process) { childPID = p.PID })

	last := updates[len(updates)-1]
	if !slices.Equal(last, []string{"child"}) {
		t.Fatalf("after nested open: %v", last)
	}

	tasker.Children.Close(childPID, false)
	last = updates[len(updates)-1]
	if len(last) != 0 {
		t.Errorf("after nested close: %v", last)
	}

	if !slices.Equal(updates[0], []string{}) {
		t.Errorf("initial update = %v, want empty", updates[0])
	}
}

func TestWatchRenotifiesOnNestedChanges(t *testing.T) {
	s := NewSupervisor()

	var tasker *Process
	s.Open(Descriptor{Key: "tasker", Flags: Flags{SpawnsChildren: true}}, nil, func(p *Process) { tasker = p })

	var tables [][]string
	sub := s.Watch(func(table []*Process) {
		tables = append(tables, keys(table))
	})
	defer sub.Unsubscribe()

	tasker.Children.Open(windowApp("child"), nil, nil)

	if len(tables) != 2 {
		t.Fatalf("Watch notified %d times, want 2", len(tables))
	}
	if !slices.Equal(tables[1], []string{"tasker"}) {
		t.Errorf("table after nested open = %v, want [tasker]", tables[1])
	}
}

func TestClosingParentDetachesChildren(t *testing.T) {
	s := NewSupervisor()

	var tasker *Process
	s.Open(Descriptor{Key: "tasker", Flags: Flags{SpawnsChildren: true}}, nil, func(p *Process) { tasker = p })
	tasker.Children.Open(windowApp("child"), nil, nil)

	if got := s.Close(tasker.PID, false); got != ExitSuccess {
		t.Fatalf("Close = %v", got)
	}
	if len(s.Windows()) != 0 {
		t.Errorf("Windows() = %v, want empty", keys(s.Windows()))
	}

	notified := 0
	sub := s.Watch(func([]*Process) { notified++ })
	defer sub.Unsubscribe()
	tasker.Children.Open(windowApp("orphan"), nil, nil)
	if notified != 1 {
		t.Errorf("detached child still notifies parent: %d", notified)
	}
}

func TestNonWindowWithoutChildren(t *testing.T) {
	s := NewSupervisor()
	s.Open(Descriptor{Key: "daemon", Components: Components{Background: window{"bg"}}}, nil, nil)

	if got := s.Windows(); len(got) != 0 {
		t.Errorf("Windows() = %v", keys(got))
	}
	if p := s.List()[0]; p.Children != nil || p.IsWindow() {
		t.Errorf("daemon: children = %v, window = %v", p.Children, p.IsWindow())
	}
}

func TestHookPanicsAreRecovered(t *testing.T) {
	s := NewSupervisor()
	app := windowApp("bad")
	app.Events.Launched = func(*Process) { panic("launched") }
	app.Events.Exit = func(func()) { panic("exit") }

	if got := s.Open(app, nil, nil); got != StartSuccess {
		t.Fatalf("Open = %v, want success", got)
	}
	pid := s.List()[0].PID
	if got := s.Close(pid, false); got != ExitDeferred {
		t.Errorf("Close = %v, want deferred", got)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestHooksMayReenter(t *testing.T) {
	s := NewSupervisor()
	helper := windowApp("helper")

	app := windowApp("main")
	app.Events.Launched = func(p *Process) {
		s.Open(helper, nil, nil)
	}

	s.Open(app, nil, nil)
	if got := keys(s.List()); !slices.Equal(got, []string{"main", "helper"}) {
		t.Errorf("table = %v", got)
	}
}

func TestResultStrings(t *testing.T) {
	if StartDuplicate.String() != "duplicate" || ExitDeferred.String() != "deferred" {
		t.Errorf("unexpected result names")
	}
	if got := StartResult(42).String(); got != "unknown(42)" {
		t.Errorf("StartResult(42) = %q", got)
	}
	if !errors.Is(fmt.Errorf("wrapped: %w", ErrRefused), ErrRefused) {
		t.Errorf("ErrRefused does not unwrap")
	}
}
