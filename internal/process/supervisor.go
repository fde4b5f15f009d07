package process

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/desk/internal/observable"
)

// Supervisor manages an ordered table of processes.
//
// The table is an observable copy-on-write slice: every change replaces
// the slice, so snapshots handed out by List or Windows never change.
//
// The table is guarded by a lock, but watchers are notified outside it.
// Callers serialize changes, as the desk event loop does; concurrent
// changes may deliver projections to watchers out of order.
type Supervisor struct {
	table *observable.Value[[]*Process]

	// windows is derived from table and recomputed on every change,
	// including changes in nested supervisors.
	windows *observable.Value[[]*Process]

	// parent is set while this supervisor belongs to a process in
	// another supervisor's table.
	parent atomic.Pointer[Supervisor]

	logger *zap.Logger
	now    func() time.Time
	newPID func() string
}

// SupervisorOption configures a Supervisor instance.
type SupervisorOption func(*Supervisor)

// WithLogger sets the supervisor's logger. Nested supervisors share it.
func WithLogger(l *zap.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the function used for creation timestamps.
func WithClock(now func() time.Time) SupervisorOption {
	return func(s *Supervisor) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPIDGenerator replaces the UUID generator, for deterministic tests.
// Generated identifiers must be unique.
func WithPIDGenerator(fn func() string) SupervisorOption {
	return func(s *Supervisor) {
		if fn != nil {
			s.newPID = fn
		}
	}
}

// NewSupervisor creates a new, empty process supervisor.
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		table:  observable.NewValue[[]*Process](nil),
		logger: zap.NewNop(),
		now:    time.Now,
		newPID: uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.windows, _ = observable.Derive(s.table, flattenWindows)

	return s
}

// child creates a nested supervisor sharing this one's configuration.
func (s *Supervisor) child() *Supervisor {
	c := NewSupervisor(
		WithLogger(s.logger),
		WithClock(s.now),
		WithPIDGenerator(s.newPID),
	)
	c.parent.Store(s)
	return c
}

// Open starts a process for d.
//
// If d is single-instance and a process with the same key exists, Open
// returns StartDuplicate without side effects. Otherwise it builds the
// process and runs the preflight hook; a refusal returns StartFailed and
// the process is discarded. On success the process is appended to the
// table, then the launched hook and onStarted run, in that order.
func (s *Supervisor) Open(d Descriptor, args []string, onStarted func(p *Process)) StartResult {
	if !d.Flags.Multiple && s.hasKey(d.Key) {
		s.logger.Debug("duplicate launch", zap.String("app", d.Key))
		return StartDuplicate
	}

	p := &Process{
		PID:     s.newPID(),
		Created: s.now(),
		App:     newApplication(d, args),
		owner:   s,
	}
	if d.Flags.SpawnsChildren {
		p.Children = s.child()
	}

	if err := s.preflight(p); err != nil {
		s.logger.Info("launch refused",
			zap.String("app", d.Key),
			zap.String("pid", p.PID),
			zap.Error(err),
		)
		if p.Children != nil {
			p.Children.detach()
		}
		return StartFailed
	}

	inserted := s.table.Mutate(func(list []*Process) ([]*Process, bool) {
		// Re-checked under the lock; preflight ran without it.
		if !d.Flags.Multiple && slices.ContainsFunc(list, func(q *Process) bool { return q.App.Key == d.Key }) {
			return list, false
		}
		next := make([]*Process, len(list), len(list)+1)
		copy(next, list)
		return append(next, p), true
	})
	if !inserted {
		if p.Children != nil {
			p.Children.detach()
		}
		return StartDuplicate
	}
	s.propagate()

	s.logger.Info("process started",
		zap.String("app", d.Key),
		zap.String("pid", p.PID),
		zap.Strings("args", p.App.Arguments),
		zap.Bool("window", p.IsWindow()),
	)

	if d.Events.Launched != nil {
		s.guard("launched", p, func() { d.Events.Launched(p) })
	}
	if onStarted != nil {
		s.guard("onStarted", p, func() { onStarted(p) })
	}

	return StartSuccess
}

// Close closes the process with the given PID.
//
// Unknown PIDs return ExitFailed. If the process has an exit hook and
// force is false, the hook runs with a completion function that forces
// the close, and Close returns ExitDeferred without touching the table.
// Otherwise the process is removed and Close returns ExitSuccess.
func (s *Supervisor) Close(pid string, force bool) ExitResult {
	p := s.Find(pid)
	if p == nil {
		return ExitFailed
	}

	if exit := p.App.Events.Exit; exit != nil && !force {
		var once sync.Once
		complete := func() {
			once.Do(func() { s.Close(pid, true) })
		}

		s.logger.Debug("exit deferred to hook",
			zap.String("app", p.App.Key),
			zap.String("pid", pid),
		)
		s.guard("exit", p, func() { exit(complete) })
		return ExitDeferred
	}

	removed := s.table.Mutate(func(list []*Process) ([]*Process, bool) {
		i := slices.IndexFunc(list, func(q *Process) bool { return q.PID == pid })
		if i < 0 {
			return list, false
		}
		next := make([]*Process, 0, len(list)-1)
		next = append(next, list[:i]...)
		return append(next, list[i+1:]...), true
	})
	if !removed {
		return ExitFailed
	}

	if p.Children != nil {
		p.Children.detach()
	}
	s.propagate()

	s.logger.Info("process exited",
		zap.String("app", p.App.Key),
		zap.String("pid", pid),
		zap.Bool("forced", force),
	)
	return ExitSuccess
}

// CloseAll closes every process in the table at call time and returns the
// results in table order. Deferred and failed closes are not retried.
func (s *Supervisor) CloseAll(force bool) []ExitResult {
	snapshot := s.table.Get()
	results := make([]ExitResult, 0, len(snapshot))
	for _, p := range snapshot {
		results = append(results, s.Close(p.PID, force))
	}
	return results
}

// Find returns the process with the given PID, or nil.
func (s *Supervisor) Find(pid string) *Process {
	return s.FindFunc(func(p *Process) bool { return p.PID == pid })
}

// FindFunc returns the first process in table order matching pred, or nil.
func (s *Supervisor) FindFunc(pred func(p *Process) bool) *Process {
	for _, p := range s.table.Get() {
		if pred(p) {
			return p
		}
	}
	return nil
}

// FindMany returns the processes whose PIDs are in pids, in table order.
func (s *Supervisor) FindMany(pids []string) []*Process {
	var result []*Process
	for _, p := range s.table.Get() {
		if slices.Contains(pids, p.PID) {
			result = append(result, p)
		}
	}
	return result
}

// FindByKey returns the processes of the given application, in table order.
func (s *Supervisor) FindByKey(key string) []*Process {
	var result []*Process
	for _, p := range s.table.Get() {
		if p.App.Key == key {
			result = append(result, p)
		}
	}
	return result
}

// List returns a snapshot of the table.
func (s *Supervisor) List() []*Process {
	return slices.Clone(s.table.Get())
}

// Len returns the number of processes in the table.
func (s *Supervisor) Len() int {
	return len(s.table.Get())
}

// Windows returns the window projection of the whole process tree: every
// window-bearing process in table order, each followed by the windows of
// its nested supervisor.
func (s *Supervisor) Windows() []*Process {
	return slices.Clone(s.windows.Get())
}

// Watch calls fn with the table now and after every change to it. A
// change in a nested supervisor re-notifies with the unchanged table.
func (s *Supervisor) Watch(fn func(table []*Process)) *observable.Subscription {
	return s.table.Subscribe(func(list []*Process) {
		fn(slices.Clone(list))
	})
}

// WatchWindows calls fn with the window projection now and whenever this
// table or any nested table changes.
func (s *Supervisor) WatchWindows(fn func(windows []*Process)) *observable.Subscription {
	return s.windows.Subscribe(func(list []*Process) {
		fn(slices.Clone(list))
	})
}

func (s *Supervisor) hasKey(key string) bool {
	return s.FindFunc(func(p *Process) bool { return p.App.Key == key }) != nil
}

// propagate notifies every ancestor that a nested table changed.
func (s *Supervisor) propagate() {
	for p := s.parent.Load(); p != nil; p = p.parent.Load() {
		p.table.Touch()
	}
}

// detach cuts this supervisor off from its parent. Its processes are left
// as they are.
func (s *Supervisor) detach() {
	s.parent.Store(nil)
}

// preflight runs the preflight hook, treating a panic as a refusal.
func (s *Supervisor) preflight(p *Process) (err error) {
	hook := p.App.Events.Preflight
	if hook == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("preflight panicked: %v", r)
		}
	}()
	return hook(p)
}

// guard runs a hook, recovering from panics so a misbehaving application
// cannot corrupt the table.
func (s *Supervisor) guard(hook string, p *Process, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("hook panicked",
				zap.String("hook", hook),
				zap.String("app", p.App.Key),
				zap.String("pid", p.PID),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn()
}

func flattenWindows(list []*Process) []*Process {
	var result []*Process
	for _, p := range list {
		if p.IsWindow() {
			result = append(result, p)
		}
		if p.Children != nil {
			result = append(result, p.Children.windows.Get()...)
		}
	}
	return result
}
