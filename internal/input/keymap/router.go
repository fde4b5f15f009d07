package keymap

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/desk/internal/input/key"
	"github.com/dshills/desk/internal/observable"
)

// DefaultTimeout is how long the router waits between presses of a
// multi-press sequence before dropping partial progress.
const DefaultTimeout = 1000 * time.Millisecond

// Target is an event source a Router attaches to.
// Listeners receive every event; non-keyboard events are ignored.
type Target interface {
	AddListener(listener func(event any)) (remove func())
}

// Timer is a stoppable pending callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func defaultAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option configures a Router.
type Option func(*Router)

// WithTimeout sets the shared inactivity timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithEventType selects which key events the router listens to (keydown by default).
func WithEventType(t key.EventType) Option {
	return func(r *Router) {
		r.eventType = t
	}
}

// WithPlatform sets the platform used to resolve "$mod" and AltGraph.
func WithPlatform(p key.Platform) Option {
	return func(r *Router) {
		r.platform = p
	}
}

// WithLogger sets the router's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithAfterFunc replaces time.AfterFunc, mainly for tests.
func WithAfterFunc(fn AfterFunc) Option {
	return func(r *Router) {
		if fn != nil {
			r.afterFunc = fn
		}
	}
}

// routerContext is the part of the router's state that, when changed,
// requires a fresh event listener.
type routerContext struct {
	timeout time.Duration
	keymap  Keymap
}

type subscription struct {
	Subscriber
}

// Router translates key events from a Target into binding dispatches.
//
// Router is safe for concurrent use. Subscribers are always called
// without internal locks held, so they may call On, Reload or Close.
type Router struct {
	mu sync.Mutex

	target    Target
	platform  key.Platform
	eventType key.EventType
	timeout   time.Duration
	afterFunc AfterFunc
	logger    *zap.Logger

	// context changes rebuild the listener
	context    *observable.Value[routerContext]
	contextSub *observable.Subscription

	// subscribers added with On, per identifier
	subscribers map[string][]*subscription

	listener *listener
	closed   bool
}

// listener holds the compiled keymap and partial match state for one
// router context.
type listener struct {
	timeout   time.Duration
	keymap    Keymap
	sequences []*sequence

	// partial maps a sequence to its presses not yet satisfied
	partial map[*sequence][]key.Press

	timer      Timer
	generation uint64
	remove     func()
}

// NewRouter creates a router for km and attaches it to target.
// The keymap is not safe to mutate afterwards; use Reload to replace it.
func NewRouter(target Target, km Keymap, opts ...Option) *Router {
	r := &Router{
		target:      target,
		platform:    key.HostPlatform,
		eventType:   key.KeyDown,
		timeout:     DefaultTimeout,
		afterFunc:   defaultAfterFunc,
		logger:      zap.NewNop(),
		subscribers: make(map[string][]*subscription, len(km)),
	}

	for _, opt := range opts {
		opt(r)
	}

	for id := range km {
		r.subscribers[id] = nil
	}

	r.context = observable.NewValue(routerContext{timeout: r.timeout, keymap: km})
	r.contextSub = r.context.Subscribe(r.rebuild)

	return r
}

// On registers a subscriber for identifier and returns a function that
// removes it again. Identifiers not in the keymap are silently ignored.
func (r *Router) On(identifier, label string, trigger Trigger) (off func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.subscribers[identifier]
	if !ok || r.closed || trigger == nil {
		return func() {}
	}

	s := &subscription{Subscriber{Label: label, Trigger: trigger}}
	r.subscribers[identifier] = append(subs, s)

	var once sync.Once
	return func() {
		once.Do(func() { r.off(identifier, s) })
	}
}

// off removes one subscription by identity.
func (r *Router) off(identifier string, s *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.subscribers[identifier]
	if !ok {
		return
	}
	r.subscribers[identifier] = slices.DeleteFunc(subs, func(x *subscription) bool {
		return x == s
	})
}

// Subscribers returns the labels of the dynamic subscribers for identifier.
func (r *Router) Subscribers(identifier string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	labels := make([]string, 0, len(r.subscribers[identifier]))
	for _, s := range r.subscribers[identifier] {
		labels = append(labels, s.Label)
	}
	return labels
}

// Keymap returns the current keymap.
func (r *Router) Keymap() Keymap {
	return r.context.Get().keymap
}

// Timeout returns the current shared inactivity timeout.
func (r *Router) Timeout() time.Duration {
	return r.context.Get().timeout
}

// Reload replaces the keymap. Partial matches are dropped. Dynamic
// subscribers are kept for identifiers present in km.
func (r *Router) Reload(km Keymap) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	subscribers := make(map[string][]*subscription, len(km))
	for id := range km {
		subscribers[id] = r.subscribers[id]
	}
	r.subscribers = subscribers
	r.mu.Unlock()

	r.context.Update(func(c routerContext) routerContext {
		c.keymap = km
		return c
	})
}

// SetTimeout changes the shared inactivity timeout. Non-positive values are ignored.
func (r *Router) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	r.context.Update(func(c routerContext) routerContext {
		c.timeout = d
		return c
	})
}

// Pending returns the keybinding strings that are partially matched.
func (r *Router) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listener == nil {
		return nil
	}
	pending := make([]string, 0, len(r.listener.partial))
	for seq := range r.listener.partial {
		pending = append(pending, seq.source)
	}
	sort.Strings(pending)
	return pending
}

// HandleEvent feeds one event through the router as if the target had
// delivered it.
func (r *Router) HandleEvent(event any) {
	r.mu.Lock()
	l := r.listener
	r.mu.Unlock()

	if l != nil {
		r.handle(l, event)
	}
}

// Close detaches the router from its target and stops its timer.
func (r *Router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.listener != nil {
		r.listener.detach()
		r.listener = nil
	}
	r.mu.Unlock()

	r.contextSub.Unsubscribe()
}

// rebuild replaces the listener whenever the router context changes.
func (r *Router) rebuild(c routerContext) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if r.listener != nil {
		r.listener.detach()
	}

	l := &listener{
		timeout:   c.timeout,
		keymap:    c.keymap,
		sequences: compile(r.platform, c.keymap),
		partial:   make(map[*sequence][]key.Press),
	}
	if r.target != nil {
		l.remove = r.target.AddListener(func(event any) {
			r.handle(l, event)
		})
	}
	r.listener = l

	r.logger.Debug("keymap listener attached",
		zap.Int("bindings", len(c.keymap)),
		zap.Int("sequences", len(l.sequences)),
		zap.Duration("timeout", c.timeout),
	)
}

// dispatch is a completed sequence waiting to be delivered.
type dispatch struct {
	source      string
	context     TriggerContext
	subscribers []Subscriber
}

// handle runs the partial match state machine for one event.
func (r *Router) handle(l *listener, event any) {
	e, ok := event.(key.Event)
	if !ok || e.Type != r.eventType {
		return
	}

	r.mu.Lock()
	if r.closed || r.listener != l {
		r.mu.Unlock()
		return
	}

	var fired []dispatch
	for _, seq := range l.sequences {
		remaining, ok := l.partial[seq]
		if !ok {
			remaining = seq.presses
		}

		if !r.platform.Match(e, remaining[0]) {
			// Modifiers are usually pressed before the main key.
			if !r.platform.IsHeldModifier(e) {
				delete(l.partial, seq)
			}
			continue
		}

		if len(remaining) > 1 {
			l.partial[seq] = remaining[1:]
			continue
		}

		delete(l.partial, seq)
		fired = append(fired, r.prepare(l, seq, e))
	}

	r.restartTimer(l)
	r.mu.Unlock()

	for _, d := range fired {
		r.deliver(d)
	}
}

// prepare snapshots the subscribers of a completed sequence.
// Caller must hold r.mu.
func (r *Router) prepare(l *listener, seq *sequence, e key.Event) dispatch {
	b := l.keymap[seq.identifier]

	subs := slices.Clone(b.Subscribers)
	for _, s := range r.subscribers[seq.identifier] {
		subs = append(subs, s.Subscriber)
	}

	return dispatch{
		source: seq.source,
		context: TriggerContext{
			Keybinding: Info{
				Identifier:  seq.identifier,
				Name:        b.Name,
				Keybindings: slices.Clone(b.Keybindings),
			},
			Trigger: slices.Clone(seq.presses),
			Event:   e,
		},
		subscribers: subs,
	}
}

// deliver calls subscribers in order until one returns Stop.
func (r *Router) deliver(d dispatch) {
	r.logger.Debug("keybinding triggered",
		zap.String("identifier", d.context.Keybinding.Identifier),
		zap.String("keybinding", d.source),
		zap.Int("subscribers", len(d.subscribers)),
	)

	for _, s := range d.subscribers {
		ctx := d.context
		ctx.Name = s.Label
		if r.call(s, ctx) == Stop {
			r.logger.Debug("keybinding dispatch stopped",
				zap.String("identifier", ctx.Keybinding.Identifier),
				zap.String("subscriber", s.Label),
			)
			return
		}
	}
}

// call invokes one subscriber, recovering from panics.
func (r *Router) call(s Subscriber, ctx TriggerContext) (result Propagation) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("keybinding subscriber panicked",
				zap.String("identifier", ctx.Keybinding.Identifier),
				zap.String("subscriber", s.Label),
				zap.String("panic", fmt.Sprint(rec)),
			)
			result = Continue
		}
	}()
	if s.Trigger == nil {
		return Continue
	}
	return s.Trigger(ctx)
}

// restartTimer reschedules the shared inactivity timer.
// Caller must hold r.mu.
func (r *Router) restartTimer(l *listener) {
	if l.timer != nil {
		l.timer.Stop()
	}
	l.generation++
	generation := l.generation

	l.timer = r.afterFunc(l.timeout, func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		// A stale timer that fired while a newer event was being handled.
		if l.generation != generation {
			return
		}
		clear(l.partial)
		l.timer = nil
	})
}

// detach removes the listener from its target and stops its timer.
// Caller must hold r.mu.
func (l *listener) detach() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	clear(l.partial)
	if l.remove != nil {
		l.remove()
		l.remove = nil
	}
}
