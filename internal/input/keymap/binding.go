package keymap

import (
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/dshills/desk/internal/input/key"
)

// Propagation tells the router whether to keep calling subscribers.
type Propagation int

const (
	// Continue lets later subscribers run.
	Continue Propagation = iota

	// Stop skips the remaining subscribers for this dispatch.
	Stop
)

// Trigger is called when a binding's sequence completes.
type Trigger func(ctx TriggerContext) Propagation

// Subscriber is a labelled trigger.
type Subscriber struct {
	// Label identifies the subscriber in logs and in TriggerContext.Name.
	Label string

	// Trigger is the callback.
	Trigger Trigger
}

// Binding is a named command bound to one or more key sequences.
type Binding struct {
	// Name is the human readable command name.
	Name string

	// Timeout is carried for display; the router uses its own shared timeout.
	Timeout time.Duration

	// Keybindings are keybinding strings such as "$mod+W" or "g g".
	Keybindings []string

	// Subscribers are declared with the keymap and always run first.
	Subscribers []Subscriber
}

// Keymap maps binding identifiers to bindings.
type Keymap map[string]Binding

// Identifiers returns the binding identifiers in sorted order.
func (km Keymap) Identifiers() []string {
	ids := slices.Collect(maps.Keys(km))
	sort.Strings(ids)
	return ids
}

// Merge returns a new keymap with the bindings of other added to km.
// Bindings in other replace bindings with the same identifier; when the
// replaced binding had static subscribers and the new one has none, the
// subscribers are kept.
func (km Keymap) Merge(other Keymap) Keymap {
	merged := make(Keymap, len(km)+len(other))
	maps.Copy(merged, km)
	for id, b := range other {
		if prev, ok := merged[id]; ok && len(b.Subscribers) == 0 {
			b.Subscribers = prev.Subscribers
		}
		merged[id] = b
	}
	return merged
}

// Info identifies the binding that fired.
type Info struct {
	Identifier  string
	Name        string
	Keybindings []string
}

// TriggerContext is delivered to subscribers on dispatch.
type TriggerContext struct {
	// Name is the label of the subscriber being called.
	Name string

	// Keybinding describes the binding that fired.
	Keybinding Info

	// Trigger is the parsed sequence that completed.
	Trigger []key.Press

	// Event is the key event that completed the sequence.
	Event key.Event
}

// sequence is one parsed keybinding string of a binding. Partial match
// progress is keyed by its identity.
type sequence struct {
	identifier string
	source     string
	presses    []key.Press
}

// compile parses every keybinding string in km, ordered by identifier.
func compile(platform key.Platform, km Keymap) []*sequence {
	var seqs []*sequence
	for _, id := range km.Identifiers() {
		for _, kb := range km[id].Keybindings {
			seqs = append(seqs, &sequence{
				identifier: id,
				source:     kb,
				presses:    key.ParseFor(platform, kb),
			})
		}
	}
	return seqs
}
