package process

import "slices"

// ApplicationType classifies a descriptor.
type ApplicationType string

// TypeApplication is the only application type in use.
const TypeApplication ApplicationType = "application"

// LocationSystem tags descriptors that ship with the desk itself.
const LocationSystem = "system"

// Component is an opaque renderable handle. The supervisor only checks
// whether a slot is set.
type Component any

// Components are the named UI slots of an application.
type Components struct {
	// Window makes every process of the application a window.
	Window Component

	// Background runs without a window.
	Background Component
}

// Events are optional lifecycle hooks.
type Events struct {
	// Preflight runs before the process is inserted. A non-nil error
	// discards the process and Open returns StartFailed.
	Preflight func(p *Process) error

	// Launched runs after the process is inserted.
	Launched func(p *Process)

	// Exit runs on a non-forced close. The process is removed only when
	// complete is called.
	Exit func(complete func())
}

// Flags control supervisor behavior for an application.
type Flags struct {
	// Multiple allows more than one process for the key.
	Multiple bool

	// SpawnsChildren gives each process a nested Supervisor.
	SpawnsChildren bool
}

// Descriptor describes an application. It is treated as immutable once
// passed to a Supervisor.
type Descriptor struct {
	Key         string
	Name        string
	Description string
	Author      string
	Icon        string
	Type        ApplicationType
	Location    string
	Components  Components
	Events      Events
	Flags       Flags

	// Details holds free-form metadata shown by the shell.
	Details map[string]any
}

// HasWindow reports whether the descriptor declares a window slot.
func (d Descriptor) HasWindow() bool {
	return d.Components.Window != nil
}

// Title returns the display name, falling back to the key.
func (d Descriptor) Title() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Key
}

// Application is a descriptor resolved with its launch arguments.
type Application struct {
	Descriptor
	Arguments []string
}

func newApplication(d Descriptor, args []string) Application {
	return Application{Descriptor: d, Arguments: slices.Clone(args)}
}
