package process

import (
	"fmt"
	"time"
)

// StartResult is the outcome of Supervisor.Open.
type StartResult int

const (
	// StartSuccess means the process was inserted.
	StartSuccess StartResult = iota

	// StartDuplicate means a process for the same single-instance key exists.
	StartDuplicate

	// StartFailed means the preflight hook refused the launch.
	StartFailed
)

// String returns a human-readable result name.
func (r StartResult) String() string {
	switch r {
	case StartSuccess:
		return "success"
	case StartDuplicate:
		return "duplicate"
	case StartFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", r)
	}
}

// ExitResult is the outcome of Supervisor.Close.
type ExitResult int

const (
	// ExitSuccess means the process was removed.
	ExitSuccess ExitResult = iota

	// ExitDeferred means the exit hook now decides when the process goes.
	ExitDeferred

	// ExitFailed means no such process exists.
	ExitFailed
)

// String returns a human-readable result name.
func (r ExitResult) String() string {
	switch r {
	case ExitSuccess:
		return "success"
	case ExitDeferred:
		return "deferred"
	case ExitFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", r)
	}
}

// Process is a running instance of an application.
//
// Processes are created and removed only by their Supervisor. Fields are
// read-only for everyone else.
type Process struct {
	// PID is unique and never reused.
	PID string

	// Created is the time the process record was built.
	Created time.Time

	// App is the descriptor and launch arguments.
	App Application

	// Children is non-nil iff the application spawns children.
	Children *Supervisor

	owner *Supervisor
}

// Exit closes this process through its owning supervisor.
func (p *Process) Exit(force bool) ExitResult {
	return p.owner.Close(p.PID, force)
}

// IsWindow reports whether the process is a window.
func (p *Process) IsWindow() bool {
	return p.App.HasWindow()
}

// String returns a short description for logs.
func (p *Process) String() string {
	return fmt.Sprintf("%s[%s]", p.App.Key, shortPID(p.PID))
}

func shortPID(pid string) string {
	if len(pid) > 8 {
		return pid[:8]
	}
	return pid
}
