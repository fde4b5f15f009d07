// Package process tracks running applications as processes.
//
// A Supervisor owns an ordered process table. Applications are described
// by a Descriptor: static data, optional lifecycle hooks and flags. A
// process whose descriptor declares a window component is a window.
//
// # Supervisor
//
//	supervisor := process.NewSupervisor(process.WithLogger(logger))
//
//	result := supervisor.Open(calculator, nil, func(p *process.Process) {
//	    fmt.Println("started", p.PID)
//	})
//	if result == process.StartDuplicate {
//	    // calculator does not allow multiple instances
//	}
//
// Expected outcomes are reported through StartResult and ExitResult
// values, never through errors.
//
// # Closing
//
// Close removes a process immediately unless its descriptor has an exit
// hook and force is false. In that case the hook receives a completion
// function and Close returns ExitDeferred; the process stays in the table
// until the hook calls the completion function, which may be never.
//
// # Process Trees
//
// Descriptors with SpawnsChildren get a nested Supervisor on their
// process. Changes in nested tables are reported to every ancestor, and
// Windows flattens window-bearing processes depth first: each process in
// table order, followed by the windows of its children.
//
// # Thread Safety
//
// Catalog is safe for concurrent use. Supervisor guards its table with a
// lock but notifies watchers outside it, so callers serialize changes to
// keep notifications in order; the desk does all of them on its event
// loop. Hooks and observers are called without internal locks held, so
// they may call back into the supervisor.
package process
