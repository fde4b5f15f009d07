// Package lua embeds a sandboxed Lua runtime that lets scripts extend the
// desk.
//
// # State
//
// State wraps gopher-lua with only the safe standard libraries opened
// (base, table, string, math) and the file and chunk loaders removed.
// Every outermost call into Lua runs under a timeout:
//
//	state := lua.NewState(lua.WithCallTimeout(2 * time.Second))
//	defer state.Close()
//
//	if err := state.DoString(`x = 1 + 1`); err != nil {
//	    log.Fatal(err)
//	}
//
// A State is not safe for concurrent use. Go callbacks that re-enter Lua
// from inside a running script are allowed and share the outer call's
// deadline.
//
// # Runtime
//
// Runtime exposes the desk module to scripts:
//
//	desk.register_app{
//	    key = "clock",
//	    name = "Clock",
//	    window = true,
//	    preflight = function(proc) return true end,
//	    launched = function(proc) desk.log("started " .. proc.pid) end,
//	    exit = function(complete) complete() end,
//	}
//
//	local result, pid = desk.open("clock", "utc")
//	desk.close(pid, false)
//
//	local off = desk.on("desk.window.close", "clock", function(ctx)
//	    return desk.STOP
//	end)
//
// A subscriber that returns desk.STOP or false stops later subscribers.
package lua
