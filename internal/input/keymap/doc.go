// Package keymap maps keybinding sequences to named commands.
//
// # Key Concepts
//
// Keymap: A mapping from binding identifier ("desk.window.close") to a
// Binding. The keymap is supplied once when a Router is built.
//
// Binding: A named command with one or more keybinding strings and an
// optional list of subscribers declared up front.
//
// Router: Attaches to an event Target, watches its key events and
// dispatches fully matched sequences to subscribers.
//
// # Sequences and Timeout
//
// A binding such as "Control+X Control+C" needs two presses in order. The
// router remembers, per parsed sequence, which presses are still
// expected. A wrong non-modifier key resets that sequence. Every handled
// event restarts a single shared timer (one second by default); when it
// fires all partial progress is dropped, so a sequence only resets after
// a pause in typing.
//
// # Dispatch
//
// On completion the router builds a TriggerContext and calls the
// binding's static subscribers first, then the ones added with On, in
// registration order. A subscriber returning Stop ends the chain.
//
// # Usage
//
//	router := keymap.NewRouter(target, keymap.Keymap{
//	    "commands.cancel": {Name: "Cancel", Keybindings: []string{"Escape"}},
//	})
//	defer router.Close()
//
//	off := router.On("commands.cancel", "dialog", func(ctx keymap.TriggerContext) keymap.Propagation {
//	    closeDialog()
//	    return keymap.Stop
//	})
//	defer off()
package keymap
