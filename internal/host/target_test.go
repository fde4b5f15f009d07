package host

import (
	"slices"
	"testing"
)

func TestEventTarget_EmitOrder(t *testing.T) {
	target := NewEventTarget(nil)

	var got []string
	target.AddListener(func(e any) { got = append(got, "a:"+e.(string)) })
	target.AddListener(func(e any) { got = append(got, "b:"+e.(string)) })

	target.Emit("x")

	if want := []string{"a:x", "b:x"}; !slices.Equal(got, want) {
		t.Errorf("Emit delivered %v, want %v", got, want)
	}
}

func TestEventTarget_Remove(t *testing.T) {
	target := NewEventTarget(nil)

	count := 0
	fn := func(any) { count++ }
	removeFirst := target.AddListener(fn)
	target.AddListener(fn)

	removeFirst()
	removeFirst()
	if target.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", target.Len())
	}

	target.Emit(nil)
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestEventTarget_RemoveDuringEmit(t *testing.T) {
	target := NewEventTarget(nil)

	var calls []string
	var removeSecond func()
	target.AddListener(func(any) {
		calls = append(calls, "first")
		removeSecond()
	})
	removeSecond = target.AddListener(func(any) { calls = append(calls, "second") })

	target.Emit(nil)
	target.Emit(nil)

	if want := []string{"first", "second", "first"}; !slices.Equal(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestEventTarget_PanicRecovered(t *testing.T) {
	target := NewEventTarget(nil)

	reached := false
	target.AddListener(func(any) { panic("boom") })
	target.AddListener(func(any) { reached = true })

	target.Emit(nil)

	if !reached {
		t.Error("listener after a panicking one was not called")
	}
}
