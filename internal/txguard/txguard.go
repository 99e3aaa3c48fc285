// Package txguard lets a caller probe whether a world.Tx handle is still
// valid without crashing the whole goroutine: it recovers exactly the
// panic a Tx raises once its Exec call has returned, letting callers
// that may be racing against world shutdown degrade gracefully instead
// of propagating the panic.
package txguard

import "github.com/fallingsand/engine/world"

const ClosedPanicMessage = world.TxClosedPanicMessage

func Run(tx *world.Tx, fn func()) (ok bool) {
	return run(tx, fn)
}

func Value[T any](tx *world.Tx, fn func() T) (value T, ok bool) {
	ok = run(tx, func() {
		value = fn()
	})
	return
}

func run(tx *world.Tx, fn func()) (ok bool) {
	if tx == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			if msg, str := r.(string); str && msg == ClosedPanicMessage {
				ok = false
				return
			}
			panic(r)
		}
	}()
	fn()
	return true
}
