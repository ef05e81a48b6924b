package composer

import "sync/atomic"

// sequence numbers every level instance created by any composer in the
// process. It only moves forward.
var sequence atomic.Uint64

// NextSequence returns the next instance number.
func NextSequence() uint64 {
	return sequence.Add(1)
}

// CurrentSequence returns the last number handed out.
func CurrentSequence() uint64 {
	return sequence.Load()
}

// InitSequence raises the counter to at least start so names stay unique
// after a session is restored. It never lowers the counter.
func InitSequence(start uint64) {
	for {
		cur := sequence.Load()
		if cur >= start {
			return
		}
		if sequence.CompareAndSwap(cur, start) {
			return
		}
	}
}
