package interrupt

import "sync/atomic"

// Token is a single-fire cancellation signal. Firing it more than once
// is a no-op.
type Token struct {
	fired atomic.Bool
	done  chan struct{}
}

func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Fire fires the token. It reports whether this call fired it.
func (t *Token) Fire() bool {
	if !t.fired.CompareAndSwap(false, true) {
		return false
	}

	close(t.done)

	return true
}

// Done is closed once the token fired.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

func (t *Token) Fired() bool {
	return t.fired.Load()
}
