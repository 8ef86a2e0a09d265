package session

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/spotsearch/internal/shared"
)

type handshakeResult struct {
	msg TokenMessage
	err error
}

// handshake is a one-shot channel between the redirect context and the opener.
// It settles exactly once, with either a message or a cancellation.
type handshake struct {
	once   sync.Once
	result chan handshakeResult
}

func newHandshake() *handshake {
	return &handshake{result: make(chan handshakeResult, 1)}
}

func (h *handshake) settle(r handshakeResult) bool {
	settled := false
	h.once.Do(func() {
		h.result <- r
		close(h.result)
		settled = true
	})
	return settled
}

// deliver hands msg to the waiting opener. It reports false when the handshake already settled.
func (h *handshake) deliver(msg TokenMessage) bool {
	return h.settle(handshakeResult{msg: msg})
}

// cancel settles the handshake with err unless a message got there first.
func (h *handshake) cancel(err error) bool {
	return h.settle(handshakeResult{err: err})
}

// wait blocks until the handshake settles, timeout elapses, or ctx is done.
func (h *handshake) wait(ctx context.Context, timeout time.Duration) (TokenMessage, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var cause error
	select {
	case r := <-h.result:
		return r.msg, r.err
	case <-timer.C:
		cause = shared.ErrLoginTimeout
	case <-ctx.Done():
		cause = shared.ErrLoginCancelled
	}

	if h.cancel(cause) {
		<-h.result
		return TokenMessage{}, cause
	}

	// A message won the race against the timeout.
	r := <-h.result
	return r.msg, r.err
}
