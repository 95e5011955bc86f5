package tokencache

import (
	"context"
	"sync"

	"github.com/ggoodman/tokencache-go/auth0err"
	"github.com/ggoodman/tokencache-go/provider"
)

// call is one in-flight provider fetch shared by every caller waiting on the
// same key. It is reference counted: the provider context is cancelled only
// when the last waiter leaves before the fetch finishes.
type call struct {
	id   string
	done chan struct{}

	// Set before done is closed; read only after.
	cred provider.Credential
	err  auth0err.Error

	mu        sync.Mutex
	waiters   int
	finished  bool
	abandoned bool
	cancel    context.CancelFunc
}

func newCall(id string) *call {
	return &call{id: id, done: make(chan struct{})}
}

// acquire registers a waiter. It fails once the call has been abandoned.
func (cl *call) acquire() bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.abandoned {
		return false
	}
	cl.waiters++
	return true
}

// release drops a waiter and reports whether doing so abandoned the call.
func (cl *call) release() bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.waiters--
	if cl.waiters > 0 || cl.finished || cl.abandoned {
		return false
	}
	cl.abandoned = true
	if cl.cancel != nil {
		cl.cancel()
	}
	return true
}

// begin derives the provider context from the leader's context. The result
// keeps the leader's values but not its cancellation.
func (cl *call) begin(ctx context.Context) context.Context {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cl.cancel = cancel
	if cl.abandoned {
		cancel()
	}
	return pctx
}

// finish publishes the outcome and wakes every waiter.
func (cl *call) finish(cred provider.Credential, err auth0err.Error) {
	cl.mu.Lock()
	cl.cred = cred
	cl.err = err
	cl.finished = true
	cancel := cl.cancel
	cl.mu.Unlock()

	close(cl.done)
	if cancel != nil {
		cancel()
	}
}
