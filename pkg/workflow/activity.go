package workflow

import "sync"

// Activity is a one-shot completion handle for an asynchronous
// workflow: a composite, human-in-the-loop procedure built on
// pkg/fpm10's command layer, run under a single session-wide mutex and
// optionally exposed asynchronously through Activity itself. Its
// lifecycle is: created pending, then exactly one terminal transition
// (success or failure). Completion may be observed synchronously via
// Wait or asynchronously via a single registered OnComplete callback;
// cancellation is a non-blocking request the workflow observes
// cooperatively.
type Activity[T any] struct {
	mu        sync.Mutex
	done      bool
	result    T
	err       error
	cancelled bool
	onDone    func(T, error)
	doneCh    chan struct{}
}

// NewActivity creates a pending Activity.
func NewActivity[T any]() *Activity[T] {
	return &Activity[T]{doneCh: make(chan struct{})}
}

// Cancel requests cancellation. It never blocks; once the Activity is
// terminal it no longer changes the outcome, though CancelRequested
// still reports the request.
func (a *Activity[T]) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelled = true
}

// CancelRequested reports whether Cancel has been called. Workflows
// poll this at finger-presence boundaries, never mid-command.
func (a *Activity[T]) CancelRequested() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancelled
}

// Done reports whether the Activity has reached its terminal state.
func (a *Activity[T]) Done() bool {
	select {
	case <-a.doneCh:
		return true
	default:
		return false
	}
}

// Wait blocks until the Activity is terminal and returns its result or
// error. Calling it more than once, or after OnComplete, is safe and
// idempotent.
func (a *Activity[T]) Wait() (T, error) {
	<-a.doneCh
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result, a.err
}

// OnComplete registers a single completion callback. If the Activity
// is already terminal, the callback runs immediately on the calling
// goroutine; otherwise it runs once, on the goroutine that completes
// the Activity. Registering more than once replaces the prior
// callback, so only the most recently registered one runs.
func (a *Activity[T]) OnComplete(cb func(T, error)) {
	a.mu.Lock()
	if a.done {
		result, err := a.result, a.err
		a.mu.Unlock()
		cb(result, err)
		return
	}
	a.onDone = cb
	a.mu.Unlock()
}

// complete performs the Activity's single permitted terminal
// transition. Calling it more than once is a no-op: exactly one
// terminal transition is permitted, and the first one wins.
func (a *Activity[T]) complete(result T, err error) {
	a.mu.Lock()
	if a.done {
		a.mu.Unlock()
		return
	}
	a.done = true
	a.result = result
	a.err = err
	cb := a.onDone
	a.mu.Unlock()

	close(a.doneCh)
	if cb != nil {
		cb(result, err)
	}
}
