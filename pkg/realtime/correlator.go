package realtime

import (
	"context"
	"sync"
	"time"
)

// DefaultCallTimeout bounds how long an awaitable command waits for its
// matching terminal server event.
const DefaultCallTimeout = 30 * time.Second

// verdict is the outcome of evaluating one server event against one
// pending command.
type verdict int

const (
	// verdictIgnore leaves the waiter pending (e.g. an in-progress
	// response status).
	verdictIgnore verdict = iota
	// verdictResolve completes the waiter with the event.
	verdictResolve
	// verdictReject fails the waiter.
	verdictReject
)

// correlationRule maps a received event to a verdict for one pending
// command. The wire protocol carries no universal request ID echo, so
// acknowledgment is implied by type pairing.
type correlationRule func(*ServerEvent) (verdict, error)

// resolveOn returns a rule satisfied by the next event of exactly the
// given type.
func resolveOn(eventType string) correlationRule {
	return func(ev *ServerEvent) (verdict, error) {
		if ev.Type == eventType {
			return verdictResolve, nil
		}
		return verdictIgnore, nil
	}
}

// responseTerminalRule resolves on the first response.done whose embedded
// status has left in_progress. Progress events (response.created,
// interim response.done snapshots) never resolve the waiter; a failed
// terminal status rejects it with the embedded error.
func responseTerminalRule(ev *ServerEvent) (verdict, error) {
	if ev.Type != EventTypeResponseDone || ev.Response == nil {
		return verdictIgnore, nil
	}
	if !isTerminalStatus(ev.Response.Status) {
		return verdictIgnore, nil
	}
	if ev.Response.Status == ResponseStatusFailed {
		if d := ev.Response.StatusDetails; d != nil && d.Error != nil {
			return verdictReject, d.Error
		}
		return verdictReject, &Error{Type: "response_failed", Message: "response generation failed"}
	}
	return verdictResolve, nil
}

// correlationRules is the type-pair predicate table: which rule a client
// event type registers before transmission. Types absent from the table
// are fire-and-forget and register no waiter at all.
var correlationRules = map[string]func() correlationRule{
	EventTypeSessionUpdate:            func() correlationRule { return resolveOn(EventTypeSessionUpdated) },
	EventTypeInputAudioBufferCommit:   func() correlationRule { return resolveOn(EventTypeInputAudioBufferCommitted) },
	EventTypeInputAudioBufferClear:    func() correlationRule { return resolveOn(EventTypeInputAudioBufferCleared) },
	EventTypeConversationItemCreate:   func() correlationRule { return resolveOn(EventTypeConversationItemCreated) },
	EventTypeConversationItemTruncate: func() correlationRule { return resolveOn(EventTypeConversationItemTruncated) },
	EventTypeConversationItemDelete:   func() correlationRule { return resolveOn(EventTypeConversationItemDeleted) },
	EventTypeResponseCreate:           func() correlationRule { return responseTerminalRule },
	EventTypeResponseCancel:           func() correlationRule { return responseTerminalRule },
}

type waitResult struct {
	event *ServerEvent
	err   error
}

// waiter is one pending awaitable command.
type waiter struct {
	eventID  string
	sentType string
	rule     correlationRule
	ch       chan waitResult
	timer    *time.Timer
}

// correlator matches outgoing commands to their eventual terminal server
// events. A single mutex guards the waiter table; every mutate-and-check
// runs under it. Waiters are removed on resolve, reject, timeout, and
// cancellation alike, so no path leaks a registration.
type correlator struct {
	mu       sync.Mutex
	waiters  map[string]*waiter
	order    []string // registration order, for same-type routing
	closed   bool
	closeErr error
}

func newCorrelator() *correlator {
	return &correlator{waiters: make(map[string]*waiter)}
}

// register adds a waiter for a sent event before it is transmitted,
// closing the race between send and the earliest possible reply.
func (c *correlator) register(eventID, sentType string, rule correlationRule, timeout time.Duration) (*waiter, error) {
	w := &waiter{
		eventID:  eventID,
		sentType: sentType,
		rule:     rule,
		ch:       make(chan waitResult, 1),
	}

	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		if err == nil {
			err = &ConnectionClosedError{}
		}
		return nil, err
	}
	c.waiters[eventID] = w
	c.order = append(c.order, eventID)
	c.mu.Unlock()

	w.timer = time.AfterFunc(timeout, func() {
		c.fail(eventID, &TimeoutError{SentType: sentType, After: timeout})
	})
	return w, nil
}

// remove unregisters a waiter and returns it, or nil if it was already
// settled. Must be called with c.mu held.
func (c *correlator) remove(eventID string) *waiter {
	w, ok := c.waiters[eventID]
	if !ok {
		return nil
	}
	delete(c.waiters, eventID)
	for i, id := range c.order {
		if id == eventID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	return w
}

// fail rejects a single pending waiter, if still pending.
func (c *correlator) fail(eventID string, err error) {
	c.mu.Lock()
	w := c.remove(eventID)
	c.mu.Unlock()
	if w != nil {
		w.ch <- waitResult{err: err}
	}
}

// dispatch evaluates one decoded server event against all pending waiters
// in registration order. Among waiters of the same sent type the earliest
// registration consumes the event and the rest stay pending; waiters of
// different sent types may all settle on the same event. response.create
// and response.cancel both terminate on the same response.done, and a
// cancel issued while a create is in flight must not starve behind it.
func (c *correlator) dispatch(ev *ServerEvent) {
	if ev.Type == EventTypeError {
		c.dispatchError(ev)
		return
	}

	c.mu.Lock()
	var settled []*waiter
	var results []waitResult
	consumed := make(map[string]bool)
	for _, id := range append([]string(nil), c.order...) {
		w := c.waiters[id]
		if w == nil || consumed[w.sentType] {
			continue
		}
		v, err := w.rule(ev)
		if v == verdictIgnore {
			continue
		}
		consumed[w.sentType] = true
		c.remove(id)
		if v == verdictResolve {
			results = append(results, waitResult{event: ev})
		} else {
			results = append(results, waitResult{err: err})
		}
		settled = append(settled, w)
	}
	c.mu.Unlock()

	for i, w := range settled {
		w.ch <- results[i]
	}
}

// dispatchError routes a server error event. If the error names the
// event_id of one pending command, only that waiter is rejected;
// otherwise the error is unaddressed and may invalidate any in-flight
// call, so every pending waiter on this connection is rejected.
func (c *correlator) dispatchError(ev *ServerEvent) {
	apiErr := ev.Err()
	if apiErr == nil {
		apiErr = &Error{Message: "unknown server error"}
	}

	if detail := ev.ErrorDetail; detail != nil && detail.EventID != "" {
		c.mu.Lock()
		w := c.remove(detail.EventID)
		c.mu.Unlock()
		if w != nil {
			w.ch <- waitResult{err: apiErr}
			return
		}
		// No such waiter (already settled, or the offending event was
		// fire-and-forget): fall through to broadcast.
	}

	c.rejectAll(apiErr)
}

// rejectAll fails every pending waiter with err.
func (c *correlator) rejectAll(err error) {
	c.mu.Lock()
	pending := make([]*waiter, 0, len(c.waiters))
	for _, id := range append([]string(nil), c.order...) {
		if w := c.remove(id); w != nil {
			pending = append(pending, w)
		}
	}
	c.mu.Unlock()

	for _, w := range pending {
		w.ch <- waitResult{err: err}
	}
}

// close rejects all pending waiters and refuses future registrations.
func (c *correlator) close(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = err
	c.mu.Unlock()

	c.rejectAll(err)
}

// wait blocks until the waiter settles or ctx is cancelled. Cancellation
// removes the registration; nothing further is sent on the wire.
func (c *correlator) wait(ctx context.Context, w *waiter) (*ServerEvent, error) {
	select {
	case res := <-w.ch:
		return res.event, res.err
	case <-ctx.Done():
		c.mu.Lock()
		removed := c.remove(w.eventID)
		c.mu.Unlock()
		if removed == nil {
			// Settled concurrently with cancellation; the result is
			// already buffered.
			res := <-w.ch
			return res.event, res.err
		}
		return nil, ctx.Err()
	}
}
