// Package event provides the in-process publish/subscribe channel rooms use
// to announce lifecycle changes. Handlers for one emission run concurrently
// and the emit reports the first handler failure after every handler has
// finished.
package event

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/gameroom-go/model"
)

// Handler processes a single emitted event payload
type Handler func(ctx context.Context, payload any) error

// Emitter is a publish/subscribe registry keyed by event type
type Emitter struct {
	mu     sync.Mutex
	nextID int
	subs   map[model.EventType]map[int]*Subscription
}

// New creates an empty Emitter
func New() *Emitter {
	return &Emitter{
		subs: make(map[model.EventType]map[int]*Subscription),
	}
}

// Subscription identifies a registered handler so it can be removed later
type Subscription struct {
	emitter *Emitter
	event   model.EventType
	id      int
	once    bool
	fn      Handler
}

// Unsubscribe removes the subscription; safe to call more than once
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.emitter.remove(s)
}

// Event returns the event type the subscription is registered for
func (s *Subscription) Event() model.EventType {
	return s.event
}

// Subscribe registers a handler for the given event type. Handlers for the
// same event are held as a set; emission order between them is unspecified.
func (e *Emitter) Subscribe(event model.EventType, fn Handler) *Subscription {
	return e.add(event, fn, false)
}

// SubscribeOnce registers a handler that is removed immediately before its
// first invocation, so it observes itself as already unsubscribed and runs
// at most once even with concurrent emits.
func (e *Emitter) SubscribeOnce(event model.EventType, fn Handler) *Subscription {
	return e.add(event, fn, true)
}

func (e *Emitter) add(event model.EventType, fn Handler, once bool) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	sub := &Subscription{
		emitter: e,
		event:   event,
		id:      e.nextID,
		once:    once,
		fn:      fn,
	}
	handlers, ok := e.subs[event]
	if !ok {
		handlers = make(map[int]*Subscription)
		e.subs[event] = handlers
	}
	handlers[sub.id] = sub
	return sub
}

func (e *Emitter) remove(sub *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if handlers, ok := e.subs[sub.event]; ok {
		delete(handlers, sub.id)
		if len(handlers) == 0 {
			delete(e.subs, sub.event)
		}
	}
}

// Emit invokes every handler currently registered for the event. All
// handlers are started before any is waited on, each runs at most once per
// emission, and Emit returns only after every handler has settled. The first
// handler error is returned; emitting with no handlers succeeds.
func (e *Emitter) Emit(ctx context.Context, event model.EventType, payload any) error {
	e.mu.Lock()
	handlers := e.subs[event]
	fns := make([]Handler, 0, len(handlers))
	for id, sub := range handlers {
		fns = append(fns, sub.fn)
		if sub.once {
			delete(handlers, id)
		}
	}
	if len(handlers) == 0 {
		delete(e.subs, event)
	}
	e.mu.Unlock()

	if len(fns) == 0 {
		return nil
	}

	var g errgroup.Group
	for _, fn := range fns {
		fn := fn
		g.Go(func() error {
			return fn(ctx, payload)
		})
	}
	return g.Wait()
}

// RemoveAll drops the handlers for the given events, or every handler when
// called with no arguments
func (e *Emitter) RemoveAll(events ...model.EventType) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(events) == 0 {
		e.subs = make(map[model.EventType]map[int]*Subscription)
		return
	}
	for _, event := range events {
		delete(e.subs, event)
	}
}

// ListenerCount returns the number of handlers registered for the event
func (e *Emitter) ListenerCount(event model.EventType) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs[event])
}

// EventNames returns the event types with at least one handler, sorted
func (e *Emitter) EventNames() []model.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]model.EventType, 0, len(e.subs))
	for event := range e.subs {
		names = append(names, event)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
