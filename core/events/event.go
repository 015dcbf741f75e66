package events

import (
	"sync"

	"github.com/phoebe87124/appworks-final-project/core/types"
)

// Event represents a structured state change emitted by an engine.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Collector retains the most recent events in emission order so callers can
// inspect them after the fact. It is safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	limit  int
	events []*types.Event
}

// NewCollector constructs a collector bounded to the supplied number of
// retained events. A non-positive limit defaults to 256.
func NewCollector(limit int) *Collector {
	if limit <= 0 {
		limit = 256
	}
	return &Collector{limit: limit}
}

// Emit implements the Emitter interface.
func (c *Collector) Emit(evt Event) {
	if c == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, payload)
	if len(c.events) > c.limit {
		c.events = c.events[len(c.events)-c.limit:]
	}
}

// Events returns a copy of the retained events in emission order.
func (c *Collector) Events() []*types.Event {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*types.Event, len(c.events))
	copy(out, c.events)
	return out
}
