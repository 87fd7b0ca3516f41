package registry

import (
	"context"
	"sync"

	"github.com/specialistvlad/hostcfg/internal/lockable"
)

// Func is a configuration function. It receives the host's locked attribute
// object and may reassign any attribute that was declared at construction.
type Func func(ctx context.Context, obj *lockable.Object) error

// Entry is a registered function together with the name it was marked under.
type Entry struct {
	Name string
	Fn   Func
}

// Collector accumulates entries in registration order.
type Collector struct {
	mu      sync.Mutex
	pending []Entry
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Register appends fn under name.
func (c *Collector) Register(name string, fn Func) {
	if fn == nil {
		panic("registry: cannot register a nil function")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, Entry{Name: name, Fn: fn})
}

// Mark registers fn and returns it unchanged.
func (c *Collector) Mark(name string, fn Func) Func {
	c.Register(name, fn)
	return fn
}

// Has reports whether an entry named name is pending.
func (c *Collector) Has(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.pending {
		if e.Name == name {
			return true
		}
	}
	return false
}

// Drain returns the pending entries in registration order and clears the
// collector in the same critical section.
func (c *Collector) Drain() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.pending))
	copy(out, c.pending)
	c.pending = nil
	return out
}

// Reset drops every pending entry.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
}

// Len returns the number of pending entries.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
