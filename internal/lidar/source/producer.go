package source

import (
	"sync"

	"github.com/banshee-data/simbridge/internal/lidar/l2scan"
)

// Handler receives a hit buffer holding hitCount records. buf must not be
// retained after the call returns.
type Handler func(buf []byte, hitCount int)

// Producer is a source of hit buffers.
type Producer interface {
	Geometry() l2scan.Geometry
	// Subscribe installs the consumer, replacing any previous one. The
	// returned func removes it if it is still installed.
	Subscribe(fn Handler) (unsubscribe func())
}

// consumer holds the single Handler of a producer.
type consumer struct {
	mu  sync.Mutex
	gen uint64
	fn  Handler
}

func (c *consumer) subscribe(fn Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	gen := c.gen
	c.fn = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen == gen {
			c.fn = nil
		}
	}
}

// notify calls the consumer, if any, and reports whether one was called.
func (c *consumer) notify(buf []byte, hitCount int) bool {
	c.mu.Lock()
	fn := c.fn
	c.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(buf, hitCount)
	return true
}
