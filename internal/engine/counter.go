package engine

import "sync/atomic"

// Counter hands out mutual-exclusion group ids.
//
// The first id is 0 and ids increase by one per call. Counter is owned by a
// single Session; Fork copies its position rather than sharing it.
type Counter struct {
	next atomic.Int64
}

// NewCounter creates a counter whose first id is 0.
func NewCounter() *Counter {
	return &Counter{}
}

// NewCounterAt creates a counter whose next id is next.
func NewCounterAt(next int64) *Counter {
	c := &Counter{}
	c.next.Store(next)
	return c
}

// Next returns a fresh id.
func (c *Counter) Next() int64 {
	return c.next.Add(1) - 1
}

// Peek returns the id the next call to Next will return.
func (c *Counter) Peek() int64 {
	return c.next.Load()
}

// Fork returns an independent counter at the same position.
func (c *Counter) Fork() *Counter {
	return NewCounterAt(c.Peek())
}
