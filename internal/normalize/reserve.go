package normalize

// Reserved is an Allocator over a block of ids taken up front. Batch
// submission reserves each item's block sequentially so that ids do not
// depend on worker scheduling.
type Reserved struct {
	ids  []int64
	next int
}

// Reserve draws n ids from alloc in order.
func Reserve(alloc Allocator, n int) *Reserved {
	r := &Reserved{ids: make([]int64, n)}
	for i := range n {
		r.ids[i] = alloc.Next()
	}
	return r
}

// IDs returns the reserved ids.
func (r *Reserved) IDs() []int64 { return append([]int64(nil), r.ids...) }

// Next returns the next reserved id. It panics when the block is
// exhausted, which means the caller reserved too few ids.
func (r *Reserved) Next() int64 {
	if r.next >= len(r.ids) {
		panic("normalize: reserved id block exhausted")
	}
	id := r.ids[r.next]
	r.next++
	return id
}
