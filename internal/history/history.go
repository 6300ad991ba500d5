// Package history implements the engine's append-only, bounded price and
// index-value rings (spec component C1). It is accessed from exactly one
// goroutine per spec.md §5, so unlike the teacher's internal/ringbuf it
// needs no atomics or cache-line padding — just a preallocated backing
// array and a write cursor, the same shape minus the lock-free concerns.
package history

import "metalindexd/internal/model"

const (
	// MaxHistoryPoints bounds each metal's price ring to 24h at a 5-minute
	// cadence.
	MaxHistoryPoints = 288
	// MaxIndexHistory bounds the composite-index ring to 14 days at the
	// same cadence.
	MaxIndexHistory = MaxHistoryPoints * 14
)

// Ring is a fixed-capacity, oldest-drops-first sequence of PricePoint.
type Ring struct {
	buf   []model.PricePoint
	start int // index of the oldest element
	n     int // number of valid elements
}

// NewRing creates a ring with the given capacity.
func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]model.PricePoint, capacity)}
}

// Push appends p, dropping the oldest element if the ring is full.
func (r *Ring) Push(p model.PricePoint) {
	cap := len(r.buf)
	if r.n < cap {
		r.buf[(r.start+r.n)%cap] = p
		r.n++
		return
	}
	// Full: overwrite the oldest slot and advance start.
	r.buf[r.start] = p
	r.start = (r.start + 1) % cap
}

// Len returns the number of elements currently stored.
func (r *Ring) Len() int { return r.n }

// Items returns a newly allocated slice of the stored elements, oldest
// first. Safe to mutate; does not alias the ring's backing array.
func (r *Ring) Items() []model.PricePoint {
	out := make([]model.PricePoint, r.n)
	cap := len(r.buf)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%cap]
	}
	return out
}

// Store owns the per-metal price rings and the composite-index ring.
type Store struct {
	prices map[model.Metal]*Ring
	index  *Ring
}

// NewStore creates a Store with empty rings at the spec's bounds.
func NewStore() *Store {
	s := &Store{
		prices: make(map[model.Metal]*Ring, len(model.Metals)),
		index:  NewRing(MaxIndexHistory),
	}
	for _, m := range model.Metals {
		s.prices[m] = NewRing(MaxHistoryPoints)
	}
	return s
}

// RecordPrice appends (nowMs, price) for metal m. Non-positive prices are
// rejected by skipping the append entirely — no state change.
func (s *Store) RecordPrice(m model.Metal, nowMs int64, price float64) {
	if price <= 0 {
		return
	}
	s.prices[m].Push(model.PricePoint{TS: nowMs, Price: price})
}

// RecordIndex appends a composite index value to the index-value ring.
func (s *Store) RecordIndex(value float64) {
	s.index.Push(model.PricePoint{Price: value})
}

// History returns a read-only snapshot of metal m's price series, oldest
// first.
func (s *Store) History(m model.Metal) []model.PricePoint {
	return s.prices[m].Items()
}

// IndexSeries returns a read-only snapshot of the composite index series,
// oldest first.
func (s *Store) IndexSeries() []float64 {
	items := s.index.Items()
	out := make([]float64, len(items))
	for i, p := range items {
		out[i] = p.Price
	}
	return out
}
