// Package shuffle provides the bounded reservoir that randomizes a row stream
// under a fixed memory ceiling. A Random buffer of capacity C guarantees that
// a row is emitted no more than C positions away from where it arrived; true
// uniform shuffling of the whole stream is deliberately not attempted.
package shuffle

import (
	"io"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/quartzind/rowfeed/row"
)

// RowBuffer is the buffering contract between a row source and a consumer.
// The driving loop is: retrieve while CanRetrieve, otherwise add one more
// upstream row; call Finish once the upstream is exhausted and keep
// retrieving until Retrieve returns io.EOF.
type RowBuffer interface {
	// CanAdd reports whether the buffer accepts another row.
	CanAdd() bool
	// Add stores one row. Adding after Finish or past capacity is an error.
	Add(r *row.Row) error
	// CanRetrieve reports whether Retrieve would produce a row now.
	CanRetrieve() bool
	// Retrieve removes and returns one row. After Finish it drains the
	// remaining rows and then returns io.EOF.
	Retrieve() (*row.Row, error)
	// Finish signals that no more rows will be added.
	Finish()
	// Len returns the number of rows currently buffered.
	Len() int
}

// FIFO is the pass-through buffer used when shuffling is disabled: rows come
// out in exactly the order they went in, one at a time.
type FIFO struct {
	items    []*row.Row
	finished bool
}

// NewFIFO returns an empty pass-through buffer.
func NewFIFO() *FIFO {
	return &FIFO{}
}

func (b *FIFO) CanAdd() bool {
	return !b.finished
}

func (b *FIFO) Add(r *row.Row) error {
	if b.finished {
		return errors.New("cannot add to a buffer after Finish")
	}
	b.items = append(b.items, r)
	return nil
}

func (b *FIFO) CanRetrieve() bool {
	return len(b.items) > 0
}

func (b *FIFO) Retrieve() (*row.Row, error) {
	if len(b.items) == 0 {
		if b.finished {
			return nil, io.EOF
		}
		return nil, errors.New("retrieve from an empty buffer that is still accepting rows")
	}
	r := b.items[0]
	b.items[0] = nil
	b.items = b.items[1:]
	return r, nil
}

func (b *FIFO) Finish() {
	b.finished = true
}

func (b *FIFO) Len() int {
	return len(b.items)
}

// Random is a bounded reservoir: it is kept as full as possible before any
// row is released, and each Retrieve removes a uniformly random resident row.
// Once Finish is called it drains to empty in random order.
type Random struct {
	capacity int
	items    []*row.Row
	rng      *rand.Rand
	finished bool
}

// NewRandom returns a shuffling buffer holding at most capacity rows. The
// random source is owned by the caller so repeated passes can be made
// independently reproducible.
func NewRandom(capacity int, rng *rand.Rand) (*Random, error) {
	if capacity <= 0 {
		return nil, errors.Errorf("shuffling buffer capacity must be positive, got %d", capacity)
	}
	if rng == nil {
		return nil, errors.New("shuffling buffer requires a random source")
	}
	return &Random{
		capacity: capacity,
		items:    make([]*row.Row, 0, capacity),
		rng:      rng,
	}, nil
}

func (b *Random) CanAdd() bool {
	return !b.finished && len(b.items) < b.capacity
}

func (b *Random) Add(r *row.Row) error {
	if b.finished {
		return errors.New("cannot add to a shuffling buffer after Finish")
	}
	if len(b.items) >= b.capacity {
		return errors.Errorf("shuffling buffer is full (capacity %d)", b.capacity)
	}
	b.items = append(b.items, r)
	return nil
}

// CanRetrieve is true only when the buffer is full or the upstream is done;
// holding rows back until the buffer fills is what buys randomization
// quality.
func (b *Random) CanRetrieve() bool {
	if len(b.items) == 0 {
		return false
	}
	return b.finished || len(b.items) >= b.capacity
}

func (b *Random) Retrieve() (*row.Row, error) {
	if len(b.items) == 0 {
		if b.finished {
			return nil, io.EOF
		}
		return nil, errors.New("retrieve from an empty shuffling buffer that is still accepting rows")
	}
	// Uniform pick over current contents, constant-time removal by swapping
	// the last element into the vacated slot.
	idx := b.rng.Intn(len(b.items))
	last := len(b.items) - 1
	r := b.items[idx]
	b.items[idx] = b.items[last]
	b.items[last] = nil
	b.items = b.items[:last]
	return r, nil
}

func (b *Random) Finish() {
	b.finished = true
}

func (b *Random) Len() int {
	return len(b.items)
}
