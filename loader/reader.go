// Package loader turns an unordered stream of rows produced by a Reader into
// a restartable, memory-bounded iterator of batch-shaped records. It owns the
// shuffling buffer, the epoch lifecycle and the optional in-memory cache; it
// borrows the Reader and releases it on Close, but never constructs one.
package loader

import "github.com/quartzind/rowfeed/row"

// Reader is the upstream row source. Implementations may run their own worker
// pools internally; the loader only ever calls these blocking methods from
// the consuming goroutine.
type Reader interface {
	// Next returns the next row, or io.EOF once the reader has emitted its
	// configured number of epochs.
	Next() (*row.Row, error)

	// Epochs returns the number of full dataset passes the reader is
	// configured to emit; 0 means unbounded.
	Epochs() int

	// Reset rearms an exhausted reader so it can emit its epochs again.
	Reset() error

	// Close releases the reader's resources. The loader calls it from its own
	// Close.
	Close() error
}
