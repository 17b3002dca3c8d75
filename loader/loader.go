package loader

import (
	"io"
	"math/rand"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/quartzind/rowfeed/collate"
	"github.com/quartzind/rowfeed/row"
	"github.com/quartzind/rowfeed/shuffle"
)

// errLivePass is returned when a new iterator is requested while a previous
// one has not been exhausted or closed. Interleaving two passes over a
// single-pass reader would silently split the data between them.
var errLivePass = errors.New("a previous iterator is still active: finish a full pass of the loader (or close the iterator) before starting another")

func newBuffer(capacity int, rng *rand.Rand) (shuffle.RowBuffer, error) {
	if capacity == 0 {
		return shuffle.NewFIFO(), nil
	}
	return shuffle.NewRandom(capacity, rng)
}

// Loader is the record-granular iterator: it emits one sanitized row at a
// time, with every array value carrying a synthetic leading dimension of
// size 1 so downstream code sees the same batch-shaped contract at any batch
// size.
type Loader struct {
	reader Reader
	opts   options
	rng    *rand.Rand

	live       bool
	readerDone bool
}

// New wraps a Reader in a record-granular loader. Batch-oriented options
// (batch size, in-memory cache, epoch counts) belong to NewBatched and are
// rejected here.
func New(r Reader, opts ...Option) (*Loader, error) {
	if r == nil {
		return nil, errors.New("loader requires a reader")
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	if o.batchSizeSet {
		return nil, errors.New("batch size applies only to the batched loader")
	}
	if o.cacheAll {
		return nil, errors.New("in-memory caching applies only to the batched loader")
	}
	if o.epochsSet {
		return nil, errors.New("an epoch count applies only to the batched loader")
	}
	return &Loader{reader: r, opts: o, rng: o.newRand()}, nil
}

// Iterate starts a new pass. It fails with a usage error while a previous
// iterator is live. If the reader was exhausted by the previous pass it is
// reset so the new pass streams from the beginning.
func (l *Loader) Iterate() (*Iterator, error) {
	if l.live {
		return nil, errLivePass
	}
	if l.readerDone {
		if err := l.reader.Reset(); err != nil {
			return nil, errors.Wrap(err, "resetting reader for a new pass")
		}
		l.readerDone = false
	}
	buf, err := newBuffer(l.opts.shuffleCapacity, l.rng)
	if err != nil {
		return nil, err
	}
	l.live = true
	return &Iterator{l: l, buf: buf}, nil
}

// Close releases the borrowed reader. The loader must not be used afterwards.
func (l *Loader) Close() error {
	if l.live {
		klog.Warning("loader closed while an iterator is still active")
	}
	return l.reader.Close()
}

// Iterator is one record-granular pass. It is not safe for concurrent use.
type Iterator struct {
	l       *Loader
	buf     shuffle.RowBuffer
	srcDone bool
	closed  bool
}

// Next returns the next record, or io.EOF when the pass is complete. Each
// record is sanitized and wrapped with a leading dimension of 1, then handed
// to the configured transform.
func (it *Iterator) Next() (*row.Row, error) {
	if it.closed {
		return nil, io.EOF
	}
	for {
		if it.buf.CanRetrieve() {
			r, err := it.buf.Retrieve()
			if err != nil {
				return nil, err
			}
			return it.emit(r)
		}
		if it.srcDone {
			it.Close()
			return nil, io.EOF
		}
		r, err := it.l.reader.Next()
		if err == io.EOF {
			it.srcDone = true
			it.l.readerDone = true
			it.buf.Finish()
			continue
		}
		if err != nil {
			return nil, err
		}
		collate.Sanitize(r)
		if err := it.buf.Add(r); err != nil {
			return nil, err
		}
	}
}

func (it *Iterator) emit(r *row.Row) (*row.Row, error) {
	wrapped, err := collate.Rows([]*row.Row{r})
	if err != nil {
		return nil, err
	}
	if it.l.opts.transform != nil {
		wrapped = it.l.opts.transform(wrapped)
	}
	return wrapped, nil
}

// Close abandons the pass early and lets a new iterator be created. It is
// idempotent and is also called internally once the pass is exhausted.
func (it *Iterator) Close() {
	if it.closed {
		return
	}
	it.closed = true
	it.l.live = false
}
