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

// BatchedLoader is the batch-granular iterator: it pulls rows through the
// shuffling buffer, sanitizes them and collates them into batches of
// BatchSize rows. The final batch of a pass is emitted short rather than
// padded or dropped.
//
// With WithInMemoryCache the loader becomes the epoch-counting authority: the
// first pass drains the reader's single epoch while materializing every row
// in memory, and every later pass replays the cache through a fresh shuffling
// buffer without touching the reader again.
type BatchedLoader struct {
	reader Reader
	opts   options
	rng    *rand.Rand

	live       bool
	readerDone bool

	// In-memory cache, populated during the first streaming pass. Once
	// cacheDone is set the reader is never read again; every pass replays
	// this same materialized row set.
	cache     []*row.Row
	cacheDone bool
}

// NewBatched wraps a Reader in a batch-granular loader. Misconfiguration of
// the epoch/caching contract is rejected here, not at iteration time:
// an epoch count without caching, or caching over a reader that emits
// anything other than exactly one epoch, are both usage errors.
func NewBatched(r Reader, opts ...Option) (*BatchedLoader, error) {
	if r == nil {
		return nil, errors.New("loader requires a reader")
	}
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	if o.epochsSet && !o.cacheAll {
		return nil, errors.New("an epoch count should not be specified when in-memory caching is not enabled: the reader owns epoch counting")
	}
	if o.cacheAll {
		if readerEpochs := r.Epochs(); readerEpochs != 1 {
			return nil, errors.Errorf("reader is configured for %d epochs (0 means unbounded); in-memory caching requires the reader to emit exactly one epoch", readerEpochs)
		}
		if !o.epochsSet {
			o.epochs = 1
		}
	}
	return &BatchedLoader{reader: r, opts: o, rng: o.newRand()}, nil
}

// Iterate starts a new pass over the data. In cache mode one iterator spans
// the loader's whole configured epoch count; otherwise it spans whatever the
// reader emits until its own epochs run out. Fails with a usage error while
// a previous iterator is live.
func (l *BatchedLoader) Iterate() (*BatchedIterator, error) {
	if l.live {
		return nil, errLivePass
	}
	streaming := !(l.opts.cacheAll && l.cacheDone)
	if streaming && l.readerDone {
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
	return &BatchedIterator{l: l, buf: buf, streaming: streaming}, nil
}

// Close releases the borrowed reader.
func (l *BatchedLoader) Close() error {
	if l.live {
		klog.Warning("batched loader closed while an iterator is still active")
	}
	return l.reader.Close()
}

// BatchedIterator is one batch-granular pass. Not safe for concurrent use.
type BatchedIterator struct {
	l   *BatchedLoader
	buf shuffle.RowBuffer

	// streaming is true while rows come from the reader; false while the
	// current pass replays the cache.
	streaming bool
	srcDone   bool
	cachePos  int
	passes    int
	closed    bool
}

// Next returns the next collated batch, or io.EOF once every configured
// epoch has been emitted. A batch never spans an epoch boundary: the last
// batch of each pass may be short.
func (it *BatchedIterator) Next() (*row.Row, error) {
	if it.closed {
		return nil, io.EOF
	}
	samples := make([]*row.Row, 0, it.l.opts.batchSize)
	for len(samples) < it.l.opts.batchSize {
		r, err := it.nextRow()
		if err == io.EOF {
			if len(samples) > 0 {
				break
			}
			ok, aerr := it.advancePass()
			if aerr != nil {
				return nil, aerr
			}
			if ok {
				continue
			}
			it.Close()
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		samples = append(samples, r)
	}
	batch, err := collate.Rows(samples)
	if err != nil {
		return nil, err
	}
	if it.l.opts.transform != nil {
		batch = it.l.opts.transform(batch)
	}
	return batch, nil
}

// nextRow produces one row of the current pass: keep the shuffling buffer as
// full as possible, then retrieve; io.EOF once the source is drained and the
// buffer is empty.
func (it *BatchedIterator) nextRow() (*row.Row, error) {
	for {
		if it.buf.CanRetrieve() {
			return it.buf.Retrieve()
		}
		if it.srcDone {
			return nil, io.EOF
		}
		r, err := it.source()
		if err == io.EOF {
			it.srcDone = true
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

// source yields the next raw row of the current pass, from the reader while
// streaming (materializing it in the cache when caching is on) or from the
// cache during replay passes.
func (it *BatchedIterator) source() (*row.Row, error) {
	if it.streaming {
		r, err := it.l.reader.Next()
		if err == io.EOF {
			it.l.readerDone = true
			if it.l.opts.cacheAll {
				it.l.cacheDone = true
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		if it.l.opts.cacheAll {
			it.l.cache = append(it.l.cache, r)
		}
		return r, nil
	}
	if it.cachePos >= len(it.l.cache) {
		return nil, io.EOF
	}
	r := it.l.cache[it.cachePos]
	it.cachePos++
	return r, nil
}

// advancePass moves to the next epoch when the loader owns epoch counting.
// Every replay pass gets a fresh shuffling buffer so its order is randomized
// independently of earlier passes.
func (it *BatchedIterator) advancePass() (bool, error) {
	if !it.l.opts.cacheAll {
		return false, nil
	}
	it.passes++
	if !it.l.opts.unboundedEpochs && it.passes >= it.l.opts.epochs {
		return false, nil
	}
	if len(it.l.cache) == 0 {
		// Nothing was materialized; replaying forever would spin.
		return false, nil
	}
	buf, err := newBuffer(it.l.opts.shuffleCapacity, it.l.rng)
	if err != nil {
		return false, err
	}
	it.buf = buf
	it.streaming = false
	it.srcDone = false
	it.cachePos = 0
	return true, nil
}

// Close abandons the pass early and lets a new iterator be created. It is
// idempotent and is also called internally once the pass is exhausted.
func (it *BatchedIterator) Close() {
	if it.closed {
		return
	}
	it.closed = true
	it.l.live = false
}
