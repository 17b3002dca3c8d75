package loader

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/quartzind/rowfeed/row"
)

// TransformFn is an optional caller-supplied hook applied to every fully
// formed record or batch after collation, e.g. to move the data onto a
// compute device. It is called synchronously on the consuming goroutine.
type TransformFn func(*row.Row) *row.Row

// Option configures a Loader or BatchedLoader at construction time.
type Option func(*options)

type options struct {
	shuffleCapacity int
	batchSize       int
	batchSizeSet    bool
	cacheAll        bool
	epochs          int
	epochsSet       bool
	unboundedEpochs bool
	transform       TransformFn
	seed            int64
	seedSet         bool
}

// WithShufflingCapacity bounds the shuffling buffer at n rows. 0 (the
// default) disables shuffling entirely: rows come out in reader order.
func WithShufflingCapacity(n int) Option {
	return func(o *options) { o.shuffleCapacity = n }
}

// WithBatchSize sets how many rows are collated into each batch. Only valid
// on a BatchedLoader; the default is 1.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n; o.batchSizeSet = true }
}

// WithInMemoryCache makes the loader materialize the reader's single epoch in
// memory on the first pass and replay the cache on later passes, each with a
// freshly randomized order. Requires the reader to be configured for exactly
// one epoch. Only valid on a BatchedLoader.
func WithInMemoryCache() Option {
	return func(o *options) { o.cacheAll = true }
}

// WithEpochs makes the loader the epoch-counting authority: one iterator
// emits n full passes before signaling io.EOF. Valid only together with
// WithInMemoryCache.
func WithEpochs(n int) Option {
	return func(o *options) { o.epochs = n; o.epochsSet = true }
}

// WithUnboundedEpochs replays the cached dataset forever. Valid only together
// with WithInMemoryCache.
func WithUnboundedEpochs() Option {
	return func(o *options) { o.epochsSet = true; o.unboundedEpochs = true }
}

// WithTransform applies fn to every collated record or batch before it is
// handed to the consumer.
func WithTransform(fn TransformFn) Option {
	return func(o *options) { o.transform = fn }
}

// WithSeed fixes the seed of the loader's random source so shuffled passes
// are reproducible. Without it a time-based seed is used.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed; o.seedSet = true }
}

func buildOptions(opts []Option) (options, error) {
	var o options
	o.batchSize = 1
	for _, opt := range opts {
		opt(&o)
	}
	if o.shuffleCapacity < 0 {
		return o, errors.Errorf("shuffling capacity must not be negative, got %d", o.shuffleCapacity)
	}
	if o.batchSize < 1 {
		return o, errors.Errorf("batch size must be at least 1, got %d", o.batchSize)
	}
	if o.epochsSet && !o.unboundedEpochs && o.epochs < 1 {
		return o, errors.Errorf("epoch count must be at least 1, got %d", o.epochs)
	}
	return o, nil
}

func (o *options) newRand() *rand.Rand {
	seed := o.seed
	if !o.seedSet {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
