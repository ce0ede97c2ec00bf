package dht

import (
	"errors"
	"fmt"
	"time"

	"github.com/Melenium2/dht/internal/node"
	"github.com/Melenium2/dht/internal/storage"
	"github.com/Melenium2/dht/pkg/logger"
)

const (
	// ParallelCalls is a small number representing the degree of
	// parallelism in network calls, usually 3, but
	// you can set it own.
	ParallelCalls = 3
	// BucketSize is maximum bucket list size. By default, 20.
	//
	// Bucket - is a container for nodes. Nodes stored in bucket by Kademlia
	// metric (XOR a ^ b, where a and b is ID of nodes).
	BucketSize = 20
	// IDBits is the length of node identifiers and keys.
	IDBits = node.DefaultBits
	// RPCTimeout bounds every single network call.
	RPCTimeout = 1 * time.Second
	// TableRefreshRate represent time for timer, which will run node discovery
	// algorithm.
	TableRefreshRate = 1 * time.Minute
	// LiveCheckRate represent time for timer, which will run node live checking
	// algorithm.
	LiveCheckRate = 8 * time.Second
	// MaxFailures is the count of failed calls in a row after which node is
	// removed from the table.
	MaxFailures = 3
	// ProbeRetries is the count of extra pings before node is considered dead.
	ProbeRetries = 2
)

// ErrInvalidOption returned by New if option value is out of range.
var ErrInvalidOption = errors.New("invalid option")

// Option is a configuration setter. DHT could be configured by provided options.
type Option func(opt *Options)

// Options of DHT.
type Options struct {
	// ParallelNetworkCalls is a number of maximum concurrency call while lookup nodes process.
	//
	// By default, ParallelCalls.
	ParallelNetworkCalls int
	// BucketSize represent maximum count of nodes inside one bucket. It is
	// also the count of nodes values are replicated to.
	//
	// By default, BucketSize.
	BucketSize int
	// IDBits is the length of identifiers. Local node must have identifier
	// of this length.
	//
	// By default, IDBits.
	IDBits int
	// RPCTimeout is a time after which network call is considered failed.
	//
	// By default, RPCTimeout.
	RPCTimeout time.Duration
	// TableRefreshRate is a time after which table will discover for new nodes.
	//
	// By default, TableRefreshRate.
	TableRefreshRate time.Duration
	// LiveCheckRate is a time after which table will ping the oldest node of
	// next bucket. If node is unreachable then table will remove it from bucket storage.
	//
	// By default, LiveCheckRate.
	LiveCheckRate time.Duration
	// MaxFailures is a count of failed calls in a row after which node is removed.
	//
	// By default, MaxFailures.
	MaxFailures int
	// ProbeRetries is a count of extra pings sent to the node before it is
	// considered dead.
	//
	// By default, ProbeRetries.
	ProbeRetries int
	// ReplacementCacheSize is a count of candidates remembered per bucket for the
	// time some entry is evicted.
	//
	// By default, equals to BucketSize.
	ReplacementCacheSize int
	// Store keeps values of the local node.
	//
	// By default, in-memory store with storage.DefaultTTL.
	Store storage.Store
	// Logger of DHT.
	//
	// By default, logger.GetLogger().
	Logger logger.Logger
}

func defaultOptions() Options {
	return Options{
		ParallelNetworkCalls: ParallelCalls,
		BucketSize:           BucketSize,
		IDBits:               IDBits,
		RPCTimeout:           RPCTimeout,
		TableRefreshRate:     TableRefreshRate,
		LiveCheckRate:        LiveCheckRate,
		MaxFailures:          MaxFailures,
		ProbeRetries:         ProbeRetries,
	}
}

func (o Options) validate() error {
	switch {
	case o.ParallelNetworkCalls <= 0:
		return fmt.Errorf("%w, parallel calls count %d", ErrInvalidOption, o.ParallelNetworkCalls)
	case o.RPCTimeout <= 0:
		return fmt.Errorf("%w, rpc timeout %s", ErrInvalidOption, o.RPCTimeout)
	case o.TableRefreshRate <= 0:
		return fmt.Errorf("%w, table refresh rate %s", ErrInvalidOption, o.TableRefreshRate)
	case o.LiveCheckRate <= 0:
		return fmt.Errorf("%w, live check rate %s", ErrInvalidOption, o.LiveCheckRate)
	case o.MaxFailures <= 0:
		return fmt.Errorf("%w, max failures %d", ErrInvalidOption, o.MaxFailures)
	case o.ProbeRetries < 0:
		return fmt.Errorf("%w, probe retries %d", ErrInvalidOption, o.ProbeRetries)
	}

	return nil
}

// WithParallelCallsCount sets count of possible concurrent calls while nodes lookup process.
func WithParallelCallsCount(n int) Option {
	return func(opt *Options) {
		opt.ParallelNetworkCalls = n
	}
}

// WithBucketSize sets maximum size of bucket storage.
func WithBucketSize(n int) Option {
	return func(opt *Options) {
		opt.BucketSize = n
	}
}

// WithIDBits sets length of identifiers.
func WithIDBits(bits int) Option {
	return func(opt *Options) {
		opt.IDBits = bits
	}
}

// WithRPCTimeout sets timeout of each network call.
func WithRPCTimeout(timeout time.Duration) Option {
	return func(opt *Options) {
		opt.RPCTimeout = timeout
	}
}

// WithTableRefreshRate sets timer for discover process.
func WithTableRefreshRate(rate time.Duration) Option {
	return func(opt *Options) {
		opt.TableRefreshRate = rate
	}
}

// WithLiveCheckRate sets timer for nodes validation.
func WithLiveCheckRate(rate time.Duration) Option {
	return func(opt *Options) {
		opt.LiveCheckRate = rate
	}
}

// WithMaxFailures sets count of failed calls after which node is removed.
func WithMaxFailures(n int) Option {
	return func(opt *Options) {
		opt.MaxFailures = n
	}
}

// WithProbeRetries sets count of extra pings of probed node.
func WithProbeRetries(n int) Option {
	return func(opt *Options) {
		opt.ProbeRetries = n
	}
}

// WithReplacementCacheSize sets size of replacement cache of each bucket.
func WithReplacementCacheSize(n int) Option {
	return func(opt *Options) {
		opt.ReplacementCacheSize = n
	}
}

// WithValueStore sets storage of values.
func WithValueStore(store Store) Option {
	return func(opt *Options) {
		opt.Store = store
	}
}

// WithLogger sets logger.
func WithLogger(log logger.Logger) Option {
	return func(opt *Options) {
		opt.Logger = log
	}
}
