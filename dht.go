package dht

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Melenium2/dht/internal/kbuckets"
	"github.com/Melenium2/dht/internal/lookup"
	"github.com/Melenium2/dht/internal/node"
	"github.com/Melenium2/dht/internal/rpc"
	"github.com/Melenium2/dht/internal/service"
	"github.com/Melenium2/dht/internal/storage"
	"github.com/Melenium2/dht/pkg/logger"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoNodes returned if there is nobody to ask.
	ErrNoNodes = errors.New("no nodes to work with")
	// ErrNotFound returned if nobody has the value.
	ErrNotFound = errors.New("value not found")
)

// DHT - is distributed hash table. This hash table implements
// Kademlia DHT, and needed for creating overlay network over internet.
type DHT struct {
	self    node.Node
	opts    Options
	client  rpc.Client
	table   *kbuckets.Table
	service *service.Service
	lookup  *lookup.Coordinator
	store   storage.Store
	log     logger.Logger

	// next bucket to check, used by Maintenance only.
	nextCheck int
}

// New creates DHT of the local node self. Client is used for every
// outgoing call, requests of other nodes should be passed to Handler.
func New(self node.Node, client rpc.Client, opts ...Option) (*DHT, error) {
	options := defaultOptions()

	for _, opt := range opts {
		opt(&options)
	}

	if self.ID.Bits() != options.IDBits {
		return nil, fmt.Errorf("%w, local id has %d bits, expected %d", node.ErrInvalidNodeID, self.ID.Bits(), options.IDBits)
	}

	if err := options.validate(); err != nil {
		return nil, err
	}

	if options.ReplacementCacheSize <= 0 {
		options.ReplacementCacheSize = options.BucketSize
	}

	if options.Store == nil {
		options.Store = storage.NewMemory(storage.DefaultTTL)
	}

	if options.Logger == nil {
		options.Logger = logger.GetLogger()
	}

	table, err := kbuckets.NewTable(self.ID, options.BucketSize, options.ReplacementCacheSize)
	if err != nil {
		return nil, err
	}

	svc := service.New(table, client, options.Store, service.Config{
		K:            options.BucketSize,
		MaxFailures:  options.MaxFailures,
		ProbeRetries: options.ProbeRetries,
		RPCTimeout:   options.RPCTimeout,
		Log:          options.Logger,
	})

	coordinator := lookup.New(table, client, svc, lookup.Config{
		Self:       self.ID,
		K:          options.BucketSize,
		Alpha:      options.ParallelNetworkCalls,
		RPCTimeout: options.RPCTimeout,
		Log:        options.Logger,
	})

	return &DHT{
		self:    self,
		opts:    options,
		client:  client,
		table:   table,
		service: svc,
		lookup:  coordinator,
		store:   options.Store,
		log:     options.Logger.Named("dht"),
	}, nil
}

// Self returns the local node.
func (d *DHT) Self() node.Node {
	return d.self
}

// Handler serves requests of other nodes.
func (d *DHT) Handler() rpc.Handler {
	return d.service
}

// Size returns count of nodes in the routing table.
func (d *DHT) Size() int {
	return d.table.Size()
}

// Bootstrap pings seeds and fills the table with lookup of the local id.
// ErrNoNodes is returned if no seed answered.
func (d *DHT) Bootstrap(ctx context.Context, seeds []node.Node) error {
	if len(seeds) == 0 {
		return ErrNoNodes
	}

	var (
		alive atomic.Int32
		g     errgroup.Group
	)

	g.SetLimit(d.opts.ParallelNetworkCalls)

	for _, seed := range seeds {
		seed := seed

		if seed.ID.Equal(d.self.ID) {
			continue
		}

		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, d.opts.RPCTimeout)
			defer cancel()

			if err := d.client.Ping(callCtx, seed); err != nil {
				d.log.Warnf("seed %s is unreachable, reason %s", seed, err)

				return nil
			}

			d.service.Seen(seed)
			alive.Add(1)

			return nil
		})
	}

	_ = g.Wait()

	if alive.Load() == 0 {
		return fmt.Errorf("%w, none of %d seeds answered", ErrNoNodes, len(seeds))
	}

	res := d.lookup.FindNode(ctx, d.self.ID)

	d.log.Infof("bootstrap finished in %d rounds, table size %d", res.Rounds, d.table.Size())

	return ctx.Err()
}

// FindNode returns up to BucketSize closest reachable nodes to the target.
func (d *DHT) FindNode(ctx context.Context, target node.ID) ([]node.Node, error) {
	if target.Bits() != d.opts.IDBits {
		return nil, fmt.Errorf("%w, target has %d bits", node.ErrInvalidNodeID, target.Bits())
	}

	res := d.lookup.FindNode(ctx, target)
	if len(res.Closest) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		return nil, ErrNoNodes
	}

	return res.Closest, nil
}

// Put stores value on the closest nodes to the hash of key. Returns count
// of nodes which accepted the value.
func (d *DHT) Put(ctx context.Context, key, value []byte) (int, error) {
	id, err := node.HashKey(key, d.opts.IDBits)
	if err != nil {
		return 0, err
	}

	closest, err := d.FindNode(ctx, id)
	if err != nil {
		return 0, err
	}

	var (
		stored atomic.Int32
		g      errgroup.Group
	)

	for _, n := range closest {
		n := n

		g.Go(func() error {
			if err := d.storeAt(ctx, n, id, value); err != nil {
				return nil
			}

			stored.Add(1)

			return nil
		})
	}

	_ = g.Wait()

	if stored.Load() == 0 {
		return 0, fmt.Errorf("%w, nobody accepted the value", ErrNoNodes)
	}

	return int(stored.Load()), nil
}

// Get returns value stored under the hash of key. Local store is asked
// first. Found value is also stored at the closest asked node which did
// not have it.
func (d *DHT) Get(ctx context.Context, key []byte) ([]byte, error) {
	id, err := node.HashKey(key, d.opts.IDBits)
	if err != nil {
		return nil, err
	}

	if value, ok := d.store.Get(id); ok {
		return value, nil
	}

	res := d.lookup.FindValue(ctx, id)
	if !res.Found {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		return nil, ErrNotFound
	}

	if n, ok := cacheTarget(res); ok {
		_ = d.storeAt(ctx, n, id, res.Value)
	}

	return res.Value, nil
}

// cacheTarget picks the closest asked node which is not the holder.
func cacheTarget(res lookup.Result) (node.Node, bool) {
	queried := make(map[node.ID]struct{}, len(res.Queried))
	for _, n := range res.Queried {
		queried[n.ID] = struct{}{}
	}

	for _, n := range res.Closest {
		if n.ID.Equal(res.Holder.ID) {
			continue
		}

		if _, ok := queried[n.ID]; ok {
			return n, true
		}
	}

	return node.Node{}, false
}

func (d *DHT) storeAt(ctx context.Context, n node.Node, key node.ID, value []byte) error {
	callCtx, cancel := context.WithTimeout(ctx, d.opts.RPCTimeout)
	defer cancel()

	if err := d.client.Store(callCtx, n, key, value); err != nil {
		d.log.Debugf("can not store %s at %s, reason %s", key, n, err)
		d.service.Failed(n, err)

		return err
	}

	d.service.Responded(n)

	return nil
}

// Maintenance runs periodical live checking of buckets and refreshing of
// stale buckets until ctx is done.
func (d *DHT) Maintenance(ctx context.Context) error {
	var (
		liveCheck = time.NewTicker(d.opts.LiveCheckRate)
		refresh   = time.NewTicker(d.opts.TableRefreshRate)
	)

	defer liveCheck.Stop()
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-liveCheck.C:
			d.checkNextBucket(ctx)
		case <-refresh.C:
			d.refresh(ctx)
		}
	}
}

// checkNextBucket validates the oldest node of non-empty buckets in turn.
func (d *DHT) checkNextBucket(ctx context.Context) {
	buckets := d.table.NonEmptyBuckets()
	if len(buckets) == 0 {
		return
	}

	index := buckets[d.nextCheck%len(buckets)]
	d.nextCheck++

	if err := d.service.CheckBucket(ctx, index); err != nil && !errors.Is(err, service.ErrEmptyBucket) {
		d.log.Debugf("check of bucket %d failed, reason %s", index, err)
	}
}

// refresh looks up random id in every stale bucket. Buckets deeper than
// one after the deepest non-empty bucket can not be filled and are skipped.
func (d *DHT) refresh(ctx context.Context) {
	nonEmpty := d.table.NonEmptyBuckets()
	if len(nonEmpty) == 0 {
		return
	}

	deepest := nonEmpty[len(nonEmpty)-1]

	for _, index := range d.table.StaleBuckets(d.opts.TableRefreshRate) {
		if index > deepest+1 || ctx.Err() != nil {
			return
		}

		target, err := node.RandomIDInBucket(d.self.ID, index)
		if err != nil {
			d.log.Errorf("can not generate id for bucket %d, reason %s", index, err)

			continue
		}

		res := d.lookup.FindNode(ctx, target)

		d.log.Debugf("bucket %d refreshed, %d nodes found", index, len(res.Closest))
	}
}

// Close stops background probes and waits for them.
func (d *DHT) Close() {
	d.service.Close()
}
