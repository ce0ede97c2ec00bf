// Package service connects inbound requests and lookup results with the
// routing table. Every contact with a remote node is a liveness evidence,
// full buckets are resolved by probing the least-recently-seen entry.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Melenium2/dht/internal/kbuckets"
	"github.com/Melenium2/dht/internal/node"
	"github.com/Melenium2/dht/internal/rpc"
	"github.com/Melenium2/dht/internal/storage"
	"github.com/Melenium2/dht/pkg/logger"

	"golang.org/x/sync/semaphore"
)

const (
	DefaultK             = 20
	DefaultMaxFailures   = 3
	DefaultProbeRetries  = 2
	DefaultProbeInterval = 200 * time.Millisecond
	DefaultRPCTimeout    = 1 * time.Second
	DefaultMaxProbes     = 16
)

// Table is the routing state the Service works with.
type Table interface {
	Self() node.ID
	Update(n node.Node) (kbuckets.UpdateResult, error)
	Remove(id node.ID) bool
	PopOldest(index int) (node.Node, bool)
	AddReplacement(n node.Node) error
	PopReplacement(index int) (node.Node, bool)
	FindClosest(target node.ID, count int) []node.Node
}

// Config of the Service.
type Config struct {
	// K is the count of nodes returned to find_node requests.
	K int
	// MaxFailures is the count of failed calls in a row after which the
	// node is removed from the table.
	MaxFailures int
	// ProbeRetries is the count of extra pings before node is considered
	// dead. Zero means single ping, negative means DefaultProbeRetries.
	ProbeRetries int
	// ProbeInterval is the pause between probe pings.
	ProbeInterval time.Duration
	// RPCTimeout bounds each ping.
	RPCTimeout time.Duration
	// MaxProbes limits probes of full buckets running in background.
	MaxProbes int64
	// Log is the parent logger, logger.GetLogger() if nil.
	Log logger.Logger
}

func (c Config) withDefaults() Config {
	if c.K <= 0 {
		c.K = DefaultK
	}

	if c.MaxFailures <= 0 {
		c.MaxFailures = DefaultMaxFailures
	}

	if c.ProbeRetries < 0 {
		c.ProbeRetries = DefaultProbeRetries
	}

	if c.ProbeInterval <= 0 {
		c.ProbeInterval = DefaultProbeInterval
	}

	if c.RPCTimeout <= 0 {
		c.RPCTimeout = DefaultRPCTimeout
	}

	if c.MaxProbes <= 0 {
		c.MaxProbes = DefaultMaxProbes
	}

	if c.Log == nil {
		c.Log = logger.GetLogger()
	}

	return c
}

// Service implements rpc.Handler and lookup.Observer.
type Service struct {
	table  Table
	client rpc.Client
	store  storage.Store
	cfg    Config
	log    logger.Logger

	// background probes.
	ctx     context.Context
	cancel  context.CancelFunc
	probes  *semaphore.Weighted
	wg      sync.WaitGroup
	mu      sync.Mutex
	probing map[node.ID]struct{}
	// failed calls in a row per node.
	failures map[node.ID]int
}

// New creates Service. Store may be nil, then values are neither stored
// nor returned.
func New(table Table, client rpc.Client, store storage.Store, cfg Config) *Service {
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		table:    table,
		client:   client,
		store:    store,
		cfg:      cfg,
		log:      cfg.Log.Named("service"),
		ctx:      ctx,
		cancel:   cancel,
		probes:   semaphore.NewWeighted(cfg.MaxProbes),
		probing:  make(map[node.ID]struct{}),
		failures: make(map[node.ID]int),
	}
}

func (s *Service) HandlePing(from node.Node) error {
	s.Seen(from)

	return nil
}

// HandleFindNode returns the closest known nodes to target except the
// requester itself.
func (s *Service) HandleFindNode(from node.Node, target node.ID) ([]node.Node, error) {
	s.Seen(from)

	if target.Bits() != s.table.Self().Bits() {
		return nil, fmt.Errorf("%w, target %s has foreign length", node.ErrInvalidNodeID, target)
	}

	return s.closest(from, target), nil
}

func (s *Service) HandleFindValue(from node.Node, key node.ID) (rpc.FindValueResult, error) {
	s.Seen(from)

	if key.Bits() != s.table.Self().Bits() {
		return rpc.FindValueResult{}, fmt.Errorf("%w, key %s has foreign length", node.ErrInvalidNodeID, key)
	}

	if s.store != nil {
		if value, ok := s.store.Get(key); ok {
			return rpc.FindValueResult{Value: value, Found: true}, nil
		}
	}

	return rpc.FindValueResult{Nodes: s.closest(from, key)}, nil
}

func (s *Service) HandleStore(from node.Node, key node.ID, value []byte) error {
	s.Seen(from)

	if key.Bits() != s.table.Self().Bits() {
		return fmt.Errorf("%w, key %s has foreign length", node.ErrInvalidNodeID, key)
	}

	if s.store == nil {
		return nil
	}

	return s.store.Put(key, value)
}

func (s *Service) closest(from node.Node, target node.ID) []node.Node {
	nodes := s.table.FindClosest(target, s.cfg.K+1)

	out := make([]node.Node, 0, len(nodes))

	for _, n := range nodes {
		if n.ID == from.ID || len(out) == s.cfg.K {
			continue
		}

		out = append(out, n)
	}

	return out
}

// Seen registers fresh liveness evidence of n. If the bucket of n is full
// its least-recently-seen entry is probed in background.
func (s *Service) Seen(n node.Node) {
	s.mu.Lock()
	delete(s.failures, n.ID)
	s.mu.Unlock()

	res, err := s.table.Update(n)
	if err != nil {
		s.log.Debugf("node %s is ignored, reason %s", n, err)

		return
	}

	if res.Outcome == kbuckets.Full {
		s.probeLater(res.Candidate, n)
	}
}

// Responded implements lookup.Observer.
func (s *Service) Responded(n node.Node) {
	s.Seen(n)
}

// Failed implements lookup.Observer. Node is removed from the table after
// MaxFailures failed calls in a row, its place is taken by a replacement.
func (s *Service) Failed(n node.Node, err error) {
	if !rpc.IsFailure(err) {
		return
	}

	s.mu.Lock()
	s.failures[n.ID]++
	count := s.failures[n.ID]

	if count >= s.cfg.MaxFailures {
		delete(s.failures, n.ID)
	}
	s.mu.Unlock()

	if count < s.cfg.MaxFailures {
		return
	}

	s.log.Warnf("node %s failed %d calls in a row, removing", n, count)

	s.evict(n)
}

// Wait blocks until all background probes are finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close stops background probes and waits for them.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}
