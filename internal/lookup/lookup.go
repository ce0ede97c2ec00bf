// Package lookup implements iterative search of nodes and values in the
// network. Every lookup owns its state, routing table is only read to seed
// the search.
package lookup

import (
	"context"
	"time"

	"github.com/Melenium2/dht/internal/node"
	"github.com/Melenium2/dht/internal/rpc"
	"github.com/Melenium2/dht/pkg/logger"
)

const (
	DefaultK          = 20
	DefaultAlpha      = 3
	DefaultRPCTimeout = 1 * time.Second
)

// Table provides the closest known nodes to seed the lookup.
type Table interface {
	FindClosest(target node.ID, count int) []node.Node
}

// Observer is notified about every finished call. Calls answered after the
// lookup ended are reported too.
type Observer interface {
	Responded(n node.Node)
	Failed(n node.Node, err error)
}

type nopObserver struct{}

func (nopObserver) Responded(node.Node)     {}
func (nopObserver) Failed(node.Node, error) {}

// Config of the lookup mechanism.
type Config struct {
	// Self is the local id, it is never queried.
	Self node.ID
	// K limits shortlist and result size.
	K int
	// Alpha is the count of concurrent calls in one round.
	Alpha int
	// RPCTimeout bounds each call separately.
	RPCTimeout time.Duration
	// RoundTimeout bounds waiting for calls of one round. Calls which did
	// not finish in time are merged in later rounds, the lookup waits for
	// all of them before it returns.
	RoundTimeout time.Duration
	// MaxRounds is the hard stop of the lookup. Defaults to the id length.
	MaxRounds int
	// Log is the parent logger, logger.GetLogger() if nil.
	Log logger.Logger
}

func (c Config) withDefaults() Config {
	if c.K <= 0 {
		c.K = DefaultK
	}

	if c.Alpha <= 0 {
		c.Alpha = DefaultAlpha
	}

	if c.RPCTimeout <= 0 {
		c.RPCTimeout = DefaultRPCTimeout
	}

	if c.RoundTimeout <= 0 {
		c.RoundTimeout = c.RPCTimeout
	}

	if c.Log == nil {
		c.Log = logger.GetLogger()
	}

	if c.MaxRounds <= 0 {
		c.MaxRounds = c.Self.Bits()
		if c.MaxRounds == 0 {
			c.MaxRounds = node.DefaultBits
		}
	}

	return c
}

// Result of the lookup.
type Result struct {
	// Value and Holder are set if find_value lookup found the key.
	Value  []byte
	Found  bool
	Holder node.Node
	// Closest nodes to the target ordered by distance. Queried nodes are
	// present only if they answered.
	Closest []node.Node
	// Queried holds every node asked during the lookup, in order of calls.
	Queried []node.Node
	Rounds  int
}

// Coordinator runs lookups. It is safe for concurrent use, each call to
// FindNode or FindValue has its own state.
type Coordinator struct {
	table    Table
	client   rpc.Client
	observer Observer
	cfg      Config
	log      logger.Logger
}

// New creates Coordinator. Observer may be nil.
func New(table Table, client rpc.Client, observer Observer, cfg Config) *Coordinator {
	if observer == nil {
		observer = nopObserver{}
	}

	cfg = cfg.withDefaults()

	return &Coordinator{
		table:    table,
		client:   client,
		observer: observer,
		cfg:      cfg,
		log:      cfg.Log.Named("lookup"),
	}
}

// FindNode returns up to K closest reachable nodes to the target.
func (c *Coordinator) FindNode(ctx context.Context, target node.ID) Result {
	return c.run(ctx, target, false)
}

// FindValue searches value stored under key. Search stops on the first
// node which returns the value.
func (c *Coordinator) FindValue(ctx context.Context, key node.ID) Result {
	return c.run(ctx, key, true)
}

type response struct {
	from  node.Node
	round int
	nodes []node.Node
	value []byte
	found bool
	err   error
}

// query is the state of one lookup.
type query struct {
	*Coordinator

	target    node.ID
	findValue bool

	list      *shortlist
	queried   []node.Node
	responded map[node.ID]struct{}
	rounds    int

	// calls issued and not received yet, per round.
	pending map[int]int
	results chan response
	done    chan struct{}
}

func (c *Coordinator) run(ctx context.Context, target node.ID, findValue bool) Result {
	q := &query{
		Coordinator: c,
		target:      target,
		findValue:   findValue,
		list:        newShortlist(target, c.cfg.Self, c.cfg.K),
		responded:   make(map[node.ID]struct{}),
		pending:     make(map[int]int),
		results:     make(chan response, c.cfg.K),
		done:        make(chan struct{}),
	}
	defer close(q.done)

	q.list.AddAll(c.table.FindClosest(target, c.cfg.K))

	res, _ := q.loop(ctx)

	c.log.Debugf("lookup %s finished in %d rounds, found %t, queried %d", target, res.Rounds, res.Found, len(res.Queried))

	return res
}

// loop runs rounds until the lookup converges. Returns true if the value
// was found.
func (q *query) loop(ctx context.Context) (Result, bool) {
	final := false

	for q.rounds < q.cfg.MaxRounds {
		count := q.cfg.Alpha
		if final {
			count = q.cfg.K
		}

		batch := q.list.Unqueried(count)

		if len(batch) == 0 {
			if final || q.inFlight() == 0 {
				break
			}

			// only late calls left, they may bring new candidates.
			if res, found := q.waitLate(ctx); found {
				return res, true
			}

			if ctx.Err() != nil {
				break
			}

			continue
		}

		q.rounds++

		before, hasBefore := q.list.Closest()

		for _, n := range batch {
			q.issue(ctx, n)
		}

		if res, found := q.waitRound(ctx, q.rounds); found {
			return res, true
		}

		if final || ctx.Err() != nil {
			break
		}

		after, hasAfter := q.list.Closest()

		improved := hasAfter && (!hasBefore || node.DistanceCmp(q.target, after.ID, before.ID) < 0)
		if !improved {
			final = true
		}
	}

	// every call is bounded by RPCTimeout, so waiting for the rest keeps
	// unreachable nodes out of the result.
	for q.inFlight() > 0 && ctx.Err() == nil {
		if res, found := q.waitLate(ctx); found {
			return res, true
		}
	}

	return q.result(), false
}

func (q *query) inFlight() int {
	total := 0

	for _, count := range q.pending {
		total += count
	}

	return total
}

// issue starts call to n in its own goroutine with its own timeout.
func (q *query) issue(ctx context.Context, n node.Node) {
	q.queried = append(q.queried, n)
	q.pending[q.rounds]++

	go func(round int) {
		resp := q.call(ctx, n)
		resp.round = round

		if resp.err != nil {
			q.observer.Failed(n, resp.err)
		} else {
			q.observer.Responded(n)
		}

		select {
		case q.results <- resp:
		case <-q.done:
		}
	}(q.rounds)
}

func (q *query) call(ctx context.Context, n node.Node) response {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.RPCTimeout)
	defer cancel()

	resp := response{from: n}

	if q.findValue {
		res, err := q.client.FindValue(ctx, n, q.target)
		resp.err = err
		resp.value, resp.found, resp.nodes = res.Value, res.Found, res.Nodes
	} else {
		resp.nodes, resp.err = q.client.FindNode(ctx, n, q.target)
	}

	return resp
}

// waitRound collects responses until every call of the round finished or
// RoundTimeout elapsed. Responses of previous rounds are merged as well.
func (q *query) waitRound(ctx context.Context, round int) (Result, bool) {
	timer := time.NewTimer(q.cfg.RoundTimeout)
	defer timer.Stop()

	for q.pending[round] > 0 {
		select {
		case resp := <-q.results:
			if res, found := q.merge(resp); found {
				return res, true
			}
		case <-timer.C:
			q.log.Debugf("round %d of lookup %s timed out with %d calls in flight", round, q.target, q.pending[round])

			return Result{}, false
		case <-ctx.Done():
			return Result{}, false
		}
	}

	return Result{}, false
}

// waitLate blocks until one of the late calls finishes.
func (q *query) waitLate(ctx context.Context) (Result, bool) {
	select {
	case resp := <-q.results:
		return q.merge(resp)
	case <-ctx.Done():
		return Result{}, false
	}
}

func (q *query) merge(resp response) (Result, bool) {
	q.pending[resp.round]--

	if q.pending[resp.round] <= 0 {
		delete(q.pending, resp.round)
	}

	if resp.err != nil {
		q.log.Debugf("node %s failed in lookup %s: %s", resp.from, q.target, resp.err)
		q.list.Fail(resp.from.ID)

		return Result{}, false
	}

	q.responded[resp.from.ID] = struct{}{}

	if q.findValue && resp.found {
		res := q.result()
		res.Value = resp.value
		res.Found = true
		res.Holder = resp.from

		return res, true
	}

	q.list.AddAll(resp.nodes)

	return Result{}, false
}

func (q *query) result() Result {
	queried := make([]node.Node, len(q.queried))
	copy(queried, q.queried)

	// queried nodes count only if they answered.
	nodes := q.list.Nodes()
	closest := nodes[:0]

	for _, n := range nodes {
		if _, ok := q.responded[n.ID]; ok || !q.list.IsQueried(n.ID) {
			closest = append(closest, n)
		}
	}

	return Result{
		Closest: closest,
		Queried: queried,
		Rounds:  q.rounds,
	}
}
