package lookup_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Melenium2/dht/internal/kbuckets"
	"github.com/Melenium2/dht/internal/lookup"
	"github.com/Melenium2/dht/internal/mocks"
	"github.com/Melenium2/dht/internal/node"
	"github.com/Melenium2/dht/internal/rpc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func nodeOf(t *testing.T, v uint64) node.Node {
	t.Helper()

	id, err := node.NewIDFromUint64(v, 8)
	require.NoError(t, err)

	return node.New(id, fmt.Sprintf("node-%02x", v))
}

func seededTable(t *testing.T, seeds ...node.Node) *kbuckets.Table {
	t.Helper()

	table, err := kbuckets.NewTable(nodeOf(t, 0xFF).ID, 20, 0)
	require.NoError(t, err)

	for _, n := range seeds {
		_, err = table.Update(n)
		require.NoError(t, err)
	}

	return table
}

func config(t *testing.T) lookup.Config {
	return lookup.Config{
		Self:       nodeOf(t, 0xFF).ID,
		K:          20,
		Alpha:      3,
		RPCTimeout: 100 * time.Millisecond,
	}
}

type recorder struct {
	mu        sync.Mutex
	responded []node.Node
	failed    []node.Node
}

func (r *recorder) Responded(n node.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.responded = append(r.responded, n)
}

func (r *recorder) Failed(n node.Node, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failed = append(r.failed, n)
}

func TestCoordinator_FindNode_Should_walk_towards_target(t *testing.T) {
	var (
		target = nodeOf(t, 0x00).ID
		a      = nodeOf(t, 0x80)
		b      = nodeOf(t, 0x40)
		c      = nodeOf(t, 0x10)
		d      = nodeOf(t, 0x20)
		e      = nodeOf(t, 0x01)
		client = &mocks.Client{}
		rec    = &recorder{}
	)

	client.On("FindNode", mock.Anything, a, target).Return([]node.Node{b}, nil)
	client.On("FindNode", mock.Anything, b, target).Return([]node.Node{c, d}, nil)
	client.On("FindNode", mock.Anything, c, target).Return([]node.Node{e}, nil)
	client.On("FindNode", mock.Anything, d, target).Return(nil, nil)
	client.On("FindNode", mock.Anything, e, target).Return([]node.Node{}, nil)

	coordinator := lookup.New(seededTable(t, a), client, rec, config(t))

	res := coordinator.FindNode(context.Background(), target)

	assert.Equal(t, []node.Node{e, c, d, b, a}, res.Closest)
	assert.ElementsMatch(t, []node.Node{a, b, c, d, e}, res.Queried)
	assert.Equal(t, 4, res.Rounds)
	assert.False(t, res.Found)
	assert.Len(t, rec.responded, 5)
	client.AssertExpectations(t)
}

func TestCoordinator_FindNode_Should_terminate_when_every_call_fails(t *testing.T) {
	var (
		target = nodeOf(t, 0x00).ID
		seeds  = []node.Node{nodeOf(t, 1), nodeOf(t, 2), nodeOf(t, 3), nodeOf(t, 4), nodeOf(t, 5)}
		client = &mocks.Client{}
		rec    = &recorder{}
	)

	client.On("FindNode", mock.Anything, mock.Anything, target).Return(nil, rpc.ErrTimeout)

	coordinator := lookup.New(seededTable(t, seeds...), client, rec, config(t))

	res := coordinator.FindNode(context.Background(), target)

	assert.Empty(t, res.Closest)
	assert.ElementsMatch(t, seeds, res.Queried)
	assert.Equal(t, 2, res.Rounds)
	assert.ElementsMatch(t, seeds, rec.failed)
	client.AssertNumberOfCalls(t, "FindNode", 5)
}

func TestCoordinator_FindNode_Should_bound_every_call_with_own_timeout(t *testing.T) {
	var (
		target = nodeOf(t, 0x00).ID
		client = &mocks.Client{}
		cfg    = config(t)
	)

	cfg.RPCTimeout = 30 * time.Millisecond
	cfg.RoundTimeout = 300 * time.Millisecond

	client.On("FindNode", mock.Anything, mock.Anything, target).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, rpc.ErrTimeout)

	coordinator := lookup.New(seededTable(t, nodeOf(t, 1), nodeOf(t, 2), nodeOf(t, 3), nodeOf(t, 4)), client, nil, cfg)

	start := time.Now()
	res := coordinator.FindNode(context.Background(), target)

	assert.Empty(t, res.Closest)
	assert.Len(t, res.Queried, 4)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCoordinator_FindNode_Should_not_return_nodes_which_did_not_answer(t *testing.T) {
	var (
		target = nodeOf(t, 0x00).ID
		seeds  = []node.Node{nodeOf(t, 1), nodeOf(t, 2), nodeOf(t, 3), nodeOf(t, 4), nodeOf(t, 5)}
		client = &mocks.Client{}
		cfg    = config(t)
	)

	cfg.RPCTimeout = 50 * time.Millisecond

	client.On("FindNode", mock.Anything, mock.Anything, target).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, rpc.ErrTimeout)

	coordinator := lookup.New(seededTable(t, seeds...), client, nil, cfg)

	for i := 0; i < 5; i++ {
		start := time.Now()
		res := coordinator.FindNode(context.Background(), target)

		assert.Empty(t, res.Closest)
		assert.ElementsMatch(t, seeds, res.Queried)
		assert.Less(t, time.Since(start), time.Second)
	}
}

func TestCoordinator_FindValue_Should_stop_on_first_holder(t *testing.T) {
	var (
		key    = nodeOf(t, 0x00).ID
		a      = nodeOf(t, 0x01)
		b      = nodeOf(t, 0x02)
		c      = nodeOf(t, 0x03)
		closer = nodeOf(t, 0x00)
		value  = []byte("value")
		client = &mocks.Client{}
	)

	client.On("FindValue", mock.Anything, a, key).Return(rpc.FindValueResult{Nodes: []node.Node{closer}}, nil)
	client.On("FindValue", mock.Anything, b, key).Return(rpc.FindValueResult{Value: value, Found: true}, nil)
	client.On("FindValue", mock.Anything, c, key).Return(rpc.FindValueResult{Nodes: []node.Node{closer}}, nil)

	coordinator := lookup.New(seededTable(t, a, b, c), client, nil, config(t))

	res := coordinator.FindValue(context.Background(), key)

	require.True(t, res.Found)
	assert.Equal(t, value, res.Value)
	assert.Equal(t, b, res.Holder)
	assert.Equal(t, 1, res.Rounds)
	assert.ElementsMatch(t, []node.Node{a, b, c}, res.Queried)
	client.AssertNotCalled(t, "FindValue", mock.Anything, closer, key)
}

func TestCoordinator_FindValue_Should_return_closest_nodes_if_nobody_holds_key(t *testing.T) {
	var (
		key    = nodeOf(t, 0x00).ID
		a      = nodeOf(t, 0x01)
		b      = nodeOf(t, 0x02)
		client = &mocks.Client{}
	)

	client.On("FindValue", mock.Anything, mock.Anything, key).Return(rpc.FindValueResult{}, nil)

	coordinator := lookup.New(seededTable(t, a, b), client, nil, config(t))

	res := coordinator.FindValue(context.Background(), key)

	assert.False(t, res.Found)
	assert.Nil(t, res.Value)
	assert.Equal(t, []node.Node{a, b}, res.Closest)
}

func TestCoordinator_FindNode_Should_merge_late_response_while_running(t *testing.T) {
	var (
		target = nodeOf(t, 0x00).ID
		slow   = nodeOf(t, 0x01)
		fast   = nodeOf(t, 0x02)
		far    = nodeOf(t, 0x80)
		late   = nodeOf(t, 0x40)
		client = &mocks.Client{}
		cfg    = config(t)
	)

	cfg.Alpha = 2
	cfg.RPCTimeout = time.Second
	cfg.RoundTimeout = 80 * time.Millisecond

	client.On("FindNode", mock.Anything, slow, target).After(120*time.Millisecond).Return([]node.Node{late}, nil)
	client.On("FindNode", mock.Anything, fast, target).Return(nil, nil)
	client.On("FindNode", mock.Anything, far, target).After(500*time.Millisecond).Return(nil, nil)

	coordinator := lookup.New(seededTable(t, slow, fast, far), client, nil, cfg)

	res := coordinator.FindNode(context.Background(), target)

	assert.Equal(t, 2, res.Rounds)
	assert.Equal(t, []node.Node{slow, fast, late, far}, res.Closest)
	assert.Equal(t, []node.Node{slow, fast, far}, res.Queried)
}

func TestCoordinator_FindNode_Should_stop_after_max_rounds(t *testing.T) {
	var (
		target = nodeOf(t, 0x00).ID
		a      = nodeOf(t, 0x80)
		b      = nodeOf(t, 0x40)
		c      = nodeOf(t, 0x20)
		client = &mocks.Client{}
		cfg    = config(t)
	)

	cfg.MaxRounds = 2

	client.On("FindNode", mock.Anything, a, target).Return([]node.Node{b}, nil)
	client.On("FindNode", mock.Anything, b, target).Return([]node.Node{c}, nil)

	coordinator := lookup.New(seededTable(t, a), client, nil, cfg)

	res := coordinator.FindNode(context.Background(), target)

	assert.Equal(t, 2, res.Rounds)
	assert.Equal(t, []node.Node{a, b}, res.Queried)
	assert.Equal(t, []node.Node{c, b, a}, res.Closest)
}

func TestCoordinator_FindNode_Should_never_query_self(t *testing.T) {
	var (
		target = nodeOf(t, 0x00).ID
		self   = nodeOf(t, 0xFF)
		a      = nodeOf(t, 0x01)
		client = &mocks.Client{}
	)

	client.On("FindNode", mock.Anything, a, target).Return([]node.Node{self, a}, nil)

	coordinator := lookup.New(seededTable(t, a), client, nil, config(t))

	res := coordinator.FindNode(context.Background(), target)

	assert.Equal(t, []node.Node{a}, res.Closest)
	client.AssertNumberOfCalls(t, "FindNode", 1)
}

func TestCoordinator_FindNode_Should_return_empty_result_for_empty_table(t *testing.T) {
	client := &mocks.Client{}

	coordinator := lookup.New(seededTable(t), client, nil, config(t))

	res := coordinator.FindNode(context.Background(), nodeOf(t, 0x10).ID)

	assert.Empty(t, res.Closest)
	assert.Empty(t, res.Queried)
	assert.Equal(t, 0, res.Rounds)
	client.AssertNotCalled(t, "FindNode", mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_FindNode_Should_return_when_context_is_canceled(t *testing.T) {
	var (
		target = nodeOf(t, 0x00).ID
		client = &mocks.Client{}
		cfg    = config(t)
	)

	cfg.RPCTimeout = time.Minute

	client.On("FindNode", mock.Anything, mock.Anything, target).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.Canceled)

	coordinator := lookup.New(seededTable(t, nodeOf(t, 1)), client, nil, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := coordinator.FindNode(ctx, target)

	assert.Equal(t, 1, res.Rounds)
	assert.Less(t, time.Since(start), 10*time.Second)
}
