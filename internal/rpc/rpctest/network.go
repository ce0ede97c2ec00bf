// Package rpctest provides in-memory network for tests. Every joined node
// gets its own rpc.Client, requests are delivered straight to handlers of
// other nodes without any encoding.
package rpctest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Melenium2/dht/internal/node"
	"github.com/Melenium2/dht/internal/rpc"
)

// Network emulates set of nodes addressed by node.Node.Address. Nodes
// marked as down never answer, so calls to them last until ctx is done.
type Network struct {
	mu sync.RWMutex

	handlers map[string]rpc.Handler
	down     map[string]bool
	latency  map[string]time.Duration
	calls    map[string]int
}

func NewNetwork() *Network {
	return &Network{
		handlers: make(map[string]rpc.Handler),
		down:     make(map[string]bool),
		latency:  make(map[string]time.Duration),
		calls:    make(map[string]int),
	}
}

// Join registers handler under the address of n.
func (net *Network) Join(n node.Node, h rpc.Handler) {
	net.mu.Lock()
	defer net.mu.Unlock()

	net.handlers[n.Address] = h
}

// SetDown switches node with address addr off or back on.
func (net *Network) SetDown(addr string, down bool) {
	net.mu.Lock()
	defer net.mu.Unlock()

	net.down[addr] = down
}

// SetLatency delays every answer of node with address addr.
func (net *Network) SetLatency(addr string, d time.Duration) {
	net.mu.Lock()
	defer net.mu.Unlock()

	net.latency[addr] = d
}

// Calls returns count of requests delivered to addr.
func (net *Network) Calls(addr string) int {
	net.mu.RLock()
	defer net.mu.RUnlock()

	return net.calls[addr]
}

// Client returns rpc.Client which sends requests on behalf of self.
func (net *Network) Client(self node.Node) *Client {
	return &Client{net: net, self: self}
}

// route waits configured latency and returns handler of addr.
func (net *Network) route(ctx context.Context, addr string) (rpc.Handler, error) {
	net.mu.Lock()
	h, ok := net.handlers[addr]
	down := net.down[addr]
	latency := net.latency[addr]

	if ok && !down {
		net.calls[addr]++
	}
	net.mu.Unlock()

	if !ok || down {
		<-ctx.Done()

		return nil, timeout(ctx, addr)
	}

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, timeout(ctx, addr)
		}
	}

	return h, nil
}

func timeout(ctx context.Context, addr string) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}

	return fmt.Errorf("%w, node %s does not answer", rpc.ErrTimeout, addr)
}

// Client is the rpc.Client of one node of the Network.
type Client struct {
	net  *Network
	self node.Node
}

func (c *Client) Ping(ctx context.Context, to node.Node) error {
	h, err := c.net.route(ctx, to.Address)
	if err != nil {
		return err
	}

	return h.HandlePing(c.self)
}

func (c *Client) FindNode(ctx context.Context, to node.Node, target node.ID) ([]node.Node, error) {
	h, err := c.net.route(ctx, to.Address)
	if err != nil {
		return nil, err
	}

	return h.HandleFindNode(c.self, target)
}

func (c *Client) FindValue(ctx context.Context, to node.Node, key node.ID) (rpc.FindValueResult, error) {
	h, err := c.net.route(ctx, to.Address)
	if err != nil {
		return rpc.FindValueResult{}, err
	}

	return h.HandleFindValue(c.self, key)
}

func (c *Client) Store(ctx context.Context, to node.Node, key node.ID, value []byte) error {
	h, err := c.net.route(ctx, to.Address)
	if err != nil {
		return err
	}

	return h.HandleStore(c.self, key, append([]byte(nil), value...))
}
