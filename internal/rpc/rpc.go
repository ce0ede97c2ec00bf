// Package rpc describes the four request/response pairs nodes of the
// network exchange. Routing code depends only on these interfaces, every
// wire format and transport lives behind them.
package rpc

import (
	"context"
	"errors"

	"github.com/Melenium2/dht/internal/node"
)

var (
	// ErrTimeout returned when remote node did not answer in time.
	ErrTimeout = errors.New("rpc timeout")
	// ErrProtocol returned for malformed or unexpected responses. For
	// routing purposes it is handled the same way as ErrTimeout.
	ErrProtocol = errors.New("rpc protocol error")
)

// FindValueResult is the reply to find_value request. If Found is false
// Nodes holds the closest nodes to the key known by the remote side.
type FindValueResult struct {
	Value []byte
	Found bool
	Nodes []node.Node
}

// Client is the outbound side of the protocol. Every call must return
// when ctx is done.
type Client interface {
	// Ping returns nil if remote node is alive.
	Ping(ctx context.Context, to node.Node) error
	FindNode(ctx context.Context, to node.Node, target node.ID) ([]node.Node, error)
	FindValue(ctx context.Context, to node.Node, key node.ID) (FindValueResult, error)
	Store(ctx context.Context, to node.Node, key node.ID, value []byte) error
}

// Handler is the inbound side of the protocol. Transport calls it for each
// request and sends returned values back to the sender.
type Handler interface {
	HandlePing(from node.Node) error
	HandleFindNode(from node.Node, target node.ID) ([]node.Node, error)
	HandleFindValue(from node.Node, key node.ID) (FindValueResult, error)
	HandleStore(from node.Node, key node.ID, value []byte) error
}

// IsFailure reports whether err means the remote node did not give
// usable answer.
func IsFailure(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrProtocol) ||
		errors.Is(err, context.DeadlineExceeded)
}
