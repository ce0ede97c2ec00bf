package dht

import (
	"github.com/Melenium2/dht/internal/conn"
	"github.com/Melenium2/dht/internal/node"
	"github.com/Melenium2/dht/internal/rpc"
	"github.com/Melenium2/dht/internal/storage"
)

type (
	// ID identifies node and key in the network.
	ID = node.ID
	// Node is the identifier and the transport address of the participant.
	Node = node.Node
	// Client sends requests to other nodes.
	Client = rpc.Client
	// Handler serves requests of other nodes.
	Handler = rpc.Handler
	// FindValueResult is the answer to find_value request.
	FindValueResult = rpc.FindValueResult
	// Store keeps values of the local node.
	Store = storage.Store
	// Transport is UDP implementation of Client.
	Transport = conn.Transport
	// Codec converts packets of Transport to datagrams.
	Codec = conn.Codec
)

var (
	ErrTimeout       = rpc.ErrTimeout
	ErrProtocol      = rpc.ErrProtocol
	ErrInvalidNodeID = node.ErrInvalidNodeID
)

// NewNode creates node from identifier and address.
func NewNode(id ID, address string) Node {
	return node.New(id, address)
}

// ParseID decodes hex identifier of provided length.
func ParseID(s string, bits int) (ID, error) {
	return node.ParseID(s, bits)
}

// GenerateID creates random identifier of provided length.
func GenerateID(bits int) (ID, error) {
	return node.RandomID(bits)
}

// NewTransport creates UDP transport of the node with identifier id.
// Codec may be nil, JSON is used then.
func NewTransport(udp conn.UDPConn, id ID, codec Codec) *Transport {
	return conn.NewTransport(udp, id, codec)
}

// JSONCodec returns codec which writes message type byte followed by JSON.
func JSONCodec() Codec {
	return conn.JSONCodec{}
}

// MsgpackCodec returns msgpack codec.
func MsgpackCodec() Codec {
	return conn.MsgpackCodec{}
}
