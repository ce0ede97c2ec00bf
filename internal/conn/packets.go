package conn

import (
	"fmt"

	"github.com/Melenium2/dht/internal/node"

	"github.com/google/uuid"
)

// MessageType is the first byte of every packet.
type MessageType byte

const (
	PingMessage MessageType = iota + 1
	PongMessage
	FindNodeMessage
	NodesMessage
	FindValueMessage
	ValueMessage
	StoreMessage
	StoredMessage
	ErrorMessage
)

func (m MessageType) String() string {
	switch m {
	case PingMessage:
		return "PING"
	case PongMessage:
		return "PONG"
	case FindNodeMessage:
		return "FIND_NODE"
	case NodesMessage:
		return "NODES"
	case FindValueMessage:
		return "FIND_VALUE"
	case ValueMessage:
		return "VALUE"
	case StoreMessage:
		return "STORE"
	case StoredMessage:
		return "STORED"
	case ErrorMessage:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(m))
	}
}

// IsRequest reports whether remote side expects an answer to this type.
func (m MessageType) IsRequest() bool {
	switch m {
	case PingMessage, FindNodeMessage, FindValueMessage, StoreMessage:
		return true
	default:
		return false
	}
}

// Response returns type of successful answer to the request type.
func (m MessageType) Response() MessageType {
	switch m {
	case PingMessage:
		return PongMessage
	case FindNodeMessage:
		return NodesMessage
	case FindValueMessage:
		return ValueMessage
	case StoreMessage:
		return StoredMessage
	default:
		return 0
	}
}

func (m MessageType) valid() bool {
	return m >= PingMessage && m <= ErrorMessage
}

// Peer is the wire form of node.Node, identifier is hex encoded.
type Peer struct {
	ID      string `json:"id" msgpack:"id"`
	Address string `json:"address" msgpack:"address"`
}

// Packet is the single message format of the protocol. Which fields are
// set depends on Type.
type Packet struct {
	Type   MessageType `json:"-" msgpack:"type"`
	ReqID  uuid.UUID   `json:"req_id" msgpack:"req_id"`
	Sender Peer        `json:"sender" msgpack:"sender"`
	// Target of find_node, key of find_value and store.
	Target string `json:"target,omitempty" msgpack:"target,omitempty"`
	Value  []byte `json:"value,omitempty" msgpack:"value,omitempty"`
	Found  bool   `json:"found,omitempty" msgpack:"found,omitempty"`
	Nodes  []Peer `json:"nodes,omitempty" msgpack:"nodes,omitempty"`
	Error  string `json:"error,omitempty" msgpack:"error,omitempty"`
}

func toPeer(n node.Node) Peer {
	return Peer{ID: n.ID.String(), Address: n.Address}
}

func toPeers(nodes []node.Node) []Peer {
	if len(nodes) == 0 {
		return nil
	}

	peers := make([]Peer, len(nodes))

	for i := range nodes {
		peers[i] = toPeer(nodes[i])
	}

	return peers
}

func fromPeer(p Peer, bits int) (node.Node, error) {
	id, err := node.ParseID(p.ID, bits)
	if err != nil {
		return node.Node{}, err
	}

	return node.New(id, p.Address), nil
}

func fromPeers(peers []Peer, bits int) ([]node.Node, error) {
	nodes := make([]node.Node, 0, len(peers))

	for _, p := range peers {
		n, err := fromPeer(p, bits)
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, n)
	}

	return nodes, nil
}
