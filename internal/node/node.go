package node

import (
	"fmt"
)

// Node is a participant of the network. Address is an opaque transport
// endpoint, routing code never interprets it.
type Node struct {
	ID      ID
	Address string
}

func New(id ID, address string) Node {
	return Node{
		ID:      id,
		Address: address,
	}
}

func (n Node) String() string {
	return fmt.Sprintf("%s@%s", n.ID, n.Address)
}
