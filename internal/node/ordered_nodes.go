package node

import "sort"

// OrderedNodes stores Node's by their distance from the target.
//
// Node list has limited count. Limit is set by constructor. Node with
// identifier already in the list is ignored.
type OrderedNodes struct {
	// list of nodes.
	nodes []Node
	// maximum count of stored nodes.
	nodesLimit int
	// nodes are ordered by distance to this id.
	target ID
}

// NewOrderedNodes create new instance of Node's storage.
func NewOrderedNodes(target ID, limit int) *OrderedNodes {
	return &OrderedNodes{
		target:     target,
		nodes:      make([]Node, 0, limit),
		nodesLimit: limit,
	}
}

// Add new Node to position in Node's slice by distance between
// provided Node and target. Nodes farther than all stored ones are
// dropped when the limit is reached.
func (on *OrderedNodes) Add(newNode Node) {
	index := sort.Search(len(on.nodes), func(i int) bool {
		return DistanceCmp(on.target, on.nodes[i].ID, newNode.ID) >= 0
	})

	if index < len(on.nodes) && on.nodes[index].ID == newNode.ID {
		return
	}

	// we add new item to the end of list if limit not reached.
	if len(on.nodes) < on.nodesLimit {
		on.nodes = append(on.nodes, newNode)
	}

	// if index less than length of nodes we insert it to the
	// position 'index', otherwise, 'index' equals to last element
	// of list and this is means we already set new node to
	// right position.
	if index < len(on.nodes) {
		copy(on.nodes[index+1:], on.nodes[index:])
		on.nodes[index] = newNode
	}
}

func (on *OrderedNodes) AddAll(nodes []Node) {
	for i := range nodes {
		on.Add(nodes[i])
	}
}

// Remove drops node with provided id. Returns false if there is no such node.
func (on *OrderedNodes) Remove(id ID) bool {
	for i := range on.nodes {
		if on.nodes[i].ID == id {
			on.nodes = append(on.nodes[:i], on.nodes[i+1:]...)

			return true
		}
	}

	return false
}

// First returns the nearest node to the target.
func (on *OrderedNodes) First() (Node, bool) {
	if len(on.nodes) == 0 {
		return Node{}, false
	}

	return on.nodes[0], true
}

func (on *OrderedNodes) Full() bool {
	return len(on.nodes) >= on.nodesLimit
}

func (on *OrderedNodes) Len() int {
	return len(on.nodes)
}

// Nodes returns copy of the list.
func (on *OrderedNodes) Nodes() []Node {
	out := make([]Node, len(on.nodes))
	copy(out, on.nodes)

	return out
}
