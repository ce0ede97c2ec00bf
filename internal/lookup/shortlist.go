package lookup

import "github.com/Melenium2/dht/internal/node"

// shortlist stores candidates ordered by their distance to the target.
//
// List has limited count, the farthest candidates are dropped first. Ids
// once rejected by the lookup are never accepted again.
type shortlist struct {
	*node.OrderedNodes

	target node.ID
	self   node.ID

	// nodes already asked during this lookup.
	queried map[node.ID]struct{}
	// nodes which did not answer, they are never added back.
	failed map[node.ID]struct{}
}

func newShortlist(target, self node.ID, limit int) *shortlist {
	return &shortlist{
		OrderedNodes: node.NewOrderedNodes(target, limit),
		target:       target,
		self:         self,
		queried:      make(map[node.ID]struct{}),
		failed:       make(map[node.ID]struct{}),
	}
}

// Add puts candidate to its position by distance to the target.
func (s *shortlist) Add(n node.Node) {
	if n.ID == s.self || n.ID.Bits() != s.target.Bits() {
		return
	}

	if _, ok := s.failed[n.ID]; ok {
		return
	}

	s.OrderedNodes.Add(n)
}

func (s *shortlist) AddAll(nodes []node.Node) {
	for i := range nodes {
		s.Add(nodes[i])
	}
}

// Fail drops node from the list for the rest of the lookup.
func (s *shortlist) Fail(id node.ID) {
	s.failed[id] = struct{}{}
	s.Remove(id)
}

// Unqueried returns up to count not asked candidates, nearest first, and
// marks them as queried.
func (s *shortlist) Unqueried(count int) []node.Node {
	var batch []node.Node

	for _, n := range s.Nodes() {
		if len(batch) >= count {
			break
		}

		if _, ok := s.queried[n.ID]; ok {
			continue
		}

		s.queried[n.ID] = struct{}{}
		batch = append(batch, n)
	}

	return batch
}

// Closest returns the nearest candidate.
func (s *shortlist) Closest() (node.Node, bool) {
	return s.First()
}

func (s *shortlist) IsQueried(id node.ID) bool {
	_, ok := s.queried[id]

	return ok
}
