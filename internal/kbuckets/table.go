package kbuckets

import (
	"fmt"
	"time"

	"github.com/Melenium2/dht/internal/node"
	"github.com/Melenium2/dht/pkg/logger"
)

// Table keeps routing state of one local identity. Bucket with index i
// holds nodes sharing exactly i leading bits with the local id, so there
// are Bits() buckets in total.
//
// Each bucket is guarded by its own lock. Updates of different buckets do
// not contend, FindClosest reads one bucket at a time.
type Table struct {
	self    node.ID
	buckets []*Bucket
	log     logger.Logger
}

// NewTable creates table for self with bucket capacity size and
// replacement cache of provided size per bucket.
func NewTable(self node.ID, size, replacements int) (*Table, error) {
	if self.IsZero() {
		return nil, fmt.Errorf("%w, local id is not initialized", node.ErrInvalidNodeID)
	}

	t := &Table{
		self:    self,
		buckets: make([]*Bucket, self.Bits()),
		log:     logger.GetLogger().Named("table"),
	}

	for i := range t.buckets {
		b, err := NewBucket(size, replacements)
		if err != nil {
			return nil, err
		}

		t.buckets[i] = b
	}

	return t, nil
}

func (t *Table) Self() node.ID {
	return t.self
}

func (t *Table) Bits() int {
	return t.self.Bits()
}

// Update delegates node to the bucket it belongs to. Self and identifiers
// of foreign length are rejected with node.ErrInvalidNodeID, table is
// not modified in such case.
func (t *Table) Update(n node.Node) (UpdateResult, error) {
	index, err := node.BucketIndex(t.self, n.ID)
	if err != nil {
		return UpdateResult{}, err
	}

	res := t.buckets[index].Update(n)

	t.log.Debugf("node %s %s in bucket %d", n, res.Outcome, index)

	return res, nil
}

// Remove deletes node with provided id from the table.
func (t *Table) Remove(id node.ID) bool {
	index, err := node.BucketIndex(t.self, id)
	if err != nil {
		return false
	}

	return t.buckets[index].Remove(id)
}

// PopOldest removes and returns the least-recently-seen node of one bucket.
func (t *Table) PopOldest(index int) (node.Node, bool) {
	b := t.BucketAtIndex(index)
	if b == nil {
		return node.Node{}, false
	}

	return b.PopOldest()
}

// AddReplacement stores node in the replacement cache of its bucket.
func (t *Table) AddReplacement(n node.Node) error {
	index, err := node.BucketIndex(t.self, n.ID)
	if err != nil {
		return err
	}

	t.buckets[index].AddReplacement(n)

	return nil
}

// PopReplacement takes the freshest replacement candidate of the bucket.
func (t *Table) PopReplacement(index int) (node.Node, bool) {
	b := t.BucketAtIndex(index)
	if b == nil {
		return node.Node{}, false
	}

	return b.PopReplacement()
}

// FindClosest returns up to count nodes ordered by ascending distance to
// target.
//
// Nodes of the target's own bucket are the closest ones, then deeper
// buckets follow in order of deeperBuckets, then every shallower bucket
// from the deepest one. Buckets never overlap in distance, so the scan
// stops as soon as a bucket completes the result.
func (t *Table) FindClosest(target node.ID, count int) []node.Node {
	if count <= 0 || target.Bits() != t.Bits() {
		return nil
	}

	start := t.Bits()
	if target != t.self {
		start, _ = node.BucketIndex(t.self, target)
	}

	result := node.NewOrderedNodes(target, count)

	if start < t.Bits() {
		result.AddAll(t.buckets[start].Contacts())

		for _, i := range t.deeperBuckets(target, start) {
			if result.Full() {
				return result.Nodes()
			}

			result.AddAll(t.buckets[i].Contacts())
		}
	}

	for i := start - 1; i >= 0 && !result.Full(); i-- {
		result.AddAll(t.buckets[i].Contacts())
	}

	return result.Nodes()
}

// deeperBuckets orders buckets deeper than start by distance of their
// contacts to target. Contacts of bucket j differ from target at bit j
// only if self and target agree there. Buckets where target differs from
// self are closer than every deeper bucket, the rest are farther.
func (t *Table) deeperBuckets(target node.ID, start int) []int {
	var (
		order = make([]int, 0, t.Bits()-start-1)
		far   []int
	)

	for j := start + 1; j < t.Bits(); j++ {
		if node.DiffersAt(t.self, target, j) {
			order = append(order, j)
		} else {
			far = append(far, j)
		}
	}

	for i := len(far) - 1; i >= 0; i-- {
		order = append(order, far[i])
	}

	return order
}

func (t *Table) BucketAtIndex(index int) *Bucket {
	if index < 0 || index >= len(t.buckets) {
		return nil
	}

	return t.buckets[index]
}

// BucketLen returns count of nodes in bucket, 0 for unknown index.
func (t *Table) BucketLen(index int) int {
	b := t.BucketAtIndex(index)
	if b == nil {
		return 0
	}

	return b.Len()
}

// Size returns total count of stored nodes.
func (t *Table) Size() int {
	size := 0

	for _, b := range t.buckets {
		size += b.Len()
	}

	return size
}

// NonEmptyBuckets returns indexes of buckets which hold at least one node.
func (t *Table) NonEmptyBuckets() []int {
	var indexes []int

	for i, b := range t.buckets {
		if b.Len() > 0 {
			indexes = append(indexes, i)
		}
	}

	return indexes
}

// StaleBuckets returns indexes of buckets not changed for longer than age.
func (t *Table) StaleBuckets(age time.Duration) []int {
	var (
		indexes   []int
		threshold = time.Now().Add(-age)
	)

	for i, b := range t.buckets {
		if b.LastChanged().Before(threshold) {
			indexes = append(indexes, i)
		}
	}

	return indexes
}
