package kbuckets

import "github.com/Melenium2/dht/internal/node"

func (t *Table) Buckets() []*Bucket {
	return t.buckets
}

func (b *Bucket) Contains(id node.ID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.indexOf(id) >= 0
}

func (b *Bucket) ReplacementsLen() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.replacements)
}
