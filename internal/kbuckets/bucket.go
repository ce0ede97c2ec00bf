package kbuckets

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Melenium2/dht/internal/node"
)

// ErrInvalidCapacity returned when bucket or replacement cache is
// created with unusable size.
var ErrInvalidCapacity = errors.New("invalid bucket capacity")

// Outcome of the bucket update.
type Outcome int

const (
	// Inserted means the node was new and appended to the bucket.
	Inserted Outcome = iota + 1
	// Updated means the node was already known and moved to the
	// most-recently-seen end.
	Updated
	// Full means the bucket has no room, nothing was changed. Caller
	// should probe UpdateResult.Candidate and evict it only if it is dead.
	Full
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// UpdateResult describes what happened with the node. Candidate is set only
// for Full outcome and holds the least-recently-seen entry.
type UpdateResult struct {
	Outcome   Outcome
	Candidate node.Node
}

// Bucket is a bounded contact list for one distance range. Entries are
// ordered from least-recently-seen to most-recently-seen.
type Bucket struct {
	mu sync.RWMutex

	entries []node.Node
	// replacements keeps candidates which did not fit into the bucket,
	// the newest one is the last.
	replacements []node.Node

	size             int
	replacementsSize int

	lastChanged time.Time
}

// NewBucket creates bucket with capacity size and replacement cache for up to
// replacements candidates. Zero replacements disables the cache.
func NewBucket(size, replacements int) (*Bucket, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w, bucket size must be positive, got %d", ErrInvalidCapacity, size)
	}

	if replacements < 0 {
		return nil, fmt.Errorf("%w, replacement cache size must not be negative, got %d", ErrInvalidCapacity, replacements)
	}

	return &Bucket{
		entries:          make([]node.Node, 0, size),
		size:             size,
		replacementsSize: replacements,
		lastChanged:      time.Now(),
	}, nil
}

// Update registers fresh liveness evidence of the node.
func (b *Bucket) Update(n node.Node) UpdateResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i := b.indexOf(n.ID); i >= 0 {
		b.entries = append(b.entries[:i], b.entries[i+1:]...)
		b.entries = append(b.entries, n)
		b.lastChanged = time.Now()

		return UpdateResult{Outcome: Updated}
	}

	if len(b.entries) >= b.size {
		return UpdateResult{Outcome: Full, Candidate: b.entries[0]}
	}

	b.entries = append(b.entries, n)
	b.removeReplacement(n.ID)
	b.lastChanged = time.Now()

	return UpdateResult{Outcome: Inserted}
}

// Remove deletes node with provided id. Returns false if node is absent.
func (b *Bucket) Remove(id node.ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(id)
	if i < 0 {
		return false
	}

	b.entries = append(b.entries[:i], b.entries[i+1:]...)

	return true
}

// PopOldest removes and returns the least-recently-seen node.
func (b *Bucket) PopOldest() (node.Node, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		return node.Node{}, false
	}

	oldest := b.entries[0]
	b.entries = append(b.entries[:0], b.entries[1:]...)

	return oldest, true
}

// Contacts returns copy of entries, least-recently-seen first.
func (b *Bucket) Contacts() []node.Node {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]node.Node, len(b.entries))
	copy(out, b.entries)

	return out
}

func (b *Bucket) IsFull() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.entries) >= b.size
}

func (b *Bucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.entries)
}

// LastChanged returns time of the last insert or update.
func (b *Bucket) LastChanged() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.lastChanged
}

// AddReplacement remembers candidate for the time some entry is evicted.
// Known entries are ignored, the oldest candidate is dropped on overflow.
func (b *Bucket) AddReplacement(n node.Node) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.replacementsSize == 0 || b.indexOf(n.ID) >= 0 {
		return
	}

	b.removeReplacement(n.ID)

	if len(b.replacements) >= b.replacementsSize {
		b.replacements = append(b.replacements[:0], b.replacements[1:]...)
	}

	b.replacements = append(b.replacements, n)
}

// PopReplacement returns the most recently added candidate.
func (b *Bucket) PopReplacement() (node.Node, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.replacements) == 0 {
		return node.Node{}, false
	}

	last := b.replacements[len(b.replacements)-1]
	b.replacements = b.replacements[:len(b.replacements)-1]

	return last, true
}

func (b *Bucket) indexOf(id node.ID) int {
	for i := range b.entries {
		if b.entries[i].ID == id {
			return i
		}
	}

	return -1
}

func (b *Bucket) removeReplacement(id node.ID) {
	for i := range b.replacements {
		if b.replacements[i].ID == id {
			b.replacements = append(b.replacements[:i], b.replacements[i+1:]...)

			return
		}
	}
}
