package kbuckets_test

import (
	"testing"

	"github.com/Melenium2/dht/internal/kbuckets"
	"github.com/Melenium2/dht/internal/node"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idOf(t *testing.T, v uint64) node.ID {
	t.Helper()

	id, err := node.NewIDFromUint64(v, 8)
	require.NoError(t, err)

	return id
}

func nodeOf(t *testing.T, v uint64) node.Node {
	t.Helper()

	return node.New(idOf(t, v), "127.0.0.1:5222")
}

func newBucket(t *testing.T, size int, values ...uint64) *kbuckets.Bucket {
	t.Helper()

	b, err := kbuckets.NewBucket(size, size)
	require.NoError(t, err)

	for _, v := range values {
		res := b.Update(nodeOf(t, v))
		require.Equal(t, kbuckets.Inserted, res.Outcome)
	}

	return b
}

func TestNewBucket_Should_reject_non_positive_capacity(t *testing.T) {
	_, err := kbuckets.NewBucket(0, 1)
	assert.ErrorIs(t, err, kbuckets.ErrInvalidCapacity)

	_, err = kbuckets.NewBucket(1, -1)
	assert.ErrorIs(t, err, kbuckets.ErrInvalidCapacity)
}

func TestBucket_Update_Should_append_unknown_node_to_the_end(t *testing.T) {
	b := newBucket(t, 3, 1)

	res := b.Update(nodeOf(t, 42))

	assert.Equal(t, kbuckets.Inserted, res.Outcome)
	assert.Equal(t, []node.Node{nodeOf(t, 1), nodeOf(t, 42)}, b.Contacts())
}

func TestBucket_Update_Should_move_known_node_to_most_recently_seen_end(t *testing.T) {
	b := newBucket(t, 3, 1, 2, 3)

	moved := node.New(idOf(t, 1), "10.0.0.1:1")
	res := b.Update(moved)

	assert.Equal(t, kbuckets.Updated, res.Outcome)
	assert.Equal(t, []node.Node{nodeOf(t, 2), nodeOf(t, 3), moved}, b.Contacts())
}

func TestBucket_Update_Should_report_full_with_least_recently_seen_candidate(t *testing.T) {
	b := newBucket(t, 3, 1, 2, 3)

	res := b.Update(nodeOf(t, 42))

	assert.Equal(t, kbuckets.Full, res.Outcome)
	assert.Equal(t, nodeOf(t, 1), res.Candidate)
	assert.Equal(t, 3, b.Len())
	assert.True(t, b.IsFull())
	assert.False(t, b.Contains(idOf(t, 42)))
}

func TestBucket_Remove_Should_delete_present_node_and_ignore_absent(t *testing.T) {
	b := newBucket(t, 3, 1, 2)

	assert.False(t, b.Remove(idOf(t, 9)))
	assert.True(t, b.Remove(idOf(t, 1)))
	assert.Equal(t, []node.Node{nodeOf(t, 2)}, b.Contacts())
}

func TestBucket_PopOldest_Should_return_least_recently_seen(t *testing.T) {
	b := newBucket(t, 3, 5, 6)

	oldest, ok := b.PopOldest()
	require.True(t, ok)
	assert.Equal(t, nodeOf(t, 5), oldest)

	oldest, ok = b.PopOldest()
	require.True(t, ok)
	assert.Equal(t, nodeOf(t, 6), oldest)

	_, ok = b.PopOldest()
	assert.False(t, ok)
}

func TestBucket_Contacts_Should_return_copy(t *testing.T) {
	b := newBucket(t, 3, 1, 2)

	contacts := b.Contacts()
	contacts[0] = nodeOf(t, 99)

	assert.Equal(t, []node.Node{nodeOf(t, 1), nodeOf(t, 2)}, b.Contacts())
}

func TestBucket_AddReplacement_Should_keep_newest_candidates_only(t *testing.T) {
	b, err := kbuckets.NewBucket(1, 2)
	require.NoError(t, err)

	b.Update(nodeOf(t, 1))

	b.AddReplacement(nodeOf(t, 1))
	assert.Equal(t, 0, b.ReplacementsLen())

	b.AddReplacement(nodeOf(t, 2))
	b.AddReplacement(nodeOf(t, 3))
	b.AddReplacement(nodeOf(t, 4))
	assert.Equal(t, 2, b.ReplacementsLen())

	n, ok := b.PopReplacement()
	require.True(t, ok)
	assert.Equal(t, nodeOf(t, 4), n)

	n, ok = b.PopReplacement()
	require.True(t, ok)
	assert.Equal(t, nodeOf(t, 3), n)

	_, ok = b.PopReplacement()
	assert.False(t, ok)
}

func TestBucket_Update_Should_drop_inserted_node_from_replacements(t *testing.T) {
	b, err := kbuckets.NewBucket(2, 2)
	require.NoError(t, err)

	b.AddReplacement(nodeOf(t, 7))
	b.Update(nodeOf(t, 7))

	assert.Equal(t, 0, b.ReplacementsLen())
}
