package node

import (
	"fmt"
	"sort"

	"github.com/Melenium2/dht/internal/crypto"

	"github.com/holiman/uint256"
)

const sha1Bits = 160

// Distance returns XOR metric between a and b.
func Distance(a, b ID) uint256.Int {
	var d uint256.Int

	d.Xor(&a.val, &b.val)

	return d
}

// DistanceCmp compares the distance between target and a, also,
// target and b. Function returns -1 if a closer to target, 1 if b
// closer to target and 0 if distances are equal.
func DistanceCmp(target, a, b ID) int {
	da, db := Distance(target, a), Distance(target, b)

	return da.Cmp(&db)
}

// LogDistance returns the logarithmic distance between a and b, log2(a ^ b).
// Equal identifiers have distance 0.
func LogDistance(a, b ID) int {
	d := Distance(a, b)

	return d.BitLen()
}

// DiffersAt reports whether a and b differ at bit index, bits are counted
// from the most significant one.
func DiffersAt(a, b ID, index int) bool {
	if index < 0 || index >= a.bits {
		return false
	}

	d := Distance(a, b)
	d.Rsh(&d, uint(a.bits-index-1))

	return d.Uint64()&1 == 1
}

// BucketIndex returns length of the prefix other shares with self. Self
// references and identifiers of different length are rejected.
func BucketIndex(self, other ID) (int, error) {
	if self.bits != other.bits {
		return 0, fmt.Errorf("%w, expected %d bits, got %d", ErrInvalidNodeID, self.bits, other.bits)
	}

	if self == other {
		return 0, fmt.Errorf("%w, self reference %s", ErrInvalidNodeID, self)
	}

	return self.bits - LogDistance(self, other), nil
}

// SortByDistance orders nodes by ascending distance to pivot in place.
func SortByDistance(nodes []Node, pivot ID) {
	sort.Slice(nodes, func(i, j int) bool {
		return DistanceCmp(pivot, nodes[i].ID, nodes[j].ID) < 0
	})
}

// RandomID generates uniformly distributed identifier of provided length.
func RandomID(bits int) (ID, error) {
	if err := validateBits(bits); err != nil {
		return ID{}, err
	}

	raw, err := crypto.RandomBytes(MaxBits / 8)
	if err != nil {
		return ID{}, err
	}

	id := ID{bits: bits}
	id.val.SetBytes(raw)
	id.val.And(&id.val, mask(bits))

	return id, nil
}

// RandomIDInBucket generates identifier which falls into bucket with
// provided index relative to self. Used to refresh stale buckets by looking
// up a synthetic target.
func RandomIDInBucket(self ID, index int) (ID, error) {
	if index < 0 || index >= self.bits {
		return ID{}, fmt.Errorf("%w, bucket index %d out of range [0, %d)", ErrInvalidNodeID, index, self.bits)
	}

	r, err := RandomID(self.bits)
	if err != nil {
		return ID{}, err
	}

	// distance must have its highest set bit exactly at position h.
	h := self.bits - index - 1

	var d uint256.Int

	d.And(&r.val, mask(h))
	d.Or(&d, new(uint256.Int).Lsh(uint256.NewInt(1), uint(h)))

	id := ID{bits: self.bits}
	id.val.Xor(&self.val, &d)

	return id, nil
}

// HashKey derives key of provided length from arbitrary data.
func HashKey(data []byte, bits int) (ID, error) {
	if err := validateBits(bits); err != nil {
		return ID{}, err
	}

	id := ID{bits: bits}
	id.val.SetBytes(crypto.Sha1(data))

	if bits > sha1Bits {
		id.val.Lsh(&id.val, uint(bits-sha1Bits))
	} else {
		id.val.Rsh(&id.val, uint(sha1Bits-bits))
	}

	return id, nil
}

// Generate creates node with random identifier.
func Generate(address string, bits int) (Node, error) {
	id, err := RandomID(bits)
	if err != nil {
		return Node{}, err
	}

	return New(id, address), nil
}
