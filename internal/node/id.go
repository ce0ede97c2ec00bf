package node

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

const (
	// DefaultBits is the identifier length used by default, length of SHA-1.
	DefaultBits = 160
	// MaxBits is the widest supported identifier.
	MaxBits = 256
)

// ErrInvalidNodeID reports contract violation: self reference, identifiers
// of different length or value that does not fit in the declared bits.
var ErrInvalidNodeID = errors.New("invalid node id")

// ID is an immutable fixed-length bit string. Bits above Bits() are always
// zero. ID is comparable and can be used as a map key.
type ID struct {
	val  uint256.Int
	bits int
}

// NewID creates ID of provided bit length from big-endian bytes.
func NewID(b []byte, bits int) (ID, error) {
	if err := validateBits(bits); err != nil {
		return ID{}, err
	}

	if len(b) > MaxBits/8 {
		return ID{}, fmt.Errorf("%w, got %d bytes", ErrInvalidNodeID, len(b))
	}

	id := ID{bits: bits}
	id.val.SetBytes(b)

	if id.val.BitLen() > bits {
		return ID{}, fmt.Errorf("%w, value does not fit in %d bits", ErrInvalidNodeID, bits)
	}

	return id, nil
}

// NewIDFromUint64 creates small identifiers, mostly for tests and tiny key spaces.
func NewIDFromUint64(v uint64, bits int) (ID, error) {
	if err := validateBits(bits); err != nil {
		return ID{}, err
	}

	id := ID{bits: bits}
	id.val.SetUint64(v)

	if id.val.BitLen() > bits {
		return ID{}, fmt.Errorf("%w, value %d does not fit in %d bits", ErrInvalidNodeID, v, bits)
	}

	return id, nil
}

// ParseID decodes hex representation produced by ID.String.
func ParseID(s string, bits int) (ID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("%w, %s", ErrInvalidNodeID, err)
	}

	return NewID(b, bits)
}

func validateBits(bits int) error {
	if bits <= 0 || bits > MaxBits {
		return fmt.Errorf("%w, bit length %d out of range [1, %d]", ErrInvalidNodeID, bits, MaxBits)
	}

	return nil
}

// Bits returns identifier length.
func (id ID) Bits() int {
	return id.bits
}

// Bytes returns big-endian representation, ceil(Bits/8) bytes long.
func (id ID) Bytes() []byte {
	full := id.val.Bytes32()
	size := (id.bits + 7) / 8 // nolint:gomnd

	out := make([]byte, size)
	copy(out, full[len(full)-size:])

	return out
}

func (id ID) String() string {
	return hex.EncodeToString(id.Bytes())
}

func (id ID) Equal(other ID) bool {
	return id == other
}

// IsZero reports whether id was never initialized.
func (id ID) IsZero() bool {
	return id.bits == 0
}

func mask(bits int) *uint256.Int {
	// wraps to all ones when bits == 256.
	m := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bits))

	return m.Sub(m, uint256.NewInt(1))
}
