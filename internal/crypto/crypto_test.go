package crypto_test

import (
	"encoding/hex"
	"testing"

	"github.com/Melenium2/dht/internal/crypto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomBytes_Should_generate_different_bytes_each_time(t *testing.T) {
	for i := 0; i < 150; i++ {
		first, err := crypto.RandomBytes(20)
		require.NoError(t, err)

		second, err := crypto.RandomBytes(20)
		require.NoError(t, err)

		assert.NotEqualf(t, first, second, "%x != %x", first, second)
	}
}

func TestSha1_Should_return_known_digest(t *testing.T) {
	sum := crypto.Sha1([]byte("abc"))

	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", hex.EncodeToString(sum))
}

func TestRandomBytes_Should_return_requested_length(t *testing.T) {
	buf, err := crypto.RandomBytes(7)
	require.NoError(t, err)

	assert.Len(t, buf, 7)
}
