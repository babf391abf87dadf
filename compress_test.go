package zipkit

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	random := make([]byte, 48<<10)
	rng.Read(random)

	inputs := map[string][]byte{
		"empty":  nil,
		"small":  []byte("hello, world"),
		"text":   []byte(strings.Repeat("compress me, compress me again. ", 2048)),
		"random": random,
	}
	for name, input := range inputs {
		for _, level := range []int{0, 1, 6, 9} {
			input := input
			level := level
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				comp, err := Compress(input, level)
				require.NoError(t, err)
				require.NotEmpty(t, comp)

				got, err := Uncompress(comp)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(input, got))

				exact, err := UncompressSize(comp, len(input))
				require.NoError(t, err)
				assert.True(t, bytes.Equal(input, exact))
			})
		}
	}
}

func TestCompressInvalidLevel(t *testing.T) {
	t.Parallel()

	for _, level := range []int{-1, 10} {
		_, err := Compress([]byte("x"), level)
		assert.ErrorIs(t, err, ErrInvalidParameter)
		assert.Equal(t, CodeInvalidParameter, CodeOf(err))
	}
}

func TestUncompressCorrupt(t *testing.T) {
	t.Parallel()

	_, err := Uncompress([]byte{0xde, 0xad, 0xbe, 0xef, 0x00})
	assert.ErrorIs(t, err, ErrDecompressionFailed)
	assert.Equal(t, CodeDecompressionFailed, CodeOf(err))
}

func TestUncompressSizeMismatch(t *testing.T) {
	t.Parallel()

	comp, err := Compress([]byte("twelve bytes"), 6)
	require.NoError(t, err)

	_, err = UncompressSize(comp, 5)
	assert.ErrorIs(t, err, ErrUnexpectedDecompressedSize)

	_, err = UncompressSize(comp, 100)
	assert.ErrorIs(t, err, ErrUnexpectedDecompressedSize)

	_, err = UncompressSize(comp, -1)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestCompressBound(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(2))
	for _, n := range []int{0, 1, 100, 65535, 200000} {
		input := make([]byte, n)
		rng.Read(input)
		comp, err := Compress(input, 9)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(comp), CompressBound(n), "input size %d", n)
	}
}

func TestCodeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CodeNoError, CodeOf(nil))
	assert.Equal(t, CodeCrcCheckFailed, CodeOf(ErrCrcCheckFailed))
	assert.Equal(t, CodeUndefinedError, CodeOf(assert.AnError))
}
