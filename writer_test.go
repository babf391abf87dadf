package zipkit

import (
	stdzip "archive/zip"
	"bytes"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.zip")
	w, err := CreateWriter(path, WithComment("archive comment"))
	require.NoError(t, err)

	require.NoError(t, w.AddBuffer("a.txt", []byte("hello")))
	require.NoError(t, w.AddBuffer("docs/", nil))
	require.NoError(t, w.AddBuffer("docs/b.txt",
		[]byte(strings.Repeat("a compressible payload line\n", 500)),
		WithLevel(9),
		WithComment("entry two"),
	))
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Close())

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 3, r.Count())
	assert.Equal(t, "archive comment", r.Comment())

	e0, err := r.Entry(0)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", e0.Name)
	assert.False(t, e0.IsDir())

	e1, err := r.Entry(1)
	require.NoError(t, err)
	assert.True(t, e1.IsDir())
	assert.Equal(t, uint32(0), e1.UncompressedSize)

	e2, err := r.Entry(2)
	require.NoError(t, err)
	assert.Equal(t, Deflate, e2.Method)
	assert.Equal(t, "entry two", e2.Comment)
	assert.Less(t, e2.CompressedSize, e2.UncompressedSize)

	content, err := r.ReadFile(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)

	content, err = r.ReadFile(2)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a compressible payload line\n", 500), string(content))
}

// TestWriterStdlibInterop verifies that an independent zip implementation
// accepts archives produced by Writer.
func TestWriterStdlibInterop(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.zip")
	w, err := CreateWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.AddBuffer("plain.txt", []byte("stored or deflated")))
	require.NoError(t, w.AddBuffer("big.txt", []byte(strings.Repeat("deflate me\n", 2000))))
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Close())

	zr, err := stdzip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	require.Len(t, zr.File, 2)
	for i, want := range []string{"stored or deflated", strings.Repeat("deflate me\n", 2000)} {
		rc, err := zr.File[i].Open()
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, want, string(got))
	}
}

func TestWriterAddAfterFinalize(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.zip")
	w, err := CreateWriter(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.AddBuffer("a.txt", []byte("x")))
	require.NoError(t, w.Finalize())

	err = w.AddBuffer("b.txt", []byte("y"))
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.Equal(t, CodeInvalidParameter, CodeOf(err))
}

func TestWriterInvalidNames(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.zip")
	w, err := CreateWriter(path)
	require.NoError(t, err)
	defer w.Close()

	for _, name := range []string{
		"",
		"/etc/passwd",
		"..",
		"../escape.txt",
		"a/../../b.txt",
		"win\\path.txt",
		"C:/windows.txt",
	} {
		err := w.AddBuffer(name, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidFilename, "name %q", name)
	}

	// Interior dot segments that do not escape are allowed.
	assert.NoError(t, w.AddBuffer("a/./b.txt", []byte("x")))
}

func TestWriterStoreFallback(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	incompressible := make([]byte, 16<<10)
	rng.Read(incompressible)

	path := filepath.Join(t.TempDir(), "out.zip")
	w, err := CreateWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.AddBuffer("noise.bin", incompressible, WithLevel(9)))
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Close())

	entries, err := Stats(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Store, entries[0].Method)
	assert.Equal(t, entries[0].UncompressedSize, entries[0].CompressedSize)

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	got, err := r.ReadFile(0)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(incompressible, got))
}

func TestWriterReserve(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.zip")
	w, err := CreateWriter(path, WithReserve(128))
	require.NoError(t, err)
	require.NoError(t, w.AddBuffer("a.txt", []byte("hello")))
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 128), data[:128])

	r, err := NewReader(data)
	require.NoError(t, err)
	defer r.Close()
	content, err := r.ReadFile(0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestWriterDirectoryWithPayload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.zip")
	w, err := CreateWriter(path)
	require.NoError(t, err)
	defer w.Close()

	err = w.AddBuffer("docs/", []byte("not allowed"))
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestWriterInvalidLevel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.zip")
	w, err := CreateWriter(path)
	require.NoError(t, err)
	defer w.Close()

	err = w.AddBuffer("a.txt", []byte("x"), WithLevel(42))
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestCreateWriterNegativeReserve(t *testing.T) {
	t.Parallel()

	_, err := CreateWriter(filepath.Join(t.TempDir(), "out.zip"), WithReserve(-1))
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestWriterCloseIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.zip")
	w, err := CreateWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.AddBuffer("a.txt", []byte("x")))
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	err = w.AddBuffer("b.txt", []byte("y"))
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
