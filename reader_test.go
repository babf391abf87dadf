package zipkit

import (
	stdzip "archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeArchive builds an archive with the given entries in order.
func writeArchive(t *testing.T, path string, entries [][2]string, opts ...Option) {
	t.Helper()

	w, err := CreateWriter(path, opts...)
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, w.AddBuffer(e[0], []byte(e[1])))
	}
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Close())
}

func TestOpenReaderMissing(t *testing.T) {
	t.Parallel()

	_, err := OpenReader(filepath.Join(t.TempDir(), "nope.zip"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestNewReaderNotAnArchive(t *testing.T) {
	t.Parallel()

	for _, data := range [][]byte{
		nil,
		[]byte("PK"),
		[]byte(strings.Repeat("definitely not a zip file ", 100)),
	} {
		_, err := NewReader(data)
		assert.ErrorIs(t, err, ErrNotAnArchive)
		assert.Equal(t, CodeNotAnArchive, CodeOf(err))
	}
}

// TestReaderStdlibInterop verifies that archives produced by an
// independent implementation parse and extract correctly.
func TestReaderStdlibInterop(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := stdzip.NewWriter(&buf)

	fw, err := zw.CreateHeader(&stdzip.FileHeader{Name: "deflated.txt", Method: stdzip.Deflate})
	require.NoError(t, err)
	big := strings.Repeat("interoperability test line\n", 3000)
	_, err = fw.Write([]byte(big))
	require.NoError(t, err)

	fw, err = zw.CreateHeader(&stdzip.FileHeader{Name: "stored.txt", Method: stdzip.Store})
	require.NoError(t, err)
	_, err = fw.Write([]byte("stored bytes"))
	require.NoError(t, err)

	require.NoError(t, zw.Close())

	r, err := NewReader(buf.Bytes())
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, 2, r.Count())

	got, err := r.ReadFile(0)
	require.NoError(t, err)
	assert.Equal(t, big, string(got))

	got, err = r.ReadFile(1)
	require.NoError(t, err)
	assert.Equal(t, "stored bytes", string(got))
}

func TestReaderOutOfRange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.zip")
	writeArchive(t, path, [][2]string{{"a.txt", "hello"}})

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	for _, i := range []int{-1, 1, 100} {
		_, err := r.Entry(i)
		assert.ErrorIs(t, err, ErrInvalidParameter, "index %d", i)

		_, err = r.ReadFile(i)
		assert.ErrorIs(t, err, ErrInvalidParameter, "index %d", i)
	}
}

func TestReaderCorruptStoredPayload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.zip")
	writeArchive(t, path, [][2]string{{"a.txt", "hello stored payload"}}, WithLevel(0))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Payload begins right after the 30-byte local header and the name.
	data[30+len("a.txt")+2] ^= 0xFF

	r, err := NewReader(data)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadFile(0)
	assert.ErrorIs(t, err, ErrCrcCheckFailed)
	assert.Equal(t, CodeCrcCheckFailed, CodeOf(err))
}

func TestReaderCorruptDeflatePayload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.zip")
	writeArchive(t, path, [][2]string{{"a.txt", strings.Repeat("compressible text ", 1000)}})

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	entries, err := Stats(path)
	require.NoError(t, err)
	require.Equal(t, Deflate, entries[0].Method)

	// Flip one byte in the middle of the compressed payload. Extraction
	// must fail one way or another, never return wrong bytes silently.
	payloadStart := 30 + len("a.txt")
	data[payloadStart+int(entries[0].CompressedSize)/2] ^= 0xFF

	r, err := NewReader(data)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadFile(0)
	require.Error(t, err)
	assert.NotEqual(t, CodeNoError, CodeOf(err))
}

func TestReaderEncryptedEntry(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.zip")
	writeArchive(t, path, [][2]string{{"a.txt", "secret"}})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[6] |= 0x1 // encryption flag in the local header

	r, err := NewReader(data)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadFile(0)
	assert.ErrorIs(t, err, ErrUnsupportedEncryption)
}

func TestExtractToFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.zip")
	writeArchive(t, path, [][2]string{
		{"nested/", ""},
		{"nested/file.txt", "file content"},
	})

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	destDir := filepath.Join(dir, "out", "nested")
	require.NoError(t, r.ExtractToFile(0, destDir))
	info, err := os.Stat(destDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	destFile := filepath.Join(destDir, "file.txt")
	require.NoError(t, r.ExtractToFile(1, destFile))
	got, err := os.ReadFile(destFile)
	require.NoError(t, err)
	assert.Equal(t, "file content", string(got))

	// No temp files left behind.
	names, err := os.ReadDir(destDir)
	require.NoError(t, err)
	require.Len(t, names, 1)
}

func TestExtractToSink(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("streaming chunk data ", 10000) // > one chunk
	path := filepath.Join(t.TempDir(), "a.zip")
	writeArchive(t, path, [][2]string{{"big.txt", content}})

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	t.Run("collects all chunks", func(t *testing.T) {
		var out []byte
		err := r.ExtractToSink(0, func(offset int64, chunk []byte) (int, error) {
			require.Equal(t, int64(len(out)), offset)
			out = append(out, chunk...)
			return len(chunk), nil
		})
		require.NoError(t, err)
		assert.Equal(t, content, string(out))
	})

	t.Run("short accept aborts", func(t *testing.T) {
		err := r.ExtractToSink(0, func(offset int64, chunk []byte) (int, error) {
			return len(chunk) - 1, nil
		})
		assert.ErrorIs(t, err, ErrWriteCallbackFailed)
	})

	t.Run("sink error aborts", func(t *testing.T) {
		err := r.ExtractToSink(0, func(offset int64, chunk []byte) (int, error) {
			return 0, errors.New("disk full")
		})
		assert.ErrorIs(t, err, ErrWriteCallbackFailed)
	})

	t.Run("nil sink", func(t *testing.T) {
		err := r.ExtractToSink(0, nil)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestReaderClose(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.zip")
	writeArchive(t, path, [][2]string{{"a.txt", "x"}})

	r, err := OpenReader(path)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.Entry(0)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
