package zipkit

import (
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/meigma/zipkit/internal/zipfmt"
)

// Sink receives extracted bytes incrementally. It is called with the
// output offset of chunk and must return the number of bytes accepted;
// accepting fewer than len(chunk) aborts the extraction.
type Sink func(offset int64, chunk []byte) (int, error)

// sinkChunkSize is the largest slice handed to a Sink per call.
const sinkChunkSize = 64 << 10

// Reader provides access to the entries of a zip archive. It is not safe
// for concurrent use; distinct readers are independent.
type Reader struct {
	data    []byte
	entries []Entry
	comment string
	closed  bool
	opts    options
}

// OpenReader opens the archive at path and parses its central directory.
func OpenReader(path string, opts ...Option) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOpenFailed, err)
	}
	return NewReader(data, opts...)
}

// NewReader parses the central directory of the archive held in data. The
// reader aliases data; the caller must not mutate it while the reader is
// in use.
func NewReader(data []byte, opts ...Option) (*Reader, error) {
	o := applyOptions(opts)

	end, endOffset, err := zipfmt.FindEndRecord(data)
	if err != nil {
		if errors.Is(err, zipfmt.ErrMultidisk) {
			return nil, ErrUnsupportedMultidisk
		}
		return nil, ErrNotAnArchive
	}
	if isZip64End(end) {
		return nil, ErrUnsupportedCdirSize
	}
	headers, err := zipfmt.ReadCentralDir(data, end, endOffset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeaderOrCorrupted, err)
	}

	entries := make([]Entry, len(headers))
	for i, h := range headers {
		entries[i] = Entry{
			Name:             h.Name,
			Comment:          h.Comment,
			Method:           Method(h.Method),
			CRC32:            h.CRC32,
			CompressedSize:   h.CompressedSize,
			UncompressedSize: h.UncompressedSize,
			Modified:         zipfmt.DosToTime(h.ModTime, h.ModDate),
			headerOffset:     h.HeaderOffset,
		}
	}

	o.log().Debug("archive opened", "entries", len(entries), "size", len(data))
	return &Reader{
		data:    data,
		entries: entries,
		comment: end.Comment,
		opts:    o,
	}, nil
}

// Count returns the number of entries in the archive.
func (r *Reader) Count() int { return len(r.entries) }

// Comment returns the archive comment from the end record.
func (r *Reader) Comment() string { return r.comment }

// Entry returns the entry record at index i.
func (r *Reader) Entry(i int) (*Entry, error) {
	if r.closed {
		return nil, fmt.Errorf("%w: reader is closed", ErrInvalidParameter)
	}
	if i < 0 || i >= len(r.entries) {
		return nil, fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidParameter, i, len(r.entries))
	}
	return &r.entries[i], nil
}

// IsDir reports whether the entry at index i denotes a directory.
func (r *Reader) IsDir(i int) (bool, error) {
	e, err := r.Entry(i)
	if err != nil {
		return false, err
	}
	return e.IsDir(), nil
}

// ReadFile extracts and verifies the entry at index i, returning its
// uncompressed bytes.
func (r *Reader) ReadFile(i int) ([]byte, error) {
	e, err := r.Entry(i)
	if err != nil {
		return nil, err
	}
	return r.extract(e)
}

// ExtractToFile extracts the entry at index i to destPath, verifying its
// CRC32 before the destination becomes visible. Directory entries create
// the directory instead. The file is written to a temporary sibling and
// renamed into place so a failed extraction never leaves partial output.
func (r *Reader) ExtractToFile(i int, destPath string) error {
	e, err := r.Entry(i)
	if err != nil {
		return err
	}
	if e.IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return fmt.Errorf("%w: %v", ErrFileCreateFailed, err)
		}
		return nil
	}

	content, err := r.extract(e)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(destPath, content); err != nil {
		return err
	}
	if r.opts.preserveTimes && !e.Modified.IsZero() {
		// A failed timestamp restore is not worth failing the extraction.
		if err := os.Chtimes(destPath, e.Modified, e.Modified); err != nil {
			r.opts.log().Warn("restoring mtime failed", "path", destPath, "error", err)
		}
	}
	r.opts.log().Debug("entry extracted", "name", e.Name, "dest", destPath, "bytes", len(content))
	return nil
}

// ExtractToSink extracts the entry at index i through sink, verifying the
// CRC32 of the full output before the first chunk is delivered.
func (r *Reader) ExtractToSink(i int, sink Sink) error {
	if sink == nil {
		return fmt.Errorf("%w: nil sink", ErrInvalidParameter)
	}
	e, err := r.Entry(i)
	if err != nil {
		return err
	}
	content, err := r.extract(e)
	if err != nil {
		return err
	}
	for offset := 0; offset < len(content); {
		chunk := content[offset:]
		if len(chunk) > sinkChunkSize {
			chunk = chunk[:sinkChunkSize]
		}
		n, err := sink(int64(offset), chunk)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWriteCallbackFailed, err)
		}
		if n != len(chunk) {
			return fmt.Errorf("%w: sink accepted %d of %d bytes", ErrWriteCallbackFailed, n, len(chunk))
		}
		offset += len(chunk)
	}
	return nil
}

// Close releases the reader. It is idempotent; all other methods fail
// after the first call.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.data = nil
	r.entries = nil
	return nil
}

// isZip64End reports whether the end record carries zip64 marker values,
// meaning the real directory geometry lives in a zip64 record this package
// does not read.
func isZip64End(e zipfmt.EndRecord) bool {
	return e.TotalEntries == 0xFFFF ||
		e.DirSize == 0xFFFFFFFF ||
		e.DirOffset == 0xFFFFFFFF
}

// extract decompresses and verifies one entry's payload.
func (r *Reader) extract(e *Entry) ([]byte, error) {
	comp, err := r.payload(e)
	if err != nil {
		return nil, err
	}

	var content []byte
	switch e.Method {
	case Store:
		if e.CompressedSize != e.UncompressedSize {
			return nil, fmt.Errorf("%w: stored entry size mismatch", ErrInvalidHeaderOrCorrupted)
		}
		content = append([]byte(nil), comp...)
	case Deflate:
		content, err = UncompressSize(comp, int(e.UncompressedSize))
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: method %d", ErrUnsupportedMethod, e.Method)
	}

	if crc32.ChecksumIEEE(content) != e.CRC32 {
		return nil, fmt.Errorf("%w: entry %q", ErrCrcCheckFailed, e.Name)
	}
	return content, nil
}

// payload locates the entry's compressed bytes behind its local header.
func (r *Reader) payload(e *Entry) ([]byte, error) {
	if int64(e.headerOffset) >= int64(len(r.data)) {
		return nil, fmt.Errorf("%w: local header offset out of range", ErrInvalidHeaderOrCorrupted)
	}
	h, size, err := zipfmt.ParseLocal(r.data[e.headerOffset:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeaderOrCorrupted, err)
	}
	if h.Flags&0x1 != 0 {
		return nil, fmt.Errorf("%w: entry %q", ErrUnsupportedEncryption, e.Name)
	}
	start := int64(e.headerOffset) + int64(size)
	end := start + int64(e.CompressedSize)
	if end > int64(len(r.data)) {
		return nil, fmt.Errorf("%w: payload extends past archive end", ErrInvalidHeaderOrCorrupted)
	}
	return r.data[start:end], nil
}

// writeFileAtomic writes content to a temporary sibling of path and
// renames it into place.
func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileCreateFailed, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileCreateFailed, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrFileWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrFileCloseFailed, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrFileCreateFailed, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrFileWriteFailed, err)
	}
	return nil
}
