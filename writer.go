package zipkit

import (
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"time"

	"github.com/meigma/zipkit/internal/zipfmt"
)

// maxEntries is the most entries a 16-bit end record can describe without
// colliding with the 0xFFFF zip64 marker value.
const maxEntries = math.MaxUint16 - 1

// Writer builds a zip archive incrementally. Entries are appended with
// AddFile and AddBuffer, then Finalize writes the central directory and
// end record. Closing an unfinalized writer leaves the file without a
// central directory; callers own that trade-off.
type Writer struct {
	f         *os.File
	offset    int64
	headers   []zipfmt.CentralHeader
	finalized bool
	closed    bool
	opts      options
}

// CreateWriter creates a new archive at path, truncating any existing
// file. WithReserve leaves leading zero bytes before the first entry for
// callers that later prepend a stub.
func CreateWriter(path string, opts ...Option) (*Writer, error) {
	o := applyOptions(opts)
	if o.reserve < 0 {
		return nil, fmt.Errorf("%w: negative reserve", ErrInvalidParameter)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileCreateFailed, err)
	}
	w := &Writer{f: f, opts: o}
	if o.reserve > 0 {
		if err := w.write(make([]byte, o.reserve)); err != nil {
			f.Close()
			os.Remove(path)
			return nil, err
		}
	}
	o.log().Debug("archive created", "path", path, "reserve", o.reserve)
	return w, nil
}

// OpenWriterAppend reopens an existing archive for appending. The central
// directory is loaded and truncated away; new entries land after the last
// payload byte and Finalize rewrites the directory with the prior records
// preserved in order. Unless overridden, the archive comment is kept.
func OpenWriterAppend(path string, opts ...Option) (*Writer, error) {
	o := applyOptions(opts)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOpenFailed, err)
	}
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
	if o.comment == "" {
		o.comment = end.Comment
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOpenFailed, err)
	}
	dirOffset := int64(end.DirOffset)
	if err := f.Truncate(dirOffset); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrFileWriteFailed, err)
	}
	if _, err := f.Seek(dirOffset, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrFileSeekFailed, err)
	}

	o.log().Debug("archive reopened for append", "path", path, "entries", len(headers))
	return &Writer{
		f:       f,
		offset:  dirOffset,
		headers: headers,
		opts:    o,
	}, nil
}

// Count returns the number of entries recorded so far.
func (w *Writer) Count() int { return len(w.headers) }

// AddFile reads srcPath and adds its bytes under name, keeping the source
// modification time. Per-call options override the writer's level; a
// per-call WithComment sets the entry comment.
func (w *Writer) AddFile(name, srcPath string, opts ...Option) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, srcPath)
		}
		return fmt.Errorf("%w: %v", ErrFileOpenFailed, err)
	}
	info, err := os.Stat(srcPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileStatFailed, err)
	}
	return w.add(name, data, info.ModTime(), opts)
}

// AddBuffer adds data under name with the current time as the entry
// timestamp. A name with a trailing slash records a directory entry and
// must carry no data.
func (w *Writer) AddBuffer(name string, data []byte, opts ...Option) error {
	return w.add(name, data, time.Now(), opts)
}

func (w *Writer) add(name string, data []byte, modified time.Time, opts []Option) error {
	if err := w.writable(); err != nil {
		return err
	}
	if err := validateEntryName(name); err != nil {
		return err
	}

	eo := w.opts
	eo.comment = "" // the writer-level comment belongs to the archive
	for _, opt := range opts {
		opt(&eo)
	}
	if eo.level < 0 || eo.level > 9 {
		return fmt.Errorf("%w: compression level %d", ErrInvalidParameter, eo.level)
	}
	if len(w.headers) >= maxEntries {
		return ErrTooManyFiles
	}
	if int64(len(data)) > math.MaxUint32 {
		return ErrFileTooLarge
	}

	isDir := name[len(name)-1] == '/'
	if isDir && len(data) > 0 {
		return fmt.Errorf("%w: directory entry %q with payload", ErrInvalidParameter, name)
	}

	method := Store
	payload := data
	if eo.level > 0 && len(data) > 0 {
		comp, err := Compress(data, eo.level)
		if err != nil {
			return err
		}
		// Keep whichever representation is smaller.
		if len(comp) < len(data) {
			method = Deflate
			payload = comp
		}
	}

	headerOffset := w.offset
	recordSize := int64(zipfmt.LocalHeaderLen+len(name)) + int64(len(payload))
	if headerOffset+recordSize > math.MaxUint32 {
		return ErrArchiveTooLarge
	}

	dosTime, dosDate := zipfmt.TimeToDos(modified)
	crc := crc32.ChecksumIEEE(data)
	local := zipfmt.LocalHeader{
		Method:           uint16(method),
		ModTime:          dosTime,
		ModDate:          dosDate,
		CRC32:            crc,
		CompressedSize:   uint32(len(payload)),
		UncompressedSize: uint32(len(data)),
		Name:             name,
	}
	if err := w.write(zipfmt.AppendLocal(nil, &local)); err != nil {
		return err
	}
	if err := w.write(payload); err != nil {
		return err
	}

	var externalAttrs uint32
	if isDir {
		externalAttrs = 0x10 // DOS directory attribute
	}
	w.headers = append(w.headers, zipfmt.CentralHeader{
		Method:           uint16(method),
		ModTime:          dosTime,
		ModDate:          dosDate,
		CRC32:            crc,
		CompressedSize:   uint32(len(payload)),
		UncompressedSize: uint32(len(data)),
		ExternalAttrs:    externalAttrs,
		HeaderOffset:     uint32(headerOffset),
		Name:             name,
		Comment:          eo.comment,
	})

	w.opts.log().Debug("entry added",
		"name", name,
		"method", method,
		"uncompressed", len(data),
		"compressed", len(payload),
	)
	return nil
}

// Finalize writes the central directory and end record. No entries may be
// added afterwards. A write failure here leaves the archive corrupt; it
// is not partially repaired.
func (w *Writer) Finalize() error {
	if err := w.writable(); err != nil {
		return err
	}

	dirOffset := w.offset
	var dir []byte
	for i := range w.headers {
		dir = zipfmt.AppendCentral(dir, &w.headers[i])
	}
	if dirOffset+int64(len(dir)) > math.MaxUint32 {
		return ErrUnsupportedCdirSize
	}
	if err := w.write(dir); err != nil {
		return err
	}

	end := zipfmt.EndRecord{
		DiskEntries:  uint16(len(w.headers)),
		TotalEntries: uint16(len(w.headers)),
		DirSize:      uint32(len(dir)),
		DirOffset:    uint32(dirOffset),
		Comment:      w.opts.comment,
	}
	if err := w.write(zipfmt.AppendEnd(nil, &end)); err != nil {
		return err
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileWriteFailed, err)
	}

	w.finalized = true
	w.opts.log().Debug("archive finalized", "entries", len(w.headers), "bytes", w.offset)
	return nil
}

// Close releases the writer. It is idempotent. Closing before Finalize
// leaves a file without a central directory.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileCloseFailed, err)
	}
	return nil
}

func (w *Writer) writable() error {
	if w.closed {
		return fmt.Errorf("%w: writer is closed", ErrInvalidParameter)
	}
	if w.finalized {
		return fmt.Errorf("%w: writer is finalized", ErrInvalidParameter)
	}
	return nil
}

func (w *Writer) write(b []byte) error {
	n, err := w.f.Write(b)
	w.offset += int64(n)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileWriteFailed, err)
	}
	return nil
}
