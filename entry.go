package zipkit

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Method identifies how an entry's payload is encoded.
type Method uint16

const (
	// Store records payload bytes verbatim.
	Store Method = 0

	// Deflate compresses the payload with DEFLATE (RFC 1951).
	Deflate Method = 8
)

func (m Method) String() string {
	switch m {
	case Store:
		return "store"
	case Deflate:
		return "deflate"
	default:
		return "method" + strconv.Itoa(int(m))
	}
}

// Entry describes one archive member as recorded in the central directory.
type Entry struct {
	// Name is the entry path inside the archive, always slash-separated.
	Name string

	// Comment is the per-entry comment from the central directory.
	Comment string

	// Method is the compression method of the payload.
	Method Method

	// CRC32 is the IEEE checksum of the uncompressed payload.
	CRC32 uint32

	// CompressedSize and UncompressedSize are the payload sizes in bytes.
	CompressedSize   uint32
	UncompressedSize uint32

	// Modified is the entry timestamp, with the two-second resolution of
	// the DOS time fields.
	Modified time.Time

	// headerOffset locates the entry's local header in the archive.
	headerOffset uint32
}

// IsDir reports whether the entry denotes a directory. Directory entries
// carry a trailing slash and no payload.
func (e *Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// validateEntryName rejects names that cannot be stored or would escape
// the extraction root: empty names, absolute paths, drive prefixes,
// backslashes and parent-directory segments.
func validateEntryName(name string) error {
	if name == "" || len(name) > math.MaxUint16 {
		return ErrInvalidFilename
	}
	if strings.ContainsRune(name, '\\') {
		return ErrInvalidFilename
	}
	if strings.HasPrefix(name, "/") {
		return ErrInvalidFilename
	}
	if len(name) >= 2 && name[1] == ':' {
		return ErrInvalidFilename
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return ErrInvalidFilename
		}
	}
	return nil
}
