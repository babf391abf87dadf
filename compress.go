package zipkit

import (
	"errors"
	"fmt"

	"github.com/meigma/zipkit/internal/flate"
)

// DefaultLevel balances speed and ratio and is used wherever a caller
// passes no explicit level.
const DefaultLevel = flate.DefaultLevel

// maxUncompressed bounds the retry growth of Uncompress so a corrupt
// stream cannot demand unbounded memory.
const maxUncompressed = 1 << 31

// CompressBound returns the worst-case output size of Compress for n input
// bytes, covering per-block framing overhead for incompressible data.
func CompressBound(n int) int {
	return n + n/200 + 64
}

// Compress deflates data at the given level (0 stores, 1-9 compress) and
// returns a raw DEFLATE stream with no wrapper. The empty input yields a
// valid stream that decodes back to empty.
func Compress(data []byte, level int) ([]byte, error) {
	out, err := flate.Encode(make([]byte, 0, CompressBound(len(data))), data, level)
	if err != nil {
		if errors.Is(err, flate.ErrInvalidLevel) {
			return nil, fmt.Errorf("%w: compression level %d", ErrInvalidParameter, level)
		}
		return nil, fmt.Errorf("%w: %w", ErrCompressionFailed, err)
	}
	return out, nil
}

// Uncompress inflates a raw DEFLATE stream. The output size is discovered
// by retrying with a doubled buffer, so callers that know the exact size
// should prefer UncompressSize.
func Uncompress(data []byte) ([]byte, error) {
	size := 4 * len(data)
	if size < 64 {
		size = 64
	}
	for {
		out, err := flate.Decode(make([]byte, 0, size), data)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, flate.ErrBufTooSmall) {
			if size >= maxUncompressed {
				return nil, fmt.Errorf("%w: output exceeds %d bytes", ErrAllocFailed, maxUncompressed)
			}
			size *= 2
			continue
		}
		return nil, fmt.Errorf("%w: %w", ErrDecompressionFailed, err)
	}
}

// UncompressSize inflates a raw DEFLATE stream whose uncompressed size is
// known. A stream decoding to any other length fails.
func UncompressSize(data []byte, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size", ErrInvalidParameter)
	}
	out, err := flate.Decode(make([]byte, 0, size), data)
	if err != nil {
		if errors.Is(err, flate.ErrBufTooSmall) {
			return nil, ErrUnexpectedDecompressedSize
		}
		return nil, fmt.Errorf("%w: %w", ErrDecompressionFailed, err)
	}
	if len(out) != size {
		return nil, ErrUnexpectedDecompressedSize
	}
	return out, nil
}
