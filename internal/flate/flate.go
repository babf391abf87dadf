// Package flate implements DEFLATE (RFC 1951) encoding and decoding over
// whole in-memory buffers.
//
// Unlike the streaming codecs in the standard library, both directions work
// on byte slices: Encode appends a complete raw DEFLATE stream to dst, and
// Decode inflates into a caller-sized buffer, failing instead of growing it.
// The caller owns all buffers; the codec keeps no state between calls.
package flate

import "errors"

// Compression levels. Level 0 stores input without compression; levels 1-9
// trade time for ratio by searching the match window deeper and wider.
const (
	NoCompression   = 0
	BestSpeed       = 1
	BestCompression = 9
	DefaultLevel    = 6
)

var (
	// ErrCorrupt is returned when the input is not a valid DEFLATE stream.
	ErrCorrupt = errors.New("flate: corrupt input")

	// ErrBufTooSmall is returned when decoded output would exceed the
	// capacity of the destination buffer.
	ErrBufTooSmall = errors.New("flate: output buffer too small")

	// ErrInvalidLevel is returned for compression levels outside 0-9.
	ErrInvalidLevel = errors.New("flate: invalid compression level")
)

const (
	minMatchLen = 3
	maxMatchLen = 258

	windowSize = 32 << 10
	windowMask = windowSize - 1

	// maxStoredLen is the payload limit of a single stored block.
	maxStoredLen = 65535

	// maxBlockInput caps the bytes framed into one block so that the
	// stored fallback always fits a single stored block.
	maxBlockInput = 65000

	maxNumLit    = 286
	maxNumDist   = 30
	numClCodes   = 19
	endBlockSym  = 256
	maxCodeBits  = 15
	maxClBits    = 7
	maxCodeLen   = 16
)

// codeOrder is the transmission order of code-length-code lengths in a
// dynamic block header.
var codeOrder = [numClCodes]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// lengthBase and lengthExtra describe the 29 length codes 257-285.
var (
	lengthBase = [29]int{
		3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
		35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258,
	}
	lengthExtra = [29]uint{
		0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2,
		3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0,
	}
)

// distBase and distExtra describe the 30 distance codes.
var (
	distBase = [30]int{
		1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
		257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145,
		8193, 12289, 16385, 24577,
	}
	distExtra = [30]uint{
		0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
		7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
	}
)

// lengthCodeTable maps (length - 3) to a length code offset 0-28.
var lengthCodeTable [maxMatchLen - minMatchLen + 1]uint8

func init() {
	for code := range lengthBase {
		span := 1 << lengthExtra[code]
		for l := lengthBase[code]; l < lengthBase[code]+span && l <= maxMatchLen; l++ {
			lengthCodeTable[l-minMatchLen] = uint8(code)
		}
	}
	// Length 258 has its own zero-extra code.
	lengthCodeTable[maxMatchLen-minMatchLen] = 28
}
