package zipkit

import "errors"

// Code is the closed set of failure classes an archive operation can
// surface. Every error returned by this package maps to exactly one code;
// CodeOf recovers it from a wrapped error chain.
type Code int

const (
	CodeNoError Code = iota
	CodeUndefinedError
	CodeTooManyFiles
	CodeFileTooLarge
	CodeUnsupportedMethod
	CodeUnsupportedEncryption
	CodeUnsupportedFeature
	CodeFailedFindingCentralDir
	CodeNotAnArchive
	CodeInvalidHeaderOrCorrupted
	CodeUnsupportedMultidisk
	CodeDecompressionFailed
	CodeCompressionFailed
	CodeUnexpectedDecompressedSize
	CodeCrcCheckFailed
	CodeUnsupportedCdirSize
	CodeAllocFailed
	CodeFileOpenFailed
	CodeFileCreateFailed
	CodeFileWriteFailed
	CodeFileReadFailed
	CodeFileCloseFailed
	CodeFileSeekFailed
	CodeFileStatFailed
	CodeInvalidParameter
	CodeInvalidFilename
	CodeBufTooSmall
	CodeInternalError
	CodeFileNotFound
	CodeArchiveTooLarge
	CodeValidationFailed
	CodeWriteCallbackFailed
)

// codedError ties a sentinel message to its Code so callers can branch on
// either errors.Is or CodeOf.
type codedError struct {
	code Code
	msg  string
}

func (e *codedError) Error() string { return e.msg }

func newErr(code Code, msg string) *codedError {
	return &codedError{code: code, msg: "zipkit: " + msg}
}

var (
	// ErrUndefined is returned for failures with no more specific class.
	ErrUndefined = newErr(CodeUndefinedError, "undefined error")

	// ErrTooManyFiles is returned when an archive would exceed the entry
	// count a 16-bit central directory can describe.
	ErrTooManyFiles = newErr(CodeTooManyFiles, "too many files")

	// ErrFileTooLarge is returned when an entry's size overflows the
	// 32-bit header fields.
	ErrFileTooLarge = newErr(CodeFileTooLarge, "file too large")

	// ErrUnsupportedMethod is returned when an entry uses a compression
	// method other than store or deflate.
	ErrUnsupportedMethod = newErr(CodeUnsupportedMethod, "unsupported compression method")

	// ErrUnsupportedEncryption is returned when an entry is encrypted.
	ErrUnsupportedEncryption = newErr(CodeUnsupportedEncryption, "unsupported encryption")

	// ErrUnsupportedFeature is returned when an archive requires a
	// feature this package does not implement.
	ErrUnsupportedFeature = newErr(CodeUnsupportedFeature, "unsupported feature")

	// ErrFailedFindingCentralDir is returned when the end record is
	// present but the central directory cannot be located from it.
	ErrFailedFindingCentralDir = newErr(CodeFailedFindingCentralDir, "failed finding central directory")

	// ErrNotAnArchive is returned when no end-of-central-directory
	// signature exists within the trailing scan window.
	ErrNotAnArchive = newErr(CodeNotAnArchive, "not a zip archive")

	// ErrInvalidHeaderOrCorrupted is returned when a header parses but its
	// fields are inconsistent with the archive bytes.
	ErrInvalidHeaderOrCorrupted = newErr(CodeInvalidHeaderOrCorrupted, "invalid header or archive corrupted")

	// ErrUnsupportedMultidisk is returned for archives split across
	// multiple disks.
	ErrUnsupportedMultidisk = newErr(CodeUnsupportedMultidisk, "unsupported multi-disk archive")

	// ErrDecompressionFailed is returned when an entry's payload is not a
	// valid deflate stream.
	ErrDecompressionFailed = newErr(CodeDecompressionFailed, "decompression failed")

	// ErrCompressionFailed is returned when the codec fails to produce a
	// stream.
	ErrCompressionFailed = newErr(CodeCompressionFailed, "compression failed")

	// ErrUnexpectedDecompressedSize is returned when decompression
	// produces a different length than the entry records.
	ErrUnexpectedDecompressedSize = newErr(CodeUnexpectedDecompressedSize, "unexpected decompressed size")

	// ErrCrcCheckFailed is returned when the CRC32 of extracted bytes
	// does not match the entry record.
	ErrCrcCheckFailed = newErr(CodeCrcCheckFailed, "crc check failed")

	// ErrUnsupportedCdirSize is returned when the central directory
	// needs zip64 fields to describe itself.
	ErrUnsupportedCdirSize = newErr(CodeUnsupportedCdirSize, "unsupported central directory size")

	// ErrAllocFailed is returned when a required buffer cannot be sized.
	ErrAllocFailed = newErr(CodeAllocFailed, "allocation failed")

	// ErrFileOpenFailed is returned when a source file cannot be opened.
	ErrFileOpenFailed = newErr(CodeFileOpenFailed, "file open failed")

	// ErrFileCreateFailed is returned when a destination cannot be created.
	ErrFileCreateFailed = newErr(CodeFileCreateFailed, "file create failed")

	// ErrFileWriteFailed is returned when writing archive bytes fails.
	ErrFileWriteFailed = newErr(CodeFileWriteFailed, "file write failed")

	// ErrFileReadFailed is returned when reading archive bytes fails.
	ErrFileReadFailed = newErr(CodeFileReadFailed, "file read failed")

	// ErrFileCloseFailed is returned when closing a file fails.
	ErrFileCloseFailed = newErr(CodeFileCloseFailed, "file close failed")

	// ErrFileSeekFailed is returned when a seek on the archive fails.
	ErrFileSeekFailed = newErr(CodeFileSeekFailed, "file seek failed")

	// ErrFileStatFailed is returned when a stat on a file fails.
	ErrFileStatFailed = newErr(CodeFileStatFailed, "file stat failed")

	// ErrInvalidParameter is returned for out-of-range indexes, bad
	// levels and calls in the wrong handle state.
	ErrInvalidParameter = newErr(CodeInvalidParameter, "invalid parameter")

	// ErrInvalidFilename is returned when an entry name is empty,
	// absolute, or escapes the archive root.
	ErrInvalidFilename = newErr(CodeInvalidFilename, "invalid filename")

	// ErrBufTooSmall is returned when output exceeds the destination
	// buffer capacity.
	ErrBufTooSmall = newErr(CodeBufTooSmall, "buffer too small")

	// ErrInternal is returned for invariant violations inside the
	// package.
	ErrInternal = newErr(CodeInternalError, "internal error")

	// ErrFileNotFound is returned when a named entry does not exist.
	ErrFileNotFound = newErr(CodeFileNotFound, "file not found")

	// ErrArchiveTooLarge is returned when the archive would exceed the
	// 32-bit offsets of the classic zip format.
	ErrArchiveTooLarge = newErr(CodeArchiveTooLarge, "archive too large")

	// ErrValidationFailed is returned when a finalized archive fails its
	// consistency check.
	ErrValidationFailed = newErr(CodeValidationFailed, "validation failed")

	// ErrWriteCallbackFailed is returned when an extraction sink accepts
	// fewer bytes than offered.
	ErrWriteCallbackFailed = newErr(CodeWriteCallbackFailed, "write callback failed")
)

// CodeOf maps err to its Code. A nil error is CodeNoError; errors that did
// not originate in this package are CodeUndefinedError.
func CodeOf(err error) Code {
	if err == nil {
		return CodeNoError
	}
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return CodeUndefinedError
}
