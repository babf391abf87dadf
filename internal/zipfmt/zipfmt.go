// Package zipfmt serializes the three classic zip structures (local file
// header, central directory file header, end-of-central-directory record)
// to and from their fixed little-endian layouts.
//
// Only the original 32-bit format is handled; zip64 fields are not
// understood and oversized values must be rejected by the caller before
// encoding.
package zipfmt

import (
	"encoding/binary"
	"errors"
	"time"
)

const (
	// Record signatures.
	SigLocal   = 0x04034b50
	SigCentral = 0x02014b50
	SigEnd     = 0x06054b50

	// Fixed prefix sizes, before variable-length name/extra/comment data.
	LocalHeaderLen   = 30
	CentralHeaderLen = 46
	EndRecordLen     = 22

	// MaxEndScan bounds the trailing scan for the end record: the fixed
	// record plus the largest possible archive comment.
	MaxEndScan = EndRecordLen + 65535

	// Version 2.0 covers deflate and directory entries.
	version20 = 20
)

var (
	// ErrBadSignature is returned when a record does not start with its
	// expected magic.
	ErrBadSignature = errors.New("zipfmt: bad signature")

	// ErrTruncated is returned when a record extends past the available
	// bytes.
	ErrTruncated = errors.New("zipfmt: truncated record")

	// ErrNoEndRecord is returned when no end-of-central-directory record
	// exists within the trailing scan window.
	ErrNoEndRecord = errors.New("zipfmt: end record not found")

	// ErrMultidisk is returned when the end record describes a spanned
	// archive.
	ErrMultidisk = errors.New("zipfmt: multi-disk archive")

	// ErrInconsistent is returned when record fields contradict the
	// stream length or each other.
	ErrInconsistent = errors.New("zipfmt: inconsistent record fields")
)

// LocalHeader is the per-entry header preceding payload bytes.
type LocalHeader struct {
	Flags            uint16
	Method           uint16
	ModTime          uint16
	ModDate          uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	Name             string
	ExtraLen         uint16
}

// AppendLocal encodes h after b.
func AppendLocal(b []byte, h *LocalHeader) []byte {
	b = binary.LittleEndian.AppendUint32(b, SigLocal)
	b = binary.LittleEndian.AppendUint16(b, version20)
	b = binary.LittleEndian.AppendUint16(b, h.Flags)
	b = binary.LittleEndian.AppendUint16(b, h.Method)
	b = binary.LittleEndian.AppendUint16(b, h.ModTime)
	b = binary.LittleEndian.AppendUint16(b, h.ModDate)
	b = binary.LittleEndian.AppendUint32(b, h.CRC32)
	b = binary.LittleEndian.AppendUint32(b, h.CompressedSize)
	b = binary.LittleEndian.AppendUint32(b, h.UncompressedSize)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(h.Name)))
	b = binary.LittleEndian.AppendUint16(b, 0) // extra field length
	return append(b, h.Name...)
}

// ParseLocal decodes the local header at the start of b and returns it
// with the total encoded size including name and extra field.
func ParseLocal(b []byte) (LocalHeader, int, error) {
	if len(b) < LocalHeaderLen {
		return LocalHeader{}, 0, ErrTruncated
	}
	if binary.LittleEndian.Uint32(b) != SigLocal {
		return LocalHeader{}, 0, ErrBadSignature
	}
	h := LocalHeader{
		Flags:            binary.LittleEndian.Uint16(b[6:]),
		Method:           binary.LittleEndian.Uint16(b[8:]),
		ModTime:          binary.LittleEndian.Uint16(b[10:]),
		ModDate:          binary.LittleEndian.Uint16(b[12:]),
		CRC32:            binary.LittleEndian.Uint32(b[14:]),
		CompressedSize:   binary.LittleEndian.Uint32(b[18:]),
		UncompressedSize: binary.LittleEndian.Uint32(b[22:]),
	}
	nameLen := int(binary.LittleEndian.Uint16(b[26:]))
	extraLen := int(binary.LittleEndian.Uint16(b[28:]))
	size := LocalHeaderLen + nameLen + extraLen
	if len(b) < size {
		return LocalHeader{}, 0, ErrTruncated
	}
	h.Name = string(b[LocalHeaderLen : LocalHeaderLen+nameLen])
	h.ExtraLen = uint16(extraLen)
	return h, size, nil
}

// CentralHeader is one central directory file header.
type CentralHeader struct {
	Flags            uint16
	Method           uint16
	ModTime          uint16
	ModDate          uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	InternalAttrs    uint16
	ExternalAttrs    uint32
	HeaderOffset     uint32
	Name             string
	Comment          string
}

// AppendCentral encodes h after b.
func AppendCentral(b []byte, h *CentralHeader) []byte {
	b = binary.LittleEndian.AppendUint32(b, SigCentral)
	b = binary.LittleEndian.AppendUint16(b, version20) // version made by
	b = binary.LittleEndian.AppendUint16(b, version20) // version needed
	b = binary.LittleEndian.AppendUint16(b, h.Flags)
	b = binary.LittleEndian.AppendUint16(b, h.Method)
	b = binary.LittleEndian.AppendUint16(b, h.ModTime)
	b = binary.LittleEndian.AppendUint16(b, h.ModDate)
	b = binary.LittleEndian.AppendUint32(b, h.CRC32)
	b = binary.LittleEndian.AppendUint32(b, h.CompressedSize)
	b = binary.LittleEndian.AppendUint32(b, h.UncompressedSize)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(h.Name)))
	b = binary.LittleEndian.AppendUint16(b, 0) // extra field length
	b = binary.LittleEndian.AppendUint16(b, uint16(len(h.Comment)))
	b = binary.LittleEndian.AppendUint16(b, 0) // disk number start
	b = binary.LittleEndian.AppendUint16(b, h.InternalAttrs)
	b = binary.LittleEndian.AppendUint32(b, h.ExternalAttrs)
	b = binary.LittleEndian.AppendUint32(b, h.HeaderOffset)
	b = append(b, h.Name...)
	return append(b, h.Comment...)
}

// ParseCentral decodes the central directory header at the start of b and
// returns it with its total encoded size.
func ParseCentral(b []byte) (CentralHeader, int, error) {
	if len(b) < CentralHeaderLen {
		return CentralHeader{}, 0, ErrTruncated
	}
	if binary.LittleEndian.Uint32(b) != SigCentral {
		return CentralHeader{}, 0, ErrBadSignature
	}
	h := CentralHeader{
		Flags:            binary.LittleEndian.Uint16(b[8:]),
		Method:           binary.LittleEndian.Uint16(b[10:]),
		ModTime:          binary.LittleEndian.Uint16(b[12:]),
		ModDate:          binary.LittleEndian.Uint16(b[14:]),
		CRC32:            binary.LittleEndian.Uint32(b[16:]),
		CompressedSize:   binary.LittleEndian.Uint32(b[20:]),
		UncompressedSize: binary.LittleEndian.Uint32(b[24:]),
		InternalAttrs:    binary.LittleEndian.Uint16(b[36:]),
		ExternalAttrs:    binary.LittleEndian.Uint32(b[38:]),
		HeaderOffset:     binary.LittleEndian.Uint32(b[42:]),
	}
	nameLen := int(binary.LittleEndian.Uint16(b[28:]))
	extraLen := int(binary.LittleEndian.Uint16(b[30:]))
	commentLen := int(binary.LittleEndian.Uint16(b[32:]))
	size := CentralHeaderLen + nameLen + extraLen + commentLen
	if len(b) < size {
		return CentralHeader{}, 0, ErrTruncated
	}
	h.Name = string(b[CentralHeaderLen : CentralHeaderLen+nameLen])
	h.Comment = string(b[CentralHeaderLen+nameLen+extraLen : size])
	return h, size, nil
}

// EndRecord is the end-of-central-directory record.
type EndRecord struct {
	DiskEntries  uint16
	TotalEntries uint16
	DirSize      uint32
	DirOffset    uint32
	Comment      string
}

// AppendEnd encodes e after b.
func AppendEnd(b []byte, e *EndRecord) []byte {
	b = binary.LittleEndian.AppendUint32(b, SigEnd)
	b = binary.LittleEndian.AppendUint16(b, 0) // disk number
	b = binary.LittleEndian.AppendUint16(b, 0) // directory start disk
	b = binary.LittleEndian.AppendUint16(b, e.DiskEntries)
	b = binary.LittleEndian.AppendUint16(b, e.TotalEntries)
	b = binary.LittleEndian.AppendUint32(b, e.DirSize)
	b = binary.LittleEndian.AppendUint32(b, e.DirOffset)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(e.Comment)))
	return append(b, e.Comment...)
}

// FindEndRecord scans backwards over the trailing MaxEndScan bytes of the
// archive for the end record signature and returns the decoded record with
// its offset. A candidate signature only counts when its comment length
// field is consistent with the stream end.
func FindEndRecord(b []byte) (EndRecord, int64, error) {
	if len(b) < EndRecordLen {
		return EndRecord{}, 0, ErrNoEndRecord
	}
	stop := len(b) - MaxEndScan
	if stop < 0 {
		stop = 0
	}
	for i := len(b) - EndRecordLen; i >= stop; i-- {
		if binary.LittleEndian.Uint32(b[i:]) != SigEnd {
			continue
		}
		commentLen := int(binary.LittleEndian.Uint16(b[i+20:]))
		if i+EndRecordLen+commentLen > len(b) {
			continue
		}
		e := EndRecord{
			DiskEntries:  binary.LittleEndian.Uint16(b[i+8:]),
			TotalEntries: binary.LittleEndian.Uint16(b[i+10:]),
			DirSize:      binary.LittleEndian.Uint32(b[i+12:]),
			DirOffset:    binary.LittleEndian.Uint32(b[i+16:]),
			Comment:      string(b[i+EndRecordLen : i+EndRecordLen+commentLen]),
		}
		if binary.LittleEndian.Uint16(b[i+4:]) != 0 || binary.LittleEndian.Uint16(b[i+6:]) != 0 {
			return EndRecord{}, 0, ErrMultidisk
		}
		return e, int64(i), nil
	}
	return EndRecord{}, 0, ErrNoEndRecord
}

// ReadCentralDir decodes every central directory header described by the
// end record, validating that the directory lies inside the archive and
// that its entry count matches.
func ReadCentralDir(b []byte, e EndRecord, endOffset int64) ([]CentralHeader, error) {
	if e.DiskEntries != e.TotalEntries {
		return nil, ErrInconsistent
	}
	dirStart := int64(e.DirOffset)
	dirEnd := dirStart + int64(e.DirSize)
	if dirEnd > endOffset || dirStart > dirEnd {
		return nil, ErrInconsistent
	}
	dir := b[dirStart:dirEnd]

	headers := make([]CentralHeader, 0, e.TotalEntries)
	for len(dir) > 0 {
		h, size, err := ParseCentral(dir)
		if err != nil {
			return nil, err
		}
		if int64(h.HeaderOffset) >= dirStart {
			return nil, ErrInconsistent
		}
		headers = append(headers, h)
		dir = dir[size:]
	}
	if len(headers) != int(e.TotalEntries) {
		return nil, ErrInconsistent
	}
	return headers, nil
}

// TimeToDos converts t to the two 16-bit DOS date/time fields, flooring to
// the format's two-second resolution. Times outside the representable
// 1980-2107 range clamp to the nearest bound.
func TimeToDos(t time.Time) (dosTime, dosDate uint16) {
	if t.Year() < 1980 {
		return 0, 1<<5 | 1 // 1980-01-01 00:00:00
	}
	if t.Year() > 2107 {
		// 2107-12-31 23:59:58
		return 23<<11 | 59<<5 | 29, 127<<9 | 12<<5 | 31
	}
	dosTime = uint16(t.Hour()<<11 | t.Minute()<<5 | t.Second()/2)
	dosDate = uint16((t.Year()-1980)<<9 | int(t.Month())<<5 | t.Day())
	return dosTime, dosDate
}

// DosToTime converts the DOS date/time fields to a local time.Time.
func DosToTime(dosTime, dosDate uint16) time.Time {
	return time.Date(
		1980+int(dosDate>>9),
		time.Month(dosDate>>5&0xF),
		int(dosDate&0x1F),
		int(dosTime>>11),
		int(dosTime>>5&0x3F),
		int(dosTime&0x1F)*2,
		0,
		time.Local,
	)
}
