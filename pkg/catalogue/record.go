package catalogue

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// Raw entry record layout.
//
// Backends deposit entries packed back-to-back in the caller's buffer in a
// fixed binary format that is parsed in place:
//
//	offset  0  load word        (uint32, little-endian)
//	offset  4  exec word        (uint32, little-endian)
//	offset  8  length           (uint32, little-endian)
//	offset 12  attributes       (uint32, little-endian)
//	offset 16  object type      (uint32, little-endian)
//	offset 20  leaf name        (NUL-terminated)
//	           zero padding to a 4-byte boundary
//
// The size of a record is therefore WordAlign(RecordNameOffset + len(name) + 1)
// and the next record starts immediately after the padding.
const (
	recordLoadOffset = 0
	recordExecOffset = 4
	recordLenOffset  = 8
	recordAttrOffset = 12
	recordTypeOffset = 16

	// RecordNameOffset is the byte offset of the NUL-terminated leaf name
	// within a record.
	RecordNameOffset = 20
)

// WordAlign rounds n up to the next 4-byte boundary.
func WordAlign(n int) int {
	return (n + 3) &^ 3
}

// RecordSize returns the encoded size of a record whose leaf name is
// nameLen bytes long, including the NUL terminator and trailing padding.
func RecordSize(nameLen int) int {
	return WordAlign(RecordNameOffset + nameLen + 1)
}

// ScanRecord validates the record at the start of buf and returns its
// encoded size and leaf-name length. No allocation is performed.
//
// A record whose header overruns the buffer, whose name is not terminated,
// whose padding would extend past the buffer, or whose padding bytes are
// not zero is reported as ErrMalformedRecord.
func ScanRecord(buf []byte) (size, nameLen int, err error) {
	if len(buf) < RecordNameOffset+1 {
		return 0, 0, &Error{Code: ErrMalformedRecord, Message: "record header truncated"}
	}
	nul := bytes.IndexByte(buf[RecordNameOffset:], 0)
	if nul < 0 {
		return 0, 0, &Error{Code: ErrMalformedRecord, Message: "record name not terminated"}
	}
	nameLen = nul
	if nameLen == 0 {
		return 0, 0, &Error{Code: ErrMalformedRecord, Message: "record has empty name"}
	}
	size = RecordSize(nameLen)
	if size > len(buf) {
		return 0, 0, &Error{Code: ErrMalformedRecord, Message: "record padding overruns buffer"}
	}
	for i := RecordNameOffset + nameLen + 1; i < size; i++ {
		if buf[i] != 0 {
			return 0, 0, &Error{Code: ErrMalformedRecord, Message: "record padding not zero"}
		}
	}
	return size, nameLen, nil
}

// RecordFields reads the fixed-offset words of the record at the start of
// rec. The caller must have validated the record with ScanRecord.
func RecordFields(rec []byte) (load, exec, length, attr uint32, typ ObjectType) {
	load = binary.LittleEndian.Uint32(rec[recordLoadOffset:])
	exec = binary.LittleEndian.Uint32(rec[recordExecOffset:])
	length = binary.LittleEndian.Uint32(rec[recordLenOffset:])
	attr = binary.LittleEndian.Uint32(rec[recordAttrOffset:])
	typ = ObjectType(binary.LittleEndian.Uint32(rec[recordTypeOffset:]))
	return
}

// RecordName returns the leaf-name bytes of the record at the start of rec.
// nameLen must be the length reported by ScanRecord. The returned slice
// aliases rec.
func RecordName(rec []byte, nameLen int) []byte {
	return rec[RecordNameOffset : RecordNameOffset+nameLen]
}

// PutRecord encodes e into the front of dst and returns the encoded size.
//
// If dst cannot hold the record, ErrBufferTooSmall is returned so that
// backends can propagate the overflow signal directly. Names must be
// non-empty and free of NUL and separator characters.
func PutRecord(dst []byte, e Entry) (int, error) {
	if e.Name == "" {
		return 0, &Error{Code: ErrInvalidArgument, Message: "entry name is empty"}
	}
	if strings.IndexByte(e.Name, 0) >= 0 || strings.IndexByte(e.Name, Separator) >= 0 {
		return 0, &Error{Code: ErrInvalidArgument, Message: "entry name contains reserved character", Path: e.Name}
	}
	size := RecordSize(len(e.Name))
	if size > len(dst) {
		return 0, &Error{Code: ErrBufferTooSmall, Message: "buffer too small for entry", Path: e.Name}
	}
	binary.LittleEndian.PutUint32(dst[recordLoadOffset:], e.Load)
	binary.LittleEndian.PutUint32(dst[recordExecOffset:], e.Exec)
	binary.LittleEndian.PutUint32(dst[recordLenOffset:], e.Length)
	binary.LittleEndian.PutUint32(dst[recordAttrOffset:], e.Attr)
	binary.LittleEndian.PutUint32(dst[recordTypeOffset:], uint32(e.Type))
	n := copy(dst[RecordNameOffset:], e.Name)
	for i := RecordNameOffset + n; i < size; i++ {
		dst[i] = 0
	}
	return size, nil
}

// AppendRecord appends the encoded form of e to buf and returns the
// extended slice. It is a convenience for building record streams in tests
// and loaders; backends filling caller-supplied buffers use PutRecord.
func AppendRecord(buf []byte, e Entry) ([]byte, error) {
	size := RecordSize(len(e.Name))
	off := len(buf)
	buf = append(buf, make([]byte, size)...)
	if _, err := PutRecord(buf[off:], e); err != nil {
		return buf[:off], err
	}
	return buf, nil
}

// ParseRecord decodes the record at the start of buf into an Entry and
// returns its encoded size.
func ParseRecord(buf []byte) (Entry, int, error) {
	size, nameLen, err := ScanRecord(buf)
	if err != nil {
		return Entry{}, 0, err
	}
	load, exec, length, attr, typ := RecordFields(buf)
	return Entry{
		Load:   load,
		Exec:   exec,
		Length: length,
		Attr:   attr,
		Type:   typ,
		Name:   string(RecordName(buf, nameLen)),
	}, size, nil
}
