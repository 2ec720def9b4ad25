package catalogue

import "time"

// Separator is the path separator of the catalogue namespace.
//
// Every backend exposes a single rooted namespace in which directory
// components are joined by this character. The walker appends and truncates
// path components with it in lock-step with traversal depth.
const Separator = '/'

// ObjectType identifies the kind of filing-system object a catalogue
// entry describes.
type ObjectType uint32

const (
	// ObjectNotFound indicates no object. It is never stored in a record;
	// it is only returned by queries against a drained iterator.
	ObjectNotFound ObjectType = 0

	// ObjectFile is a regular file.
	ObjectFile ObjectType = 1

	// ObjectDirectory is a directory.
	ObjectDirectory ObjectType = 2

	// ObjectImage is a container object (an archive or similar) that the
	// backend exposes with directory-like semantics. Traversal into images
	// is controlled separately from traversal into directories.
	ObjectImage ObjectType = 3
)

func (t ObjectType) String() string {
	switch t {
	case ObjectNotFound:
		return "not-found"
	case ObjectFile:
		return "file"
	case ObjectDirectory:
		return "directory"
	case ObjectImage:
		return "image"
	default:
		return "unknown"
	}
}

// File type values carried in the load word of date-stamped entries.
//
// A file type is a 12-bit integer. The pseudo-types Directory and
// Application are never stored in records; they are synthesized by the
// Info query for directory-shaped entries.
const (
	// FileTypeUntyped is the sentinel reported for entries whose load word
	// carries a raw load address instead of a type and date stamp.
	FileTypeUntyped = -1

	// FileTypeDirectory is the pseudo-type reported for directories and images.
	FileTypeDirectory = 0x1000

	// FileTypeApplication is the pseudo-type reported for directories and
	// images whose leaf name begins with '!'.
	FileTypeApplication = 0x2000

	FileTypeText   = 0xFFF
	FileTypeData   = 0xFFD
	FileTypeSprite = 0xFF9
	FileTypeObey   = 0xFEB
	FileTypeSquash = 0xFCA
)

// DateStamp is the 5-byte timestamp extracted from a date-stamped load/exec
// pair: the low byte of the load word followed by the four bytes of the exec
// word in little-endian order. The combined 40-bit value counts centiseconds
// since 00:00:00 on 1 January 1900.
type DateStamp [5]byte

// stampEpoch is the zero point of the 40-bit centisecond clock.
var stampEpoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// IsZero reports whether the stamp is the all-zero value used for
// entries that carry no date stamp.
func (s DateStamp) IsZero() bool {
	return s == DateStamp{}
}

// Time converts the stamp to a time.Time in UTC.
func (s DateStamp) Time() time.Time {
	cs := uint64(s[0])<<32 |
		uint64(s[4])<<24 | uint64(s[3])<<16 | uint64(s[2])<<8 | uint64(s[1])
	return stampEpoch.Add(time.Duration(cs) * 10 * time.Millisecond)
}

// Entry is the decoded form of one catalogue record.
//
// Backends build entries and encode them with PutRecord or AppendRecord;
// the walker parses records in place and only materializes an Entry at the
// API boundary.
type Entry struct {
	// Load is the load word: either a raw load address or, when the top
	// twelve bits are all set, a file type and the high byte of the date stamp.
	Load uint32

	// Exec is the exec word: either a raw exec address or the low four
	// bytes of the date stamp.
	Exec uint32

	// Length is the object length in bytes. Zero for directories and images.
	Length uint32

	// Attr carries the host-defined access attribute bits, passed through
	// verbatim.
	Attr uint32

	// Type is the object type.
	Type ObjectType

	// Name is the leaf name of the object, without any path components.
	Name string
}

// Info is the decoded per-entry information exposed by the walker's Info
// query.
type Info struct {
	// DateStamp is the entry's timestamp, or the zero value when the entry
	// is not date-stamped.
	DateStamp DateStamp

	// FileType is the entry's 12-bit file type, FileTypeUntyped for
	// un-stamped entries, or one of the Directory/Application pseudo-types
	// for directory-shaped entries.
	FileType int

	// Length is the entry length in bytes (0 for directories and images).
	Length uint32

	// Attr carries the host-defined access attribute bits.
	Attr uint32
}

// DecodeLoadExec extracts the file type and date stamp from a load/exec
// pair. An entry is date-stamped iff the top twelve bits of the load word
// are all set; stamped reports that condition. For un-stamped entries the
// file type is FileTypeUntyped and the stamp is zero.
func DecodeLoadExec(load, exec uint32) (fileType int, stamp DateStamp, stamped bool) {
	if load>>20 != 0xFFF {
		return FileTypeUntyped, DateStamp{}, false
	}
	stamp[0] = byte(load)
	stamp[1] = byte(exec)
	stamp[2] = byte(exec >> 8)
	stamp[3] = byte(exec >> 16)
	stamp[4] = byte(exec >> 24)
	return int((load >> 8) & 0xFFF), stamp, true
}

// EncodeLoadExec builds a date-stamped load/exec pair from a file type and
// a timestamp. Times before the 1900 epoch are clamped to it; the stamp
// wraps after the 40-bit centisecond range.
func EncodeLoadExec(fileType int, t time.Time) (load, exec uint32) {
	d := t.Sub(stampEpoch)
	if d < 0 {
		d = 0
	}
	cs := uint64(d/(10*time.Millisecond)) & 0xFFFFFFFFFF
	load = 0xFFF00000 | uint32(fileType&0xFFF)<<8 | uint32(cs>>32)
	exec = uint32(cs)
	return load, exec
}
