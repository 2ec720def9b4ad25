package catalogue

// Cursor values for Reader.Read.
const (
	// CursorStart begins enumeration at the head of a directory.
	CursorStart uint32 = 0

	// CursorEnd is the sentinel cursor reported when a directory has no
	// further entries to deliver. Callers never pass it back to Read.
	CursorEnd uint32 = 0xFFFFFFFF
)

// Reader is the bulk-read primitive every catalogue backend implements.
//
// Read fills buf with zero or more packed entry records (see record.go for
// the format) for the directory or image at path, starting at the position
// identified by cursor, and returns the number of records written together
// with the continuation cursor for the next call.
//
// Contract:
//
//   - cursor == CursorStart starts at the directory head; next == CursorEnd
//     signals that no entries remain after this call. Any other cursor value
//     is an opaque continuation token issued by a previous Read on the same
//     path; backends reject tokens they did not issue with ErrInvalidArgument.
//
//   - Read may return zero entries with next != CursorEnd when every entry
//     in the current batch was filtered out. Callers loop until they make
//     progress or reach CursorEnd.
//
//   - If buf cannot hold even one pending entry, Read returns
//     ErrBufferTooSmall and buf contents are undefined. The caller grows the
//     buffer and retries with the same cursor.
//
//   - The filter is a wildcard pattern under Match semantics and applies to
//     file entries only. Directory and image entries are always delivered,
//     whether or not they match, so that traversal can descend into
//     non-matching directories; the walker suppresses surfacing them.
//     An empty filter matches everything.
//
// Enumeration order within a directory is backend-defined but must be
// stable across cursors for an unmodified directory. Results under
// concurrent modification are implementation-defined.
type Reader interface {
	Read(path string, filter string, buf []byte, cursor uint32) (entries int, next uint32, err error)
}
