package catalogue

// PackEntries serves a pre-listed, ordered directory slice through the
// Reader cursor contract.
//
// The cursor is the index of the next entry to consider, so a backend that
// can materialize a directory's ordered entries gets the whole contract
// (filtering, overflow reporting, end sentinel) from this one call. path is
// only used to annotate errors.
//
// Files are delivered only when their name matches filter; directories and
// images are always delivered so the walker can decide about descending
// into them.
func PackEntries(entries []Entry, filter string, buf []byte, cursor uint32, path string) (int, uint32, error) {
	if cursor == CursorEnd {
		return 0, CursorEnd, &Error{
			Code:    ErrInvalidArgument,
			Message: "read past end of directory",
			Path:    path,
		}
	}
	if int(cursor) > len(entries) {
		return 0, cursor, &Error{
			Code:    ErrInvalidArgument,
			Message: "stale cursor",
			Path:    path,
		}
	}

	written := 0
	off := 0
	idx := int(cursor)
	for ; idx < len(entries); idx++ {
		e := entries[idx]
		if e.Type == ObjectFile && !Match(e.Name, filter) {
			continue
		}
		size := RecordSize(len(e.Name))
		if off+size > len(buf) {
			if written == 0 {
				return 0, cursor, &Error{
					Code:    ErrBufferTooSmall,
					Message: "buffer too small for entry",
					Path:    path,
				}
			}
			break
		}
		n, err := PutRecord(buf[off:], e)
		if err != nil {
			return 0, cursor, err
		}
		off += n
		written++
	}

	next := uint32(idx)
	if idx >= len(entries) {
		next = CursorEnd
	}
	return written, next, nil
}
