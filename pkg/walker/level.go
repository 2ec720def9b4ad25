package walker

import "github.com/marmos91/treewalk/pkg/catalogue"

// level is the per-directory state record stacked on entry and popped on
// exhaustion.
//
// The record buffer holds packed catalogue records as delivered by the
// backend; the current record is addressed by its byte offset rather than a
// pointer, so buffer growth re-homes it for free.
type level struct {
	// pathLen is the iterator path-buffer length at the moment this level
	// was pushed: the length of this directory's own path, excluding the
	// leaf of its current child.
	pathLen int

	// cursor is the backend continuation cursor for this directory.
	// catalogue.CursorEnd means the backend has nothing more to deliver.
	cursor uint32

	// buf holds the packed records; used is the number of valid bytes.
	buf  []byte
	used int

	// remaining counts unread records in buf, including the current one.
	// cur is the byte offset of the current record, -1 when there is none;
	// leafLen caches the current record's name length.
	remaining int
	cur       int
	leafLen   int
}

// currentRecord returns the bytes of the current record. Only valid while
// remaining > 0.
func (lv *level) currentRecord() []byte {
	return lv.buf[lv.cur:lv.used]
}

// leaf returns the current record's leaf-name bytes.
func (lv *level) leaf() []byte {
	return catalogue.RecordName(lv.currentRecord(), lv.leafLen)
}

// objectType returns the current record's object type.
func (lv *level) objectType() catalogue.ObjectType {
	_, _, _, _, typ := catalogue.RecordFields(lv.currentRecord())
	return typ
}

// advanceWithin steps to the next record in the buffer. With the last
// record consumed the level transiently has no current entry; the caller
// refills or pops before the state becomes observable.
func (lv *level) advanceWithin() error {
	lv.remaining--
	if lv.remaining == 0 {
		lv.cur = -1
		lv.leafLen = 0
		return nil
	}
	lv.cur += catalogue.RecordSize(lv.leafLen)
	_, nameLen, err := catalogue.ScanRecord(lv.buf[lv.cur:lv.used])
	if err != nil {
		return err
	}
	lv.leafLen = nameLen
	return nil
}

// compact moves the unread records to the front of the buffer so a refill
// can append after them. Records are aligned, so the retained prefix stays
// aligned.
func (lv *level) compact() {
	if lv.remaining == 0 || lv.cur < 0 {
		lv.used = 0
		lv.cur = -1
		return
	}
	if lv.cur == 0 {
		return
	}
	kept := lv.used - lv.cur
	copy(lv.buf, lv.buf[lv.cur:lv.used])
	lv.used = kept
	lv.cur = 0
}
