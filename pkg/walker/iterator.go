package walker

import (
	"strings"

	"github.com/marmos91/treewalk/pkg/catalogue"
)

// Flags select which container kinds the iterator descends into.
type Flags uint32

const (
	// RecurseDirs descends into directories.
	RecurseDirs Flags = 1 << iota

	// RecurseImages descends into image containers.
	RecurseImages
)

// DefaultBufferSize is the initial size of each level's record buffer.
// Buffers grow geometrically when the backend reports overflow.
const DefaultBufferSize = 256

// Options configure a new Iterator.
type Options struct {
	// Pattern filters the leaf names the iterator surfaces, under
	// catalogue.Match semantics. Empty matches everything.
	Pattern string

	// Flags select recursion into directories and images.
	Flags Flags

	// InitialBufferSize is the starting size of each level's record
	// buffer. Zero means DefaultBufferSize.
	InitialBufferSize int

	// MaxBufferSize caps record-buffer growth per level. Growth past the
	// cap surfaces as an out-of-memory error and leaves the iterator's
	// position unchanged. Zero means unlimited.
	MaxBufferSize int
}

// Iterator is a single-step depth-first iterator over a rooted catalogue
// subtree.
//
// Entries are yielded lazily, one per Advance, in the order the backend
// delivers them within each directory; children are visited immediately
// after the parent entry that referenced them and before the parent's
// later siblings. A failed Advance leaves the observable position
// unchanged so the caller may retry.
//
// An Iterator is a non-shareable value: it is not safe for concurrent use.
type Iterator struct {
	reader  catalogue.Reader
	pattern string
	flags   Flags

	root    string
	rootLen int

	path   pathBuffer
	levels []*level

	// view is the surfaced position: a snapshot of the most recently
	// yielded entry. Queries read from it, never from the mutable level
	// state, which is what keeps them stable across failed Advance calls.
	view entryView

	alloc   allocFunc
	bufInit int
	bufMax  int
}

type entryView struct {
	valid  bool
	leaf   string
	path   string
	load   uint32
	exec   uint32
	length uint32
	attr   uint32
	typ    catalogue.ObjectType
}

// New creates an iterator positioned on the first matching entry under
// root. If the root directory yields no entries the iterator starts
// drained. On error no iterator is created.
func New(reader catalogue.Reader, root string, opts Options) (*Iterator, error) {
	return newIterator(reader, root, opts, defaultAlloc)
}

// newIterator is the allocation-seam constructor; tests substitute a
// failing allocator.
func newIterator(reader catalogue.Reader, root string, opts Options, alloc allocFunc) (*Iterator, error) {
	if reader == nil {
		return nil, &catalogue.Error{Code: catalogue.ErrInvalidArgument, Message: "nil reader"}
	}
	root = strings.TrimRight(root, string(catalogue.Separator))
	if root == "" {
		return nil, &catalogue.Error{Code: catalogue.ErrInvalidArgument, Message: "empty root path"}
	}
	bufInit := opts.InitialBufferSize
	if bufInit <= 0 {
		bufInit = DefaultBufferSize
	}
	bufMax := opts.MaxBufferSize
	if bufMax > 0 && bufMax < bufInit {
		bufMax = bufInit
	}
	it := &Iterator{
		reader:  reader,
		pattern: opts.Pattern,
		flags:   opts.Flags,
		root:    root,
		rootLen: len(root),
		alloc:   alloc,
		bufInit: bufInit,
		bufMax:  bufMax,
	}
	if err := it.path.init(root, alloc); err != nil {
		return nil, err
	}
	if err := it.start(); err != nil {
		return nil, err
	}
	return it, nil
}

// start enumerates the root directory and settles on the first matching
// entry. An empty root leaves the iterator drained without keeping the
// empty level.
func (it *Iterator) start() error {
	buf, err := it.alloc(it.bufInit)
	if err != nil {
		return oomError("level buffer allocation failed")
	}
	lv := &level{pathLen: it.rootLen, cursor: catalogue.CursorStart, buf: buf, cur: -1}
	if err := it.refill(lv); err != nil {
		return err
	}
	if lv.remaining == 0 {
		return nil
	}
	it.levels = append(it.levels, lv)
	return it.settle()
}

func (it *Iterator) top() *level {
	return it.levels[len(it.levels)-1]
}

// IsDrained reports whether the iterator has no current object. Further
// Advance calls on a drained iterator are no-ops.
func (it *Iterator) IsDrained() bool {
	return !it.view.valid
}

// Advance moves to the next matching entry in depth-first order. On a
// drained iterator it is a no-op. On error the observable position is
// unchanged and the caller may retry.
func (it *Iterator) Advance() error {
	if len(it.levels) == 0 {
		return nil
	}
	if err := it.step(); err != nil {
		return err
	}
	return it.settle()
}

// settle surfaces the current entry if its leaf matches the pattern,
// stepping past non-matching entries (still descending into recurseable
// ones) until a match is found or the walk drains.
func (it *Iterator) settle() error {
	for len(it.levels) > 0 {
		top := it.top()
		if catalogue.Match(string(top.leaf()), it.pattern) {
			it.captureView()
			return nil
		}
		if err := it.step(); err != nil {
			return err
		}
	}
	it.view = entryView{}
	return nil
}

// step performs one state-machine transition: descend into the current
// entry, advance within the level, refill it, or unwind.
func (it *Iterator) step() error {
	top := it.top()
	if it.recurseable(top) {
		pushed, err := it.push(top)
		if err != nil {
			return err
		}
		if pushed {
			return nil
		}
		// The pushed directory was empty and has been discarded. The
		// recurseable entry is consumed; continue with in-level
		// advancement at this level.
	}
	if top.remaining >= 2 {
		return top.advanceWithin()
	}
	if top.cursor != catalogue.CursorEnd {
		if err := it.refill(top); err != nil {
			return err
		}
		if top.remaining >= 2 {
			return top.advanceWithin()
		}
	}
	return it.unwind()
}

func (it *Iterator) recurseable(lv *level) bool {
	switch lv.objectType() {
	case catalogue.ObjectDirectory:
		return it.flags&RecurseDirs != 0
	case catalogue.ObjectImage:
		return it.flags&RecurseImages != 0
	}
	return false
}

// push enters the current entry of parent. It returns false with a nil
// error when the entered directory turned out empty; the level is
// discarded and the path restored. On error the path and parent are left
// unchanged.
func (it *Iterator) push(parent *level) (bool, error) {
	if err := it.path.appendSeparated(catalogue.Separator, string(parent.leaf()), it.alloc); err != nil {
		return false, err
	}
	buf, err := it.alloc(it.bufInit)
	if err != nil {
		it.path.undo()
		return false, oomError("level buffer allocation failed")
	}
	lv := &level{pathLen: it.path.len(), cursor: catalogue.CursorStart, buf: buf, cur: -1}
	if err := it.refill(lv); err != nil {
		it.path.undo()
		return false, err
	}
	if lv.remaining == 0 {
		it.path.undo()
		return false, nil
	}
	it.levels = append(it.levels, lv)
	return true, nil
}

// refill tops up lv's record buffer from the backend, looping until at
// least one new entry arrives, the cursor reaches its end, or an error
// occurs. Overflow reports from the backend trigger geometric buffer
// growth and a retry at the same cursor. The iterator path must equal lv's
// directory path when refill is called.
func (it *Iterator) refill(lv *level) error {
	lv.compact()
	for {
		if lv.cursor == catalogue.CursorEnd {
			return nil
		}
		n, next, err := it.reader.Read(it.path.string(), it.pattern, lv.buf[lv.used:], lv.cursor)
		if err != nil {
			if catalogue.IsBufferTooSmall(err) {
				if gerr := it.growLevel(lv); gerr != nil {
					return gerr
				}
				continue
			}
			return err
		}
		lv.cursor = next
		if n == 0 {
			continue
		}
		off := lv.used
		for i := 0; i < n; i++ {
			size, nameLen, serr := catalogue.ScanRecord(lv.buf[off:])
			if serr != nil {
				return serr
			}
			if lv.cur < 0 {
				lv.cur = off
				lv.leafLen = nameLen
			}
			off += size
		}
		lv.used = off
		lv.remaining += n
		return nil
	}
}

// growLevel doubles lv's record buffer, honoring the configured cap. The
// current offset survives growth unchanged since records keep their
// positions in the new buffer.
func (it *Iterator) growLevel(lv *level) error {
	newSize := 2 * len(lv.buf)
	if newSize == 0 {
		newSize = it.bufInit
	}
	if it.bufMax > 0 {
		if len(lv.buf) >= it.bufMax {
			return oomError("catalogue buffer limit exceeded")
		}
		if newSize > it.bufMax {
			newSize = it.bufMax
		}
	}
	nb, err := it.alloc(newSize)
	if err != nil {
		return oomError("catalogue buffer growth failed")
	}
	copy(nb, lv.buf[:lv.used])
	lv.buf = nb
	return nil
}

// unwind pops exhausted levels, starting from the ancestor below the top,
// until an ancestor with a next sibling is found or the walk drains.
// Ancestors with live cursors are refilled against their own directory
// path (the live path is truncated for the read and restored afterwards).
// If a refill fails every level survives and the error propagates.
func (it *Iterator) unwind() error {
	idx := len(it.levels) - 2
	for idx >= 0 {
		a := it.levels[idx]
		if a.remaining >= 2 {
			break
		}
		if a.cursor != catalogue.CursorEnd {
			it.path.truncate(a.pathLen)
			err := it.refill(a)
			it.path.undo()
			if err != nil {
				return err
			}
			if a.remaining >= 2 {
				break
			}
		}
		idx--
	}
	if idx < 0 {
		it.levels = it.levels[:0]
		it.path.truncate(it.rootLen)
		return nil
	}
	a := it.levels[idx]
	if err := a.advanceWithin(); err != nil {
		return err
	}
	it.levels = it.levels[:idx+1]
	it.path.truncate(a.pathLen)
	return nil
}

func (it *Iterator) captureView() {
	top := it.top()
	leaf := string(top.leaf())
	load, exec, length, attr, typ := catalogue.RecordFields(top.currentRecord())
	it.view = entryView{
		valid:  true,
		leaf:   leaf,
		path:   it.path.string() + string(catalogue.Separator) + leaf,
		load:   load,
		exec:   exec,
		length: length,
		attr:   attr,
		typ:    typ,
	}
}

// Reset restarts the walk from the root. On failure the prior position and
// stack are preserved intact and the error is returned.
func (it *Iterator) Reset() error {
	savedPath, savedLevels, savedView := it.path, it.levels, it.view
	it.path = pathBuffer{}
	it.levels = nil
	it.view = entryView{}
	err := it.path.init(it.root, it.alloc)
	if err == nil {
		err = it.start()
	}
	if err != nil {
		it.path, it.levels, it.view = savedPath, savedLevels, savedView
		return err
	}
	return nil
}

// Close releases everything the iterator owns. It is idempotent and safe
// on a nil iterator; a closed iterator behaves as drained.
func (it *Iterator) Close() {
	if it == nil {
		return
	}
	it.levels = nil
	it.path.destroy()
	it.view = entryView{}
}
