package walker

// pathBuffer is the live textual path of the walk.
//
// It is appended to when the iterator descends and truncated when it
// unwinds, in lock-step with depth changes. It supports exactly one level
// of undo: after an append or truncate, undo restores the string that
// existed immediately before that operation.
//
// Truncation only shrinks the logical length; the removed bytes stay in the
// backing array, which is what makes undo of a truncate free. An append
// records the previous length and only writes beyond it, so undo of an
// append is a length restore too. Growth goes through the iterator's
// allocator and copies just the logical contents, which is safe because
// undo never reaches back past the most recent operation.
type pathBuffer struct {
	buf     []byte
	prevLen int
	hasUndo bool
}

// init sets the buffer to the given root text. Any prior contents and undo
// state are discarded.
func (p *pathBuffer) init(root string, alloc allocFunc) error {
	b, err := alloc(len(root))
	if err != nil {
		return oomError("path buffer allocation failed")
	}
	copy(b, root)
	p.buf = b
	p.prevLen = 0
	p.hasUndo = false
	return nil
}

func (p *pathBuffer) len() int {
	return len(p.buf)
}

func (p *pathBuffer) string() string {
	return string(p.buf)
}

// bytes returns the live contents. The slice aliases the buffer and is
// invalidated by the next mutating operation.
func (p *pathBuffer) bytes() []byte {
	return p.buf
}

// grow ensures capacity for n total bytes. On failure the buffer is
// unchanged.
func (p *pathBuffer) grow(n int, alloc allocFunc) error {
	if n <= cap(p.buf) {
		return nil
	}
	newCap := 2 * cap(p.buf)
	if newCap < n {
		newCap = n
	}
	nb, err := alloc(newCap)
	if err != nil {
		return oomError("path buffer growth failed")
	}
	copy(nb, p.buf)
	p.buf = nb[:len(p.buf)]
	return nil
}

// append adds text to the end of the buffer. On failure the buffer is
// unchanged and the previous undo state is preserved.
func (p *pathBuffer) append(text string, alloc allocFunc) error {
	old := len(p.buf)
	if err := p.grow(old+len(text), alloc); err != nil {
		return err
	}
	p.buf = append(p.buf, text...)
	p.prevLen = old
	p.hasUndo = true
	return nil
}

// appendSeparated adds text preceded by sep, omitting the separator when
// the buffer is empty.
func (p *pathBuffer) appendSeparated(sep byte, text string, alloc allocFunc) error {
	old := len(p.buf)
	extra := len(text)
	if old > 0 {
		extra++
	}
	if err := p.grow(old+extra, alloc); err != nil {
		return err
	}
	if old > 0 {
		p.buf = append(p.buf, sep)
	}
	p.buf = append(p.buf, text...)
	p.prevLen = old
	p.hasUndo = true
	return nil
}

// truncate shortens the buffer to n bytes. Truncation never fails; the
// removed tail remains recoverable by one undo.
func (p *pathBuffer) truncate(n int) {
	if n > len(p.buf) {
		return
	}
	p.prevLen = len(p.buf)
	p.hasUndo = true
	p.buf = p.buf[:n]
}

// undo restores the string that existed immediately before the most recent
// append or truncate. A second undo without an intervening mutation is a
// no-op.
func (p *pathBuffer) undo() {
	if !p.hasUndo {
		return
	}
	p.buf = p.buf[:p.prevLen]
	p.hasUndo = false
}

// destroy releases the backing storage.
func (p *pathBuffer) destroy() {
	p.buf = nil
	p.prevLen = 0
	p.hasUndo = false
}
