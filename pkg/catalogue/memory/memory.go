package memory

import (
	"sort"
	"strings"
	"time"

	"github.com/marmos91/treewalk/pkg/catalogue"
)

// Catalogue is an in-memory catalogue backend.
//
// It holds a tree of entries built programmatically with MkDir, MkImage,
// PutFile and PutEntry, and serves it through the catalogue.Reader contract.
// It is the reference backend: walker behavior is specified against it, and
// embedders use it to iterate synthetic trees without touching storage.
//
// Children are enumerated in lexicographic name order. Cursors are indexes
// into that ordering, so enumeration is stable as long as the tree is not
// modified mid-walk (results under concurrent modification are
// implementation-defined, matching the Reader contract).
//
// Catalogue is not safe for concurrent mutation; build the tree first, then
// read from it.
type Catalogue struct {
	root *node

	// maxBatch limits how many children one Read call examines (matching
	// and filtered alike). Zero means unlimited. Tests use small batches to
	// exercise cursor continuation, including the zero-entries-live-cursor
	// case where a whole batch is filtered out.
	maxBatch int
}

type node struct {
	entry    catalogue.Entry
	children map[string]*node
}

func (n *node) dirShaped() bool {
	return n.entry.Type == catalogue.ObjectDirectory || n.entry.Type == catalogue.ObjectImage
}

// sortedChildren returns the child nodes in lexicographic name order.
func (n *node) sortedChildren() []*node {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*node, len(names))
	for i, name := range names {
		out[i] = n.children[name]
	}
	return out
}

// New creates an empty in-memory catalogue.
func New() *Catalogue {
	return &Catalogue{
		root: &node{
			entry:    catalogue.Entry{Type: catalogue.ObjectDirectory},
			children: make(map[string]*node),
		},
	}
}

// SetMaxBatch caps the number of children a single Read call examines.
// Zero restores unlimited batches.
func (c *Catalogue) SetMaxBatch(n int) {
	c.maxBatch = n
}

// split breaks a catalogue path into its components. Leading and trailing
// separators are tolerated; empty components are not.
func split(path string) ([]string, error) {
	trimmed := strings.Trim(path, string(catalogue.Separator))
	if trimmed == "" {
		return nil, &catalogue.Error{
			Code:    catalogue.ErrInvalidArgument,
			Message: "empty path",
		}
	}
	parts := strings.Split(trimmed, string(catalogue.Separator))
	for _, p := range parts {
		if p == "" {
			return nil, &catalogue.Error{
				Code:    catalogue.ErrInvalidArgument,
				Message: "path has empty component",
				Path:    path,
			}
		}
	}
	return parts, nil
}

// resolve walks the tree to the node at path.
func (c *Catalogue) resolve(path string) (*node, error) {
	parts, err := split(path)
	if err != nil {
		return nil, err
	}
	cur := c.root
	for _, part := range parts {
		if !cur.dirShaped() {
			return nil, &catalogue.Error{
				Code:    catalogue.ErrNotDirectory,
				Message: "path component is not a directory",
				Path:    path,
			}
		}
		next, ok := cur.children[part]
		if !ok {
			return nil, &catalogue.Error{
				Code:    catalogue.ErrNotFound,
				Message: "object not found",
				Path:    path,
			}
		}
		cur = next
	}
	return cur, nil
}

// put creates the node at path, creating intermediate directories as
// needed. Intermediate directories inherit a plain date-stamped entry.
func (c *Catalogue) put(path string, e catalogue.Entry) error {
	parts, err := split(path)
	if err != nil {
		return err
	}
	cur := c.root
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur.children[part]
		if !ok {
			load, exec := catalogue.EncodeLoadExec(catalogue.FileTypeData, time.Unix(0, 0).UTC())
			next = &node{
				entry: catalogue.Entry{
					Load: load,
					Exec: exec,
					Attr: 0x03,
					Type: catalogue.ObjectDirectory,
					Name: part,
				},
				children: make(map[string]*node),
			}
			cur.children[part] = next
		}
		if !next.dirShaped() {
			return &catalogue.Error{
				Code:    catalogue.ErrNotDirectory,
				Message: "path component is not a directory",
				Path:    path,
			}
		}
		cur = next
	}
	leaf := parts[len(parts)-1]
	e.Name = leaf
	n := &node{entry: e}
	if e.Type == catalogue.ObjectDirectory || e.Type == catalogue.ObjectImage {
		n.children = make(map[string]*node)
	}
	if existing, ok := cur.children[leaf]; ok && existing.dirShaped() && n.dirShaped() {
		// Re-declaring a directory keeps its children.
		existing.entry = e
		return nil
	}
	cur.children[leaf] = n
	return nil
}

// MkDir creates a directory at path, creating parents as needed.
func (c *Catalogue) MkDir(path string) error {
	load, exec := catalogue.EncodeLoadExec(catalogue.FileTypeData, time.Unix(0, 0).UTC())
	return c.put(path, catalogue.Entry{
		Load: load,
		Exec: exec,
		Attr: 0x03,
		Type: catalogue.ObjectDirectory,
	})
}

// MkImage creates an image container at path, creating parents as needed.
func (c *Catalogue) MkImage(path string) error {
	load, exec := catalogue.EncodeLoadExec(catalogue.FileTypeData, time.Unix(0, 0).UTC())
	return c.put(path, catalogue.Entry{
		Load: load,
		Exec: exec,
		Attr: 0x03,
		Type: catalogue.ObjectImage,
	})
}

// PutFile creates a date-stamped file at path with the given type and
// length, creating parent directories as needed.
func (c *Catalogue) PutFile(path string, fileType int, length uint32, mtime time.Time) error {
	load, exec := catalogue.EncodeLoadExec(fileType, mtime)
	return c.put(path, catalogue.Entry{
		Load:   load,
		Exec:   exec,
		Length: length,
		Attr:   0x03,
		Type:   catalogue.ObjectFile,
	})
}

// PutEntry stores an arbitrary entry at path, creating parent directories
// as needed. The entry's Name field is replaced by the path's leaf.
func (c *Catalogue) PutEntry(path string, e catalogue.Entry) error {
	return c.put(path, e)
}

// Read implements catalogue.Reader.
func (c *Catalogue) Read(path, filter string, buf []byte, cursor uint32) (int, uint32, error) {
	if cursor == catalogue.CursorEnd {
		return 0, catalogue.CursorEnd, &catalogue.Error{
			Code:    catalogue.ErrInvalidArgument,
			Message: "read past end of directory",
			Path:    path,
		}
	}
	dir, err := c.resolve(path)
	if err != nil {
		return 0, cursor, err
	}
	if !dir.dirShaped() {
		return 0, cursor, &catalogue.Error{
			Code:    catalogue.ErrNotDirectory,
			Message: "not a directory",
			Path:    path,
		}
	}

	children := dir.sortedChildren()
	if int(cursor) > len(children) {
		return 0, cursor, &catalogue.Error{
			Code:    catalogue.ErrInvalidArgument,
			Message: "stale cursor",
			Path:    path,
		}
	}

	written := 0
	examined := 0
	off := 0
	idx := int(cursor)
	for ; idx < len(children); idx++ {
		if c.maxBatch > 0 && examined == c.maxBatch {
			break
		}
		child := children[idx]
		examined++
		if child.entry.Type == catalogue.ObjectFile && !catalogue.Match(child.entry.Name, filter) {
			continue
		}
		size := catalogue.RecordSize(len(child.entry.Name))
		if off+size > len(buf) {
			if written == 0 {
				return 0, cursor, &catalogue.Error{
					Code:    catalogue.ErrBufferTooSmall,
					Message: "buffer too small for entry",
					Path:    path,
				}
			}
			break
		}
		n, err := catalogue.PutRecord(buf[off:], child.entry)
		if err != nil {
			return 0, cursor, err
		}
		off += n
		written++
	}

	next := uint32(idx)
	if idx >= len(children) {
		next = catalogue.CursorEnd
	}
	return written, next, nil
}
