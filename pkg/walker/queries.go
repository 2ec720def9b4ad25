package walker

import (
	"github.com/marmos91/treewalk/pkg/catalogue"
)

// writeName copies s into dst as a NUL-terminated string, truncating to
// fit. The terminator always lands inside dst and nothing is written past
// it. The return value is the untruncated length of s, so callers can
// detect truncation and resize.
func writeName(dst []byte, s string) int {
	if len(dst) > 0 {
		k := len(s)
		if k > len(dst)-1 {
			k = len(dst) - 1
		}
		copy(dst, s[:k])
		dst[k] = 0
	}
	return len(s)
}

// Leaf writes the current entry's leaf name into dst, NUL-terminated and
// truncated to fit, and returns the name's full length. On a drained
// iterator it writes an empty name and returns 0.
func (it *Iterator) Leaf(dst []byte) int {
	return writeName(dst, it.view.leaf)
}

// Path writes the current entry's full path, root included, into dst under
// the same truncation rules as Leaf.
func (it *Iterator) Path(dst []byte) int {
	return writeName(dst, it.view.path)
}

// SubPath writes the current entry's path relative to the iterator root
// into dst under the same truncation rules as Leaf. For a top-level entry
// this equals the leaf name.
func (it *Iterator) SubPath(dst []byte) int {
	return writeName(dst, it.subPath())
}

func (it *Iterator) subPath() string {
	if len(it.view.path) <= it.rootLen {
		return ""
	}
	return it.view.path[it.rootLen+1:]
}

// LeafString returns the current entry's leaf name, or "" when drained.
func (it *Iterator) LeafString() string {
	return it.view.leaf
}

// PathString returns the current entry's full path, or "" when drained.
func (it *Iterator) PathString() string {
	return it.view.path
}

// SubPathString returns the current entry's path relative to the iterator
// root, or "" when drained.
func (it *Iterator) SubPathString() string {
	return it.subPath()
}

// Info reports the current entry's object type and, when out is non-nil,
// fills in its decoded metadata. Directories and images report a directory
// file type (application when the leaf starts with '!') and a zero length
// regardless of what the backend stored. On a drained iterator Info
// returns ObjectNotFound and leaves out untouched.
func (it *Iterator) Info(out *catalogue.Info) catalogue.ObjectType {
	if !it.view.valid {
		return catalogue.ObjectNotFound
	}
	if out != nil {
		fileType, stamp, _ := catalogue.DecodeLoadExec(it.view.load, it.view.exec)
		length := it.view.length
		if it.view.typ == catalogue.ObjectDirectory || it.view.typ == catalogue.ObjectImage {
			length = 0
			fileType = catalogue.FileTypeDirectory
			if len(it.view.leaf) > 0 && it.view.leaf[0] == '!' {
				fileType = catalogue.FileTypeApplication
			}
		}
		*out = catalogue.Info{
			DateStamp: stamp,
			FileType:  fileType,
			Length:    length,
			Attr:      it.view.attr,
		}
	}
	return it.view.typ
}
