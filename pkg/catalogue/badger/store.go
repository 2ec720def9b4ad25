// Package badger implements a persistent catalogue backend on BadgerDB.
//
// The store keeps a catalogue namespace in an embedded key-value database,
// so a tree built programmatically survives restarts and can be walked
// again without the original host data. It is the persistent counterpart of
// the in-memory backend and serves the same Reader contract.
package badger

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/marmos91/treewalk/pkg/catalogue"
)

// Key Namespace Design
// ====================
//
// BadgerDB is a flat key-value store, so the catalogue tree is mapped onto
// two prefixed namespaces:
//
//	Data Type        Prefix  Key Format                   Value
//	=================================================================
//	Object entry     "e:"    e:<path>                     entryValue (XDR)
//	Directory child  "c:"    c:<dirPath>\x00<childName>   entryValue (XDR)
//
// The child namespace is denormalized: one key per child, so listing a
// directory is a single range scan over "c:<dirPath>\x00". The NUL
// separator sorts before every legal name byte, which keeps the scans of
// "disc" and "disc2" disjoint, and makes Badger's key order equal to
// lexicographic child-name order, the order the Reader contract promises.
//
// Entry values are XDR-encoded. The encoding is fixed-width for the five
// word fields, schema-stable, and shared with the record format the walker
// parses, so a stored value can never round-trip into a name/framing
// disagreement silently.
type entryValue struct {
	Load   uint32
	Exec   uint32
	Length uint32
	Attr   uint32
	Type   uint32
}

const (
	entryPrefix = "e:"
	childPrefix = "c:"
	childSep    = "\x00"
)

// Store is a catalogue backend persisted in BadgerDB.
//
// Reads run in Badger view transactions and are safe for concurrent use;
// tree mutations take a store-wide lock so multi-key updates stay atomic
// with respect to each other.
type Store struct {
	db *badger.DB
	mu sync.RWMutex
}

// Config holds the options for opening a store.
type Config struct {
	// Path is the directory where BadgerDB keeps its files. Ignored when
	// InMemory is set.
	Path string

	// InMemory runs the database entirely in memory. Intended for tests
	// and scratch catalogues.
	InMemory bool

	// BadgerOptions overrides the database options entirely when non-nil.
	BadgerOptions *badger.Options
}

// Open opens (or creates) a catalogue store.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.BadgerOptions != nil {
		opts = *cfg.BadgerOptions
	} else if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
		opts = opts.WithLoggingLevel(badger.WARNING)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
		// Catalogue values are a few words each; compression and large
		// caches buy nothing here.
		opts = opts.WithLoggingLevel(badger.WARNING)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &catalogue.Error{
			Code:    catalogue.ErrIO,
			Message: "cannot open catalogue database: " + err.Error(),
			Path:    cfg.Path,
		}
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func entryKey(path string) []byte {
	return []byte(entryPrefix + path)
}

func childKey(dir, name string) []byte {
	return []byte(childPrefix + dir + childSep + name)
}

func encodeValue(e catalogue.Entry) ([]byte, error) {
	var buf bytes.Buffer
	v := entryValue{
		Load:   e.Load,
		Exec:   e.Exec,
		Length: e.Length,
		Attr:   e.Attr,
		Type:   uint32(e.Type),
	}
	if _, err := xdr.Marshal(&buf, &v); err != nil {
		return nil, &catalogue.Error{
			Code:    catalogue.ErrIO,
			Message: "cannot encode entry: " + err.Error(),
			Path:    e.Name,
		}
	}
	return buf.Bytes(), nil
}

func decodeValue(raw []byte, path string) (entryValue, error) {
	var v entryValue
	if _, err := xdr.Unmarshal(bytes.NewReader(raw), &v); err != nil {
		return entryValue{}, &catalogue.Error{
			Code:    catalogue.ErrMalformedRecord,
			Message: "stored entry is corrupt: " + err.Error(),
			Path:    path,
		}
	}
	return v, nil
}

func dirShaped(typ uint32) bool {
	t := catalogue.ObjectType(typ)
	return t == catalogue.ObjectDirectory || t == catalogue.ObjectImage
}

func splitPath(path string) ([]string, error) {
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

// put stores the entry at path, creating intermediate directories as
// needed, in one transaction.
func (s *Store) put(path string, e catalogue.Entry) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.Update(func(txn *badger.Txn) error {
		dir := ""
		for _, part := range parts[:len(parts)-1] {
			p := joined(dir, part)
			item, err := txn.Get(entryKey(p))
			switch {
			case err == badger.ErrKeyNotFound:
				load, exec := catalogue.EncodeLoadExec(catalogue.FileTypeData, time.Unix(0, 0).UTC())
				parent := catalogue.Entry{
					Load: load,
					Exec: exec,
					Attr: 0x03,
					Type: catalogue.ObjectDirectory,
					Name: part,
				}
				if err := writeEntry(txn, dir, p, parent); err != nil {
					return err
				}
			case err != nil:
				return ioError(err, path)
			default:
				v, err := itemValue(item, p)
				if err != nil {
					return err
				}
				if !dirShaped(v.Type) {
					return &catalogue.Error{
						Code:    catalogue.ErrNotDirectory,
						Message: "path component is not a directory",
						Path:    path,
					}
				}
			}
			dir = p
		}

		leaf := parts[len(parts)-1]
		e.Name = leaf
		p := joined(dir, leaf)

		// Re-declaring an existing directory keeps its children; the
		// entry words are simply refreshed. Replacing a directory with a
		// file would strand its child keys, so that is rejected.
		if item, err := txn.Get(entryKey(p)); err == nil {
			v, err := itemValue(item, p)
			if err != nil {
				return err
			}
			if dirShaped(v.Type) && e.Type == catalogue.ObjectFile {
				return &catalogue.Error{
					Code:    catalogue.ErrInvalidArgument,
					Message: "cannot replace a directory with a file",
					Path:    path,
				}
			}
		} else if err != badger.ErrKeyNotFound {
			return ioError(err, path)
		}
		return writeEntry(txn, dir, p, e)
	})
	return err
}

func joined(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + string(catalogue.Separator) + name
}

func writeEntry(txn *badger.Txn, dir, path string, e catalogue.Entry) error {
	raw, err := encodeValue(e)
	if err != nil {
		return err
	}
	if err := txn.Set(entryKey(path), raw); err != nil {
		return ioError(err, path)
	}
	if err := txn.Set(childKey(dir, e.Name), raw); err != nil {
		return ioError(err, path)
	}
	return nil
}

func itemValue(item *badger.Item, path string) (entryValue, error) {
	var v entryValue
	err := item.Value(func(raw []byte) error {
		var derr error
		v, derr = decodeValue(raw, path)
		return derr
	})
	if err != nil {
		return entryValue{}, err
	}
	return v, nil
}

func ioError(err error, path string) error {
	var ce *catalogue.Error
	if errors.As(err, &ce) {
		return err
	}
	return &catalogue.Error{
		Code:    catalogue.ErrIO,
		Message: err.Error(),
		Path:    path,
	}
}

// MkDir creates a directory at path, creating parents as needed.
func (s *Store) MkDir(path string) error {
	load, exec := catalogue.EncodeLoadExec(catalogue.FileTypeData, time.Unix(0, 0).UTC())
	return s.put(path, catalogue.Entry{
		Load: load,
		Exec: exec,
		Attr: 0x03,
		Type: catalogue.ObjectDirectory,
	})
}

// MkImage creates an image container at path, creating parents as needed.
func (s *Store) MkImage(path string) error {
	load, exec := catalogue.EncodeLoadExec(catalogue.FileTypeData, time.Unix(0, 0).UTC())
	return s.put(path, catalogue.Entry{
		Load: load,
		Exec: exec,
		Attr: 0x03,
		Type: catalogue.ObjectImage,
	})
}

// PutFile creates a date-stamped file at path, creating parents as needed.
func (s *Store) PutFile(path string, fileType int, length uint32, mtime time.Time) error {
	load, exec := catalogue.EncodeLoadExec(fileType, mtime)
	return s.put(path, catalogue.Entry{
		Load:   load,
		Exec:   exec,
		Length: length,
		Attr:   0x03,
		Type:   catalogue.ObjectFile,
	})
}

// PutEntry stores an arbitrary entry at path, creating parent directories
// as needed. The entry's Name field is replaced by the path's leaf.
func (s *Store) PutEntry(path string, e catalogue.Entry) error {
	return s.put(path, e)
}

// Read implements catalogue.Reader.
//
// Cursors are indexes into the directory's child scan, so they stay valid
// as long as the directory is not modified between reads, matching the
// Reader contract.
func (s *Store) Read(path, filter string, buf []byte, cursor uint32) (int, uint32, error) {
	parts, err := splitPath(path)
	if err != nil {
		return 0, cursor, err
	}
	dir := strings.Join(parts, string(catalogue.Separator))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []catalogue.Entry
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(dir))
		if err == badger.ErrKeyNotFound {
			return &catalogue.Error{
				Code:    catalogue.ErrNotFound,
				Message: "object not found",
				Path:    path,
			}
		}
		if err != nil {
			return ioError(err, path)
		}
		v, err := itemValue(item, dir)
		if err != nil {
			return err
		}
		if !dirShaped(v.Type) {
			return &catalogue.Error{
				Code:    catalogue.ErrNotDirectory,
				Message: "not a directory",
				Path:    path,
			}
		}

		prefix := []byte(childPrefix + dir + childSep)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := string(item.Key()[len(prefix):])
			cv, err := itemValue(item, joined(dir, name))
			if err != nil {
				return err
			}
			entries = append(entries, catalogue.Entry{
				Load:   cv.Load,
				Exec:   cv.Exec,
				Length: cv.Length,
				Attr:   cv.Attr,
				Type:   catalogue.ObjectType(cv.Type),
				Name:   name,
			})
		}
		return nil
	})
	if err != nil {
		return 0, cursor, err
	}
	return catalogue.PackEntries(entries, filter, buf, cursor, path)
}
