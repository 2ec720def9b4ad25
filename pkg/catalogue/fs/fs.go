// Package fs implements a catalogue backend over a host directory tree.
//
// The backend exposes the host directory as a catalogue namespace rooted at
// "$". Host subdirectories appear as directories, regular files appear as
// files, and archives with a registered image extension (".zip" by default)
// appear as image containers whose contents can be walked like directories.
//
// File types are derived from host file extensions and date stamps from
// host modification times.
package fs

import (
	"archive/zip"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marmos91/treewalk/pkg/catalogue"
)

// RootName is the leaf name of the namespace root.
const RootName = "$"

// Catalogue is a read-only catalogue over a host directory.
//
// Each Read lists the addressed directory (or archive member) afresh, so
// cursors stay valid as long as the directory is not modified between
// reads, matching the Reader contract. It is safe for concurrent use once
// configured.
type Catalogue struct {
	root      string
	imageExts map[string]bool
	fileTypes map[string]int
}

// New creates a catalogue backend over the host directory at root.
func New(root string) (*Catalogue, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, hostError(err, root)
	}
	if !info.IsDir() {
		return nil, &catalogue.Error{
			Code:    catalogue.ErrNotDirectory,
			Message: "backend root is not a directory",
			Path:    root,
		}
	}
	return &Catalogue{
		root:      root,
		imageExts: map[string]bool{".zip": true},
		fileTypes: map[string]int{
			".txt":  catalogue.FileTypeText,
			".text": catalogue.FileTypeText,
			".obey": catalogue.FileTypeObey,
			".spr":  catalogue.FileTypeSprite,
		},
	}, nil
}

// SetFileType registers the catalogue file type reported for host files
// with the given extension (including the leading dot). Unregistered
// extensions report FileTypeData.
func (c *Catalogue) SetFileType(ext string, fileType int) {
	c.fileTypes[strings.ToLower(ext)] = fileType
}

// SetImageExt registers an additional host extension to expose as an image
// container. Only zip-format archives are supported.
func (c *Catalogue) SetImageExt(ext string) {
	c.imageExts[strings.ToLower(ext)] = true
}

// Read implements catalogue.Reader.
func (c *Catalogue) Read(cataloguePath, filter string, buf []byte, cursor uint32) (int, uint32, error) {
	entries, err := c.list(cataloguePath)
	if err != nil {
		return 0, cursor, err
	}
	return catalogue.PackEntries(entries, filter, buf, cursor, cataloguePath)
}

// list materializes the ordered entries of the addressed directory, either
// on the host filesystem or inside an archive.
func (c *Catalogue) list(cataloguePath string) ([]catalogue.Entry, error) {
	host, archive, inner, err := c.resolve(cataloguePath)
	if err != nil {
		return nil, err
	}
	if archive != "" {
		return c.listImage(archive, inner, cataloguePath)
	}
	return c.listDir(host, cataloguePath)
}

// resolve walks the catalogue path component by component against the host
// tree. When a component lands on an archive file the rest of the path is
// returned as an archive-internal path.
func (c *Catalogue) resolve(cataloguePath string) (host, archive, inner string, err error) {
	parts, err := splitPath(cataloguePath)
	if err != nil {
		return "", "", "", err
	}
	if parts[0] != RootName {
		return "", "", "", &catalogue.Error{
			Code:    catalogue.ErrNotFound,
			Message: "path is not rooted at " + RootName,
			Path:    cataloguePath,
		}
	}

	host = c.root
	for i, part := range parts[1:] {
		candidate := filepath.Join(host, part)
		info, err := os.Stat(candidate)
		if err != nil {
			return "", "", "", hostError(err, cataloguePath)
		}
		if info.IsDir() {
			host = candidate
			continue
		}
		if c.isImage(part) {
			// The rest of the path addresses archive members.
			return "", candidate, path.Join(parts[i+2:]...), nil
		}
		return "", "", "", &catalogue.Error{
			Code:    catalogue.ErrNotDirectory,
			Message: "path component is not a directory",
			Path:    cataloguePath,
		}
	}
	return host, "", "", nil
}

// splitPath breaks a catalogue path into components, rejecting empty
// components and host-directory escapes.
func splitPath(cataloguePath string) ([]string, error) {
	trimmed := strings.Trim(cataloguePath, string(catalogue.Separator))
	if trimmed == "" {
		return nil, &catalogue.Error{
			Code:    catalogue.ErrInvalidArgument,
			Message: "empty path",
		}
	}
	parts := strings.Split(trimmed, string(catalogue.Separator))
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return nil, &catalogue.Error{
				Code:    catalogue.ErrInvalidArgument,
				Message: "path has invalid component",
				Path:    cataloguePath,
			}
		}
	}
	return parts, nil
}

func (c *Catalogue) isImage(name string) bool {
	return c.imageExts[strings.ToLower(filepath.Ext(name))]
}

func (c *Catalogue) typeFor(name string) int {
	if t, ok := c.fileTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return catalogue.FileTypeData
}

// listDir lists a host directory in name order.
func (c *Catalogue) listDir(host, cataloguePath string) ([]catalogue.Entry, error) {
	dirents, err := os.ReadDir(host)
	if err != nil {
		return nil, hostError(err, cataloguePath)
	}

	entries := make([]catalogue.Entry, 0, len(dirents))
	for _, de := range dirents {
		info, err := de.Info()
		if err != nil {
			// The object vanished between listing and stat; skip it.
			if os.IsNotExist(err) {
				continue
			}
			return nil, hostError(err, cataloguePath)
		}

		name := de.Name()
		typ := catalogue.ObjectFile
		switch {
		case info.IsDir():
			typ = catalogue.ObjectDirectory
		case c.isImage(name):
			typ = catalogue.ObjectImage
		}

		load, exec := catalogue.EncodeLoadExec(c.typeFor(name), info.ModTime())
		entries = append(entries, catalogue.Entry{
			Load:   load,
			Exec:   exec,
			Length: clampLength(info.Size()),
			Attr:   attrFor(info.Mode()),
			Type:   typ,
			Name:   name,
		})
	}
	return entries, nil
}

// listImage lists one directory level inside a zip archive.
//
// Zip archives carry flat member paths, so intermediate directories may
// exist only implicitly; they are synthesized from the member names.
// Archives nested inside an image are delivered as plain files.
func (c *Catalogue) listImage(archive, inner, cataloguePath string) ([]catalogue.Entry, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, &catalogue.Error{
			Code:    catalogue.ErrIO,
			Message: "cannot open archive: " + err.Error(),
			Path:    cataloguePath,
		}
	}
	defer r.Close()

	prefix := ""
	if inner != "" {
		prefix = inner + "/"
	}

	found := inner == ""
	children := make(map[string]catalogue.Entry)
	for _, f := range r.File {
		member := strings.Trim(f.Name, "/")
		if member == "" || !validMember(member) {
			continue
		}
		if inner != "" {
			if member == inner {
				found = true
				if !f.FileInfo().IsDir() {
					return nil, &catalogue.Error{
						Code:    catalogue.ErrNotDirectory,
						Message: "archive member is not a directory",
						Path:    cataloguePath,
					}
				}
				continue
			}
			if !strings.HasPrefix(member, prefix) {
				continue
			}
			found = true
			member = member[len(prefix):]
		}

		child, rest, _ := strings.Cut(member, "/")
		if rest != "" || f.FileInfo().IsDir() {
			// A deeper member implies this level's directory.
			if _, ok := children[child]; !ok || rest == "" {
				load, exec := catalogue.EncodeLoadExec(catalogue.FileTypeData, f.Modified)
				children[child] = catalogue.Entry{
					Load: load,
					Exec: exec,
					Attr: 0x03,
					Type: catalogue.ObjectDirectory,
					Name: child,
				}
			}
			continue
		}

		load, exec := catalogue.EncodeLoadExec(c.typeFor(child), f.Modified)
		children[child] = catalogue.Entry{
			Load:   load,
			Exec:   exec,
			Length: clampLength(int64(f.UncompressedSize64)),
			Attr:   0x03,
			Type:   catalogue.ObjectFile,
			Name:   child,
		}
	}

	if !found {
		return nil, &catalogue.Error{
			Code:    catalogue.ErrNotFound,
			Message: "archive member not found",
			Path:    cataloguePath,
		}
	}

	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]catalogue.Entry, len(names))
	for i, name := range names {
		entries[i] = children[name]
	}
	return entries, nil
}

// validMember rejects archive member paths that could escape the namespace.
func validMember(member string) bool {
	for _, part := range strings.Split(member, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

func clampLength(size int64) uint32 {
	if size < 0 {
		return 0
	}
	if size > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(size)
}

// attrFor maps host permission bits onto catalogue attribute bits:
// bit 0 owner read, bit 1 owner write, bits 4 and 5 public read and write.
func attrFor(mode os.FileMode) uint32 {
	var attr uint32
	if mode&0400 != 0 {
		attr |= 0x01
	}
	if mode&0200 != 0 {
		attr |= 0x02
	}
	if mode&0004 != 0 {
		attr |= 0x10
	}
	if mode&0002 != 0 {
		attr |= 0x20
	}
	return attr
}

func hostError(err error, cataloguePath string) error {
	if os.IsNotExist(err) {
		return &catalogue.Error{
			Code:    catalogue.ErrNotFound,
			Message: "object not found",
			Path:    cataloguePath,
		}
	}
	return &catalogue.Error{
		Code:    catalogue.ErrIO,
		Message: err.Error(),
		Path:    cataloguePath,
	}
}
