// Package layer turns a compressed layer blob into a flat catalog of the
// filesystem entries it contains.
package layer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	multierror "github.com/hashicorp/go-multierror"
)

// UnknownName is used as Entry.Name when a path has no final component.
const UnknownName = "<unknown>"

// DecodeError is returned when the gzip or tar stream is corrupt.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding layer archive: %s", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Entry is one archive entry. The hierarchy of a layer is encoded in
// FullPath only.
type Entry struct {
	Name     string
	FullPath string
	Kind     Kind
}

// Catalog is the ordered list of entries of one layer, in archive order.
type Catalog []Entry

// Count returns the number of entries whose kind has the same type as k.
func (c Catalog) Count(k Kind) int {
	n := 0
	for _, e := range c {
		if sameKind(e.Kind, k) {
			n++
		}
	}

	return n
}

func sameKind(a, b Kind) bool {
	switch a.(type) {
	case RegularFile:
		_, ok := b.(RegularFile)
		return ok
	case Directory:
		_, ok := b.(Directory)
		return ok
	case Symlink:
		_, ok := b.(Symlink)
		return ok
	case Unsupported:
		_, ok := b.(Unsupported)
		return ok
	}

	return false
}

// FromArchiveBytes builds the catalog of a gzip compressed tar archive.
func FromArchiveBytes(b []byte) (Catalog, error) {
	return FromArchive(bytes.NewReader(b))
}

// FromArchive reads a gzip compressed tar stream entry by entry. Entries
// whose path or link name cannot be read are left out of the catalog. Any
// error of the stream itself aborts and no catalog is returned.
func FromArchive(r io.Reader) (Catalog, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	defer gz.Close()
	tr := tar.NewReader(gz)
	catalog := Catalog{}
	var skipped *multierror.Error
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, &DecodeError{Err: err}
		}

		e, err := entryFromHeader(hdr)
		if err != nil {
			skipped = multierror.Append(skipped, err)
			continue
		}

		catalog = append(catalog, e)
	}

	if skipped != nil {
		log.Debugf("skipped %d unreadable archive entries: %s", len(skipped.Errors), skipped)
	}

	return catalog, nil
}

func entryFromHeader(hdr *tar.Header) (Entry, error) {
	if hdr.Name == "" || !utf8.ValidString(hdr.Name) {
		return Entry{}, fmt.Errorf("unreadable path %q", hdr.Name)
	}

	fullPath := path.Join("/", hdr.Name)
	e := Entry{
		Name:     baseName(fullPath),
		FullPath: fullPath,
	}

	switch hdr.Typeflag {
	case tar.TypeReg:
		e.Kind = RegularFile{}
	case tar.TypeDir:
		e.Kind = Directory{}
	case tar.TypeSymlink:
		if hdr.Linkname == "" || !utf8.ValidString(hdr.Linkname) {
			return Entry{}, fmt.Errorf("unreadable link name of %s", fullPath)
		}

		e.Kind = Symlink{Target: hdr.Linkname}
	default:
		e.Kind = Unsupported{Typeflag: hdr.Typeflag}
	}

	return e, nil
}

func baseName(fullPath string) string {
	if fullPath == "/" {
		return UnknownName
	}

	name := path.Base(fullPath)
	if name == "" || name == "." || strings.Contains(name, "/") {
		return UnknownName
	}

	return name
}
