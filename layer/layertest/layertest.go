// Package layertest builds gzip compressed tar archives for tests.
package layertest

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"time"
)

// Counts of the entries in the archive returned by Fixture.
const (
	FixtureEntries     = 495
	FixtureDirectories = 50
	FixtureSymlinks    = 50
	FixtureHardlinks   = 50
	FixtureFifos       = 49
	FixtureFiles       = 296
)

// File is one entry to write into an archive. Content is only written for
// regular files.
type File struct {
	Header  tar.Header
	Content []byte
}

// Archive writes files into a gzip compressed tar archive. It panics on
// error, which can only happen for invalid headers.
func Archive(files ...File) []byte {
	buf := &bytes.Buffer{}
	gz := gzip.NewWriter(buf)
	tw := tar.NewWriter(gz)
	for _, f := range files {
		hdr := f.Header
		if hdr.ModTime.IsZero() {
			hdr.ModTime = time.Date(2020, 10, 22, 2, 19, 24, 0, time.UTC)
		}

		if hdr.Mode == 0 {
			hdr.Mode = 0644
		}

		if hdr.Typeflag == tar.TypeReg {
			hdr.Size = int64(len(f.Content))
		}

		err := tw.WriteHeader(&hdr)
		if err != nil {
			panic(err)
		}

		if hdr.Typeflag == tar.TypeReg && len(f.Content) > 0 {
			_, err = tw.Write(f.Content)
			if err != nil {
				panic(err)
			}
		}
	}

	err := tw.Close()
	if err != nil {
		panic(err)
	}

	err = gz.Close()
	if err != nil {
		panic(err)
	}

	return buf.Bytes()
}

// Dir returns a directory entry.
func Dir(name string) File {
	return File{Header: tar.Header{Name: name, Typeflag: tar.TypeDir, Mode: 0755}}
}

// Reg returns a regular file entry.
func Reg(name string, content string) File {
	return File{Header: tar.Header{Name: name, Typeflag: tar.TypeReg}, Content: []byte(content)}
}

// Symlink returns a symbolic link entry.
func Symlink(name, target string) File {
	return File{Header: tar.Header{Name: name, Typeflag: tar.TypeSymlink, Linkname: target, Mode: 0777}}
}

// Hardlink returns a hard link entry.
func Hardlink(name, target string) File {
	return File{Header: tar.Header{Name: name, Typeflag: tar.TypeLink, Linkname: target}}
}

// Fifo returns a named pipe entry.
func Fifo(name string) File {
	return File{Header: tar.Header{Name: name, Typeflag: tar.TypeFifo}}
}

// FixtureFileList returns the entries of the archive returned by Fixture. Every
// group of ten entries is a directory, a symlink, a hard link, six files and
// a FIFO; the last group stops after its second file.
func FixtureFileList() []File {
	files := make([]File, 0, FixtureEntries)
	for i := 0; i < FixtureEntries; i++ {
		group := i / 10
		dir := fmt.Sprintf("usr/share/g%02d/", group)
		switch m := i % 10; m {
		case 0:
			files = append(files, Dir(dir))
		case 1:
			files = append(files, Symlink(dir+"current", "file-3"))
		case 2:
			files = append(files, Hardlink(dir+"hard", dir+"file-3"))
		case 9:
			files = append(files, Fifo(dir+"pipe"))
		default:
			files = append(files, Reg(fmt.Sprintf("%sfile-%d", dir, m), fmt.Sprintf("content of %d\n", i)))
		}
	}

	return files
}

// Fixture returns a layer archive with FixtureEntries entries.
func Fixture() []byte {
	return Archive(FixtureFileList()...)
}
