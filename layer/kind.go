package layer

import "fmt"

// Kind classifies an archive entry. It is implemented by RegularFile,
// Directory, Symlink and Unsupported only.
type Kind interface {
	fmt.Stringer
	isKind()
}

type RegularFile struct{}

type Directory struct{}

// Symlink carries the link name recorded in the archive.
type Symlink struct {
	Target string
}

// Unsupported is any other entry type: hard links, devices, FIFOs and so on.
// Typeflag is the tar type flag of the entry.
type Unsupported struct {
	Typeflag byte
}

func (RegularFile) isKind() {}
func (Directory) isKind()   {}
func (Symlink) isKind()     {}
func (Unsupported) isKind() {}

func (RegularFile) String() string { return "file" }
func (Directory) String() string   { return "dir" }
func (s Symlink) String() string   { return "symlink" }

func (u Unsupported) String() string {
	return fmt.Sprintf("unsupported(%q)", u.Typeflag)
}
