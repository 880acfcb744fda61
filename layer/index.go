package layer

import (
	"path"
	"sort"
)

// Index groups a catalog by parent directory. It is derived from a Catalog
// on demand and never modifies it.
type Index struct {
	children map[string][]Entry
	entries  map[string]Entry
}

// NewIndex builds an Index. When a path occurs more than once the last
// entry wins, as it does when the archive is extracted. Parent directories
// without an entry of their own are added to the hierarchy as Directory
// entries but cannot be looked up.
func NewIndex(c Catalog) *Index {
	idx := &Index{
		children: map[string][]Entry{},
		entries:  map[string]Entry{},
	}

	for _, e := range c {
		if e.FullPath == "/" {
			continue
		}

		idx.entries[e.FullPath] = e
	}

	implied := map[string]bool{}
	for p, e := range idx.entries {
		parent := path.Dir(p)
		idx.children[parent] = append(idx.children[parent], e)
		for d := parent; d != "/"; d = path.Dir(d) {
			if _, ok := idx.entries[d]; ok || implied[d] {
				break
			}

			implied[d] = true
		}
	}

	for d := range implied {
		parent := path.Dir(d)
		idx.children[parent] = append(idx.children[parent], Entry{Name: path.Base(d), FullPath: d, Kind: Directory{}})
	}

	for _, entries := range idx.children {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].FullPath < entries[j].FullPath
		})
	}

	return idx
}

// Children returns the entries directly below dir, sorted by path.
func (i *Index) Children(dir string) []Entry {
	return i.children[path.Clean("/"+dir)]
}

// Roots returns the entries directly below /.
func (i *Index) Roots() []Entry {
	return i.Children("/")
}

// Lookup returns the entry stored at p.
func (i *Index) Lookup(p string) (Entry, bool) {
	e, ok := i.entries[path.Clean("/"+p)]
	return e, ok
}

// Dirs returns every directory that has at least one child.
func (i *Index) Dirs() []string {
	dirs := make([]string, 0, len(i.children))
	for d := range i.children {
		dirs = append(dirs, d)
	}

	sort.Strings(dirs)
	return dirs
}

// Walk visits every entry depth first, starting below /.
func (i *Index) Walk(fn func(e Entry, depth int)) {
	i.walk("/", 0, fn)
}

func (i *Index) walk(dir string, depth int, fn func(e Entry, depth int)) {
	for _, e := range i.children[dir] {
		fn(e, depth)
		i.walk(e.FullPath, depth+1, fn)
	}
}
