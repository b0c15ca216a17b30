package compose

import (
	"cmp"
	"errors"
	"iter"
	"slices"

	"github.com/brettbedarf/unifs"
	"github.com/brettbedarf/unifs/glob"
	"github.com/brettbedarf/unifs/upath"
)

// Child is one entry of a directory listing.
type Child struct {
	Name  string
	IsDir bool
}

// Lister returns the children of dir and whether dir exists at all.
type Lister func(dir upath.Path) ([]Child, bool, error)

// ListDir reads the direct children of dir from fs. A missing directory is
// reported through the bool, not as an error.
func ListDir(fs unifs.FileSystem, dir upath.Path) ([]Child, bool, error) {
	var out []Child
	for _, target := range []unifs.SearchTarget{unifs.TargetDirectory, unifs.TargetFile} {
		for p, err := range fs.EnumeratePaths(dir, "*", unifs.TopDirectoryOnly, target) {
			if err != nil {
				if errors.Is(err, unifs.ErrDirectoryNotFound) {
					return nil, false, nil
				}
				return nil, false, err
			}
			out = append(out, Child{Name: p.Name(), IsDir: target == unifs.TargetDirectory})
		}
	}
	return out, true, nil
}

// Merge unions listings ordered by priority. The first listing that has a
// name decides its kind. The result is sorted by name.
func Merge(lists ...[]Child) []Child {
	seen := make(map[string]bool)
	var out []Child
	for _, l := range lists {
		for _, c := range l {
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b Child) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// Walk enumerates the tree described by list the same way engines
// enumerate their own trees: depth first, children sorted by name,
// directories listed lazily as the walk reaches them.
func Walk(p upath.Path, pattern string, option unifs.SearchOption, target unifs.SearchTarget, list Lister) iter.Seq2[upath.Path, error] {
	return func(yield func(upath.Path, error) bool) {
		root, m, err := glob.Parse(p, pattern)
		if err != nil {
			yield(upath.Null, unifs.NewPathError("readdir", p, err))
			return
		}
		children, ok, err := list(root)
		switch {
		case err != nil:
			yield(upath.Null, err)
			return
		case !ok:
			yield(upath.Null, unifs.PathErrorf("readdir", root, unifs.ErrDirectoryNotFound, "no such directory"))
			return
		}
		walk(root, children, m, option == unifs.AllDirectories, target, list, yield)
	}
}

func walk(dir upath.Path, children []Child, m *glob.Pattern, recursive bool, target unifs.SearchTarget, list Lister, yield func(upath.Path, error) bool) bool {
	for _, c := range children {
		p, err := upath.Join(dir, c.Name)
		if err != nil {
			continue
		}
		if target.Accepts(c.IsDir) && m.Match(c.Name) {
			if !yield(p, nil) {
				return false
			}
		}
		if !recursive || !c.IsDir {
			continue
		}
		sub, ok, err := list(p)
		if err != nil {
			yield(upath.Null, err)
			return false
		}
		if !ok {
			// removed since it was listed
			continue
		}
		if !walk(p, sub, m, recursive, target, list, yield) {
			return false
		}
	}
	return true
}
