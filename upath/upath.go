// Package upath implements the uniform path value used by every unifs engine.
//
// A Path is an immutable, normalized, slash separated string. It is either
// absolute ("/a/b") or relative ("a/b"), and has an explicit unset state
// ([Null]) that is distinct from the empty relative path ([Empty]).
package upath

import (
	"errors"
	"fmt"
	"strings"
)

// Separator is the only directory separator used by uniform paths.
const Separator = '/'

// ErrInvalidPath is returned when a path text cannot be normalized.
var ErrInvalidPath = errors.New("invalid path")

// Path is a normalized uniform path. The zero value is [Null].
type Path struct {
	s   string
	set bool
}

var (
	// Null is the unset path.
	Null = Path{}
	// Empty is the empty relative path.
	Empty = Path{set: true}
	// Root is the absolute root path "/".
	Root = Path{s: "/", set: true}
)

// Parse normalizes text into a Path.
//
// Backslashes are treated as separators, repeated separators are collapsed,
// "." segments are dropped and ".." segments are resolved against the segment
// before them. An absolute path may not ascend above "/". Segments made only of
// three or more dots are rejected.
func Parse(text string) (Path, error) {
	s, err := normalize(text)
	if err != nil {
		return Null, err
	}
	return Path{s: s, set: true}, nil
}

// MustParse is like Parse but panics on invalid input. Intended for literals.
func MustParse(text string) Path {
	p, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return p
}

func normalize(text string) (string, error) {
	if text == "" {
		return "", nil
	}
	text = strings.ReplaceAll(text, "\\", "/")
	abs := text[0] == Separator

	segs := strings.Split(text, "/")
	out := make([]string, 0, len(segs))
	for _, seg := range segs {
		switch {
		case seg == "" || seg == ".":
			continue
		case seg == "..":
			if len(out) > 0 && out[len(out)-1] != ".." {
				out = out[:len(out)-1]
				continue
			}
			if abs {
				return "", fmt.Errorf("%w: %q ascends above the root", ErrInvalidPath, text)
			}
			out = append(out, seg)
		case strings.Trim(seg, ".") == "":
			return "", fmt.Errorf("%w: %q contains segment %q, only . and .. are allowed", ErrInvalidPath, text, seg)
		default:
			out = append(out, seg)
		}
	}

	joined := strings.Join(out, "/")
	if abs {
		return "/" + joined, nil
	}
	return joined, nil
}

// Combine joins rel onto base. An absolute rel replaces base entirely.
func Combine(base, rel Path) (Path, error) {
	if base.IsNull() || rel.IsNull() {
		return Null, fmt.Errorf("%w: cannot combine a null path", ErrInvalidPath)
	}
	if rel.IsAbsolute() || base.IsEmpty() {
		return rel, nil
	}
	if rel.IsEmpty() {
		return base, nil
	}
	return Parse(base.s + "/" + rel.s)
}

// Join parses each part and combines it onto base in order.
func Join(base Path, parts ...string) (Path, error) {
	cur := base
	for _, part := range parts {
		p, err := Parse(part)
		if err != nil {
			return Null, err
		}
		if cur, err = Combine(cur, p); err != nil {
			return Null, err
		}
	}
	return cur, nil
}

// String returns the normalized text. Null renders as "".
func (p Path) String() string { return p.s }

// IsNull reports whether p is the unset path.
func (p Path) IsNull() bool { return !p.set }

// IsEmpty reports whether p is the empty relative path.
func (p Path) IsEmpty() bool { return p.set && p.s == "" }

// IsAbsolute reports whether p starts at the root.
func (p Path) IsAbsolute() bool { return p.set && strings.HasPrefix(p.s, "/") }

// IsRelative reports whether p is set and not absolute.
func (p Path) IsRelative() bool { return p.set && !p.IsAbsolute() }

// IsRoot reports whether p is "/".
func (p Path) IsRoot() bool { return p.set && p.s == "/" }

// Name returns the last segment, or "" for the root, empty and null paths.
func (p Path) Name() string {
	if p.s == "" || p.s == "/" {
		return ""
	}
	return p.s[strings.LastIndexByte(p.s, Separator)+1:]
}

// Directory returns the parent path. The root and null paths have no parent
// and return Null; a single relative segment returns Empty.
func (p Path) Directory() Path {
	if !p.set || p.s == "/" || p.s == "" {
		return Null
	}
	i := strings.LastIndexByte(p.s, Separator)
	switch {
	case i < 0:
		return Empty
	case i == 0:
		return Root
	default:
		return Path{s: p.s[:i], set: true}
	}
}

// NameWithoutExtension returns Name without its last extension.
func (p Path) NameWithoutExtension() string {
	name := p.Name()
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// ExtensionWithDot returns the last extension of Name including the dot,
// or "" when there is none.
func (p Path) ExtensionWithDot() string {
	name := p.Name()
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return name[i:]
}

// ChangeExtension replaces the extension of the last segment. An empty ext
// removes the extension.
func (p Path) ChangeExtension(ext string) (Path, error) {
	if p.Name() == "" {
		return p, nil
	}
	name := p.NameWithoutExtension()
	if ext != "" {
		if ext[0] != '.' {
			ext = "." + ext
		}
		name += ext
	}
	dir := p.Directory()
	leaf, err := Parse(name)
	if err != nil {
		return Null, err
	}
	if leaf.Name() != name {
		return Null, fmt.Errorf("%w: extension %q contains a separator", ErrInvalidPath, ext)
	}
	return Combine(dir, leaf)
}

// Split returns the segments of p. The root and empty paths have none.
func (p Path) Split() []string {
	s := strings.TrimPrefix(p.s, "/")
	if s == "" {
		return nil
	}
	return strings.Split(s, "/")
}

// ToRelative strips the leading separator from an absolute path.
func (p Path) ToRelative() Path {
	if !p.IsAbsolute() {
		return p
	}
	return Path{s: p.s[1:], set: true}
}

// ToAbsolute roots a relative path. It returns Null when the relative path
// starts with "..".
func (p Path) ToAbsolute() Path {
	if !p.set || p.IsAbsolute() {
		return p
	}
	abs, err := Parse("/" + p.s)
	if err != nil {
		return Null
	}
	return abs
}

// IsInDirectory reports whether p is strictly inside dir. When recursive is
// false only direct children match.
func (p Path) IsInDirectory(dir Path, recursive bool) bool {
	if !p.set || !dir.set || p.IsAbsolute() != dir.IsAbsolute() {
		return false
	}
	var rest string
	switch {
	case dir.s == "/":
		if p.s == "/" {
			return false
		}
		rest = p.s[1:]
	case dir.s == "":
		if p.s == "" {
			return false
		}
		rest = p.s
	default:
		if !strings.HasPrefix(p.s, dir.s+"/") {
			return false
		}
		rest = p.s[len(dir.s)+1:]
	}
	return recursive || !strings.ContainsRune(rest, Separator)
}

// Rebase moves p from below the absolute directory from to below to. It
// returns false when p is neither from nor inside it.
func Rebase(p, from, to Path) (Path, bool) {
	if p == from {
		return to, true
	}
	if !p.IsInDirectory(from, true) {
		return Null, false
	}
	rest := p.s[len(from.s):]
	if from.s == "/" {
		rest = p.s
	}
	if to.s == "/" {
		return Path{s: rest, set: true}, true
	}
	return Path{s: to.s + rest, set: true}, true
}

// Equal compares two paths ordinally.
func (p Path) Equal(q Path) bool { return p == q }

// EqualFold compares two paths ignoring case.
func (p Path) EqualFold(q Path) bool {
	return p.set == q.set && strings.EqualFold(p.s, q.s)
}

// Compare orders paths ordinally. Null sorts before every set path.
func Compare(a, b Path) int {
	if a.set != b.set {
		if a.set {
			return 1
		}
		return -1
	}
	return strings.Compare(a.s, b.s)
}

// CompareIgnoreCase orders paths ignoring case.
func CompareIgnoreCase(a, b Path) int {
	if a.set != b.set {
		return Compare(a, b)
	}
	return strings.Compare(strings.ToLower(a.s), strings.ToLower(b.s))
}

// MarshalText implements encoding.TextMarshaler.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Path) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
