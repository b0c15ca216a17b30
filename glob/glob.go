// Package glob compiles enumeration search patterns into name matchers.
//
// A pattern applies to a single path segment. "*" matches any run of
// characters except the separator and "?" matches exactly one. Any directory
// prefix in the pattern is split off by [Parse] and folded into the search
// root.
package glob

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/brettbedarf/unifs/upath"
)

// Pattern matches entry names.
type Pattern struct {
	raw   string
	all   bool
	exact string
	re    *regexp.Regexp
}

// Parse splits pattern into a search root below dir and a compiled leaf matcher.
// "a/b/*.txt" searched from "/x" returns "/x/a/b" and a matcher for "*.txt".
func Parse(dir upath.Path, pattern string) (upath.Path, *Pattern, error) {
	pattern = strings.ReplaceAll(pattern, "\\", "/")
	leaf := pattern
	if i := strings.LastIndexByte(pattern, '/'); i >= 0 {
		prefix := pattern[:i]
		leaf = pattern[i+1:]
		if strings.HasPrefix(pattern, "/") {
			return upath.Null, nil, fmt.Errorf("%w: search pattern %q must be relative", upath.ErrInvalidPath, pattern)
		}
		if strings.ContainsAny(prefix, "*?") {
			return upath.Null, nil, fmt.Errorf("%w: wildcards are only allowed in the last segment of %q", upath.ErrInvalidPath, pattern)
		}
		rel, err := upath.Parse(prefix)
		if err != nil {
			return upath.Null, nil, err
		}
		if dir, err = upath.Combine(dir, rel); err != nil {
			return upath.Null, nil, err
		}
	}
	m, err := Compile(leaf)
	if err != nil {
		return upath.Null, nil, err
	}
	return dir, m, nil
}

// Compile builds a matcher for a single segment pattern.
func Compile(leaf string) (*Pattern, error) {
	if strings.ContainsRune(leaf, '/') {
		return nil, fmt.Errorf("%w: pattern %q spans more than one segment", upath.ErrInvalidPath, leaf)
	}
	p := &Pattern{raw: leaf}
	switch {
	case leaf == "" || leaf == "*" || leaf == "*.*":
		p.all = true
		return p, nil
	case !strings.ContainsAny(leaf, "*?"):
		p.exact = leaf
		return p, nil
	}

	// "name.*" also accepts "name" with no extension
	optionalExt := false
	body := leaf
	if strings.HasSuffix(leaf, ".*") {
		optionalExt = true
		body = leaf[:len(leaf)-2]
	}

	var b strings.Builder
	b.WriteString("^")
	b.WriteString(toRegex(body))
	if optionalExt {
		b.WriteString(`(?:\.[^/]*?)?`)
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", leaf, err)
	}
	p.re = re
	return p, nil
}

func toRegex(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*':
			b.WriteString("[^/]*?")
		case '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

// Match reports whether name satisfies the pattern.
func (p *Pattern) Match(name string) bool {
	switch {
	case p == nil || p.all:
		return true
	case p.re == nil:
		return p.exact == name
	default:
		return p.re.MatchString(name)
	}
}

// MatchesAll reports whether the pattern accepts every name.
func (p *Pattern) MatchesAll() bool { return p == nil || p.all }

func (p *Pattern) String() string {
	if p == nil {
		return "*"
	}
	return p.raw
}
