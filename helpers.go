package unifs

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/brettbedarf/unifs/upath"
	"github.com/zeebo/blake3"
)

// ErrHashMismatch is returned by CopyFileAcross when the written content does
// not hash to the source content.
var ErrHashMismatch = fmt.Errorf("%w: content hash mismatch", ErrIO)

// ReadAllBytes returns the whole content of p.
func ReadAllBytes(fs FileSystem, p upath.Path) ([]byte, error) {
	s, err := fs.OpenFile(p, ModeOpen, AccessRead, ShareRead)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return io.ReadAll(s)
}

// ReadAllText returns the whole content of p as a string.
func ReadAllText(fs FileSystem, p upath.Path) (string, error) {
	b, err := ReadAllBytes(fs, p)
	return string(b), err
}

// ReadAllLines splits the content of p on "\n" or "\r\n".
func ReadAllLines(fs FileSystem, p upath.Path) ([]string, error) {
	b, err := ReadAllBytes(fs, p)
	if err != nil {
		return nil, err
	}
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), len(b)+1)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// WriteAllBytes creates or truncates p and writes data.
func WriteAllBytes(fs FileSystem, p upath.Path, data []byte) error {
	s, err := fs.OpenFile(p, ModeCreate, AccessWrite, ShareNone)
	if err != nil {
		return err
	}
	if _, err := s.Write(data); err != nil {
		s.Close()
		return err
	}
	return s.Close()
}

// WriteAllText creates or truncates p and writes text.
func WriteAllText(fs FileSystem, p upath.Path, text string) error {
	return WriteAllBytes(fs, p, []byte(text))
}

// AppendAllText appends text to p, creating it when missing.
func AppendAllText(fs FileSystem, p upath.Path, text string) error {
	s, err := fs.OpenFile(p, ModeAppend, AccessWrite, ShareNone)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(s, text); err != nil {
		s.Close()
		return err
	}
	return s.Close()
}

// ContentHash returns the hex encoded blake3 digest of the content of p.
func ContentHash(fs FileSystem, p upath.Path) (string, error) {
	s, err := fs.OpenFile(p, ModeOpen, AccessRead, ShareRead)
	if err != nil {
		return "", err
	}
	defer s.Close()

	h := blake3.New()
	if _, err := io.Copy(h, s); err != nil {
		return "", NewPathError("hash", p, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CopyFileAcross copies a file between two filesystems, which may be the same
// engine. Attributes and the last write time follow the content. The copy is
// verified by reading the destination back and comparing blake3 digests.
func CopyFileAcross(srcFS FileSystem, src upath.Path, dstFS FileSystem, dst upath.Path, overwrite bool) error {
	in, err := srcFS.OpenFile(src, ModeOpen, AccessRead, ShareRead)
	if err != nil {
		return err
	}
	defer in.Close()

	mode := ModeCreateNew
	if overwrite {
		mode = ModeCreate
	}
	out, err := dstFS.OpenFile(dst, mode, AccessWrite, ShareNone)
	if err != nil {
		return err
	}

	h := blake3.New()
	if _, err := io.Copy(out, io.TeeReader(in, h)); err != nil {
		out.Close()
		return NewPathError("copy", dst, err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	srcSum := hex.EncodeToString(h.Sum(nil))
	dstSum, err := ContentHash(dstFS, dst)
	if err != nil {
		return err
	}
	if srcSum != dstSum {
		return PathErrorf("copy", dst, ErrHashMismatch, "%s (src) != %s (dst)", srcSum, dstSum)
	}

	attrs, err := srcFS.Attributes(src)
	if err != nil {
		return err
	}
	mtime, err := srcFS.LastWriteTime(src)
	if err != nil {
		return err
	}
	if err := dstFS.SetLastWriteTime(dst, mtime); err != nil {
		return err
	}
	return dstFS.SetAttributes(dst, attrs&^AttrDirectory)
}

// CopyDirectoryAcross recursively copies the directory src into dst. Existing
// files at the destination are overwritten only when overwrite is set.
func CopyDirectoryAcross(srcFS FileSystem, src upath.Path, dstFS FileSystem, dst upath.Path, overwrite bool) error {
	if err := dstFS.CreateDirectory(dst); err != nil {
		return err
	}

	children, err := Collect(srcFS.EnumeratePaths(src, "*", TopDirectoryOnly, TargetBoth))
	if err != nil {
		return err
	}
	for _, child := range children {
		target, err := upath.Combine(dst, upath.MustParse(child.Name()))
		if err != nil {
			return err
		}
		isDir, err := srcFS.DirectoryExists(child)
		if err != nil {
			return err
		}
		if isDir {
			err = CopyDirectoryAcross(srcFS, child, dstFS, target, overwrite)
		} else {
			err = CopyFileAcross(srcFS, child, dstFS, target, overwrite)
		}
		if err != nil {
			return err
		}
	}

	attrs, err := srcFS.Attributes(src)
	if err != nil {
		return err
	}
	attrs = attrs&^AttrReadOnly | AttrDirectory
	if err := dstFS.SetAttributes(dst, attrs); err != nil && !errors.Is(err, ErrNotSupported) {
		return err
	}
	return nil
}

// IsHidden reports whether a name follows the dot-file convention.
func IsHidden(name string) bool { return strings.HasPrefix(name, ".") }
