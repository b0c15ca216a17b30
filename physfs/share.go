package physfs

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/brettbedarf/unifs"
	"github.com/puzpuzpuz/xsync/v4"
)

type handle struct {
	access unifs.FileAccess
	share  unifs.FileShare
}

// shareTable records the open handles of one FS by native path.
type shareTable struct {
	open *xsync.Map[string, []*handle]
}

func newShareTable() *shareTable {
	return &shareTable{open: xsync.NewMap[string, []*handle]()}
}

// acquire registers a handle unless it conflicts with one already open.
func (t *shareTable) acquire(native string, access unifs.FileAccess, share unifs.FileShare) (*handle, bool) {
	h := &handle{access: access, share: share}
	ok := true
	t.open.Compute(native, func(old []*handle, _ bool) ([]*handle, xsync.ComputeOp) {
		for _, o := range old {
			if !o.share.Allows(access) || !share.Allows(o.access) {
				ok = false
				return old, xsync.CancelOp
			}
		}
		return append(slices.Clone(old), h), xsync.UpdateOp
	})
	return h, ok
}

// release drops h. Releasing twice is a no-op.
func (t *shareTable) release(native string, h *handle) {
	t.open.Compute(native, func(old []*handle, loaded bool) ([]*handle, xsync.ComputeOp) {
		i := slices.Index(old, h)
		switch {
		case !loaded || i < 0:
			return old, xsync.CancelOp
		case len(old) == 1:
			return nil, xsync.DeleteOp
		}
		return slices.Delete(slices.Clone(old), i, i+1), xsync.UpdateOp
	})
}

// inUse reports whether native or anything below it has an open handle.
func (t *shareTable) inUse(native string) bool {
	prefix := native + string(filepath.Separator)
	found := false
	t.open.Range(func(k string, _ []*handle) bool {
		found = k == native || strings.HasPrefix(k, prefix)
		return !found
	})
	return found
}
