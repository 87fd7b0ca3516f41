// Package host defines the configurable host: a locked attribute object
// together with the ordered set of configuration digests already applied to
// it.
package host

import (
	"fmt"
	"maps"
	"slices"

	"github.com/specialistvlad/hostcfg/internal/digest"
	"github.com/specialistvlad/hostcfg/internal/lockable"
)

// DefaultKind names hosts whose schema does not set one.
const DefaultKind = "Host"

// Host is the target of configuration. Its attribute names are fixed when it
// is created; the applied set only grows.
type Host struct {
	obj     *lockable.Object
	applied *digest.Set
}

// New creates a host whose attributes are declared by build. See
// lockable.New for the construction rules.
func New(kind string, build func(*lockable.Builder) error) (*Host, error) {
	if kind == "" {
		kind = DefaultKind
	}
	obj, err := lockable.New(kind, build)
	if err != nil {
		return nil, err
	}
	return &Host{obj: obj, applied: digest.NewSet()}, nil
}

// Object returns the attribute object handed to configuration functions.
func (h *Host) Object() *lockable.Object { return h.obj }

// AppliedHashes returns the applied digests in the order they were recorded.
func (h *Host) AppliedHashes() []digest.Digest { return h.applied.List() }

// Applied reports whether d was already recorded.
func (h *Host) Applied(d digest.Digest) bool { return h.applied.Contains(d) }

// MarkApplied records d and reports whether it was new.
func (h *Host) MarkApplied(d digest.Digest) bool { return h.applied.Add(d) }

// RestoreApplied records digests persisted by an earlier run, keeping their
// order and skipping any already present.
func (h *Host) RestoreApplied(ds []digest.Digest) {
	for _, d := range ds {
		h.applied.Add(d)
	}
}

// Restore seeds h with state saved by an earlier run: the attribute values
// first, then the applied digests. Saved attributes h does not declare are
// skipped and returned in name order.
func (h *Host) Restore(applied []digest.Digest, attrs map[string]any) ([]string, error) {
	var dropped []string
	for _, name := range slices.Sorted(maps.Keys(attrs)) {
		if !h.obj.Has(name) {
			dropped = append(dropped, name)
			continue
		}
		if err := h.obj.SetGo(name, attrs[name]); err != nil {
			return dropped, fmt.Errorf("failed to restore attribute %q: %w", name, err)
		}
	}
	h.RestoreApplied(applied)
	return dropped, nil
}
