// Package loader executes configuration units and returns the functions each
// unit marks.
//
// A unit is one HCL file. Its top level may hold any number of locals blocks
// and configure blocks:
//
//	locals {
//	  step = 1
//	}
//
//	configure "bump" {
//	  when = host.x < 10
//	  x    = host.x + local.step
//	}
//
// Loading walks the file in source order, evaluating locals as it goes and
// marking every configure block into a collector that lives for exactly one
// Load call. Configure functions are not invoked by the loader.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/specialistvlad/hostcfg/internal/cfgerr"
	"github.com/specialistvlad/hostcfg/internal/ctxlog"
	"github.com/specialistvlad/hostcfg/internal/digest"
	"github.com/specialistvlad/hostcfg/internal/registry"
)

// Unit is a successfully loaded configuration file.
type Unit struct {
	// ID is unique within one Loader: the file stem, suffixed with #2, #3
	// and so on when a unit from another path with the same stem was loaded
	// before. Reloading a path keeps its ID.
	ID     string
	Name   string
	Path   string
	Digest digest.Digest
	// Funcs holds the marked configure functions in definition order;
	// FuncNames holds their labels at the same indexes.
	Funcs     []registry.Func
	FuncNames []string
}

// Loader parses and executes units, keeping a table of the latest unit loaded
// from each path. Load calls on one Loader are serialized.
type Loader struct {
	fs     afero.Fs
	hasher *digest.Hasher
	funcs  map[string]function.Function

	mu     sync.Mutex
	units  []*Unit
	byID   map[string]*Unit
	byPath map[string]*Unit
	stems  map[string]int
}

// New creates a loader reading units from fs.
func New(fs afero.Fs) *Loader {
	return &Loader{
		fs:     fs,
		hasher: digest.NewHasher(fs),
		funcs:  Functions(),
		byID:   make(map[string]*Unit),
		byPath: make(map[string]*Unit),
		stems:  make(map[string]int),
	}
}

// Load executes the unit at path and returns it together with the functions
// it marked. On failure the error is a *cfgerr.LoadError and no unit is
// recorded.
func (l *Loader) Load(ctx context.Context, path string) (*Unit, error) {
	logger := ctxlog.FromContext(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	collector := registry.NewCollector()
	defer collector.Reset()

	src, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, &cfgerr.LoadError{Path: path, Err: &cfgerr.IOError{Op: "read", Path: path, Err: err}}
	}

	name := stem(path)
	prev := l.byPath[path]
	var (
		id  string
		seq int
	)
	if prev != nil {
		id = prev.ID
	} else {
		id, seq = l.nextID(name)
	}
	unit := &Unit{
		ID:     id,
		Name:   name,
		Path:   path,
		Digest: l.hasher.Bytes(src),
	}
	logger.Debug("Loading unit.", "unit", unit.ID, "path", path, "digest", unit.Digest)

	if diags := l.execute(ctx, unit, src, collector); diags.HasErrors() {
		return nil, &cfgerr.LoadError{Path: path, UnitID: unit.ID, Diags: diags}
	}

	for _, e := range collector.Drain() {
		unit.Funcs = append(unit.Funcs, e.Fn)
		unit.FuncNames = append(unit.FuncNames, e.Name)
	}

	if prev != nil {
		l.units = slices.DeleteFunc(l.units, func(u *Unit) bool { return u == prev })
	} else {
		l.stems[name] = seq
	}
	l.byID[unit.ID] = unit
	l.byPath[path] = unit
	l.units = append(l.units, unit)

	logger.Debug("Unit loaded.", "unit", unit.ID, "functions", len(unit.Funcs))
	return unit, nil
}

// Units returns the latest unit of every loaded path, oldest load first.
func (l *Loader) Units() []*Unit {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Unit, len(l.units))
	copy(out, l.units)
	return out
}

// nextID assumes l.mu is held. The returned sequence number is committed
// only once the load succeeds.
func (l *Loader) nextID(name string) (string, int) {
	seq := l.stems[name]
	for {
		seq++
		id := name
		if seq > 1 {
			id = fmt.Sprintf("%s#%d", name, seq)
		}
		if _, taken := l.byID[id]; !taken {
			return id, seq
		}
	}
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func unitValue(u *Unit) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"id":     cty.StringVal(u.ID),
		"name":   cty.StringVal(u.Name),
		"path":   cty.StringVal(u.Path),
		"digest": cty.StringVal(u.Digest.String()),
	})
}
