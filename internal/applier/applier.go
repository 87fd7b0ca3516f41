// Package applier applies configuration files to a host exactly once per
// distinct file content.
package applier

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/specialistvlad/hostcfg/internal/ctxlog"
	"github.com/specialistvlad/hostcfg/internal/digest"
	"github.com/specialistvlad/hostcfg/internal/host"
	"github.com/specialistvlad/hostcfg/internal/loader"
)

// UnitLoader executes one configuration file.
type UnitLoader interface {
	Load(ctx context.Context, path string) (*loader.Unit, error)
}

// Applier hashes, deduplicates, loads and invokes configuration units.
type Applier struct {
	fs      afero.Fs
	loader  UnitLoader
	hasher  *digest.Hasher
	baseDir string
}

// Option configures an Applier.
type Option func(*Applier)

// WithFs sets the filesystem used by the default hasher and loader.
func WithFs(fs afero.Fs) Option {
	return func(a *Applier) { a.fs = fs }
}

// WithLoader replaces the default loader.
func WithLoader(l UnitLoader) Option {
	return func(a *Applier) { a.loader = l }
}

// WithHasher replaces the default SHA-256 hasher.
func WithHasher(h *digest.Hasher) Option {
	return func(a *Applier) { a.hasher = h }
}

// WithBaseDir sets the directory relative paths are resolved against.
// Without it, relative paths resolve against the directory of the source
// file that called Apply.
func WithBaseDir(dir string) Option {
	return func(a *Applier) { a.baseDir = dir }
}

// New creates an Applier. Unset collaborators default to the OS filesystem,
// a loader over it and a SHA-256 hasher.
func New(opts ...Option) *Applier {
	a := &Applier{}
	for _, opt := range opts {
		opt(a)
	}
	if a.fs == nil {
		a.fs = afero.NewOsFs()
	}
	if a.loader == nil {
		a.loader = loader.New(a.fs)
	}
	if a.hasher == nil {
		a.hasher = digest.NewHasher(a.fs)
	}
	return a
}

type loadedUnit struct {
	unit   *loader.Unit
	digest digest.Digest
}

// Apply loads every path whose content has not been applied to h yet, then
// invokes the loaded functions in file order and definition order.
//
// A file whose digest h already holds, or whose content equals an earlier
// file of the same call, is skipped without being loaded. A digest is
// recorded on h only once every function of its unit has run, so h never
// holds content that was not applied. If hashing or loading a file fails,
// the units loaded before it are still applied and the failure is returned.
// A failing function stops the apply phase and leaves its unit unrecorded;
// nothing is rolled back. Cancelling ctx stops at the next file or function.
func (a *Applier) Apply(ctx context.Context, h *host.Host, paths ...string) error {
	logger := ctxlog.FromContext(ctx)

	base := a.baseDir
	if base == "" {
		if _, file, _, ok := runtime.Caller(1); ok {
			base = filepath.Dir(file)
		}
	}

	var loaded []loadedUnit
	var loadErr error
	seen := digest.NewSet()
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := resolve(base, p)

		d, err := a.hasher.File(path)
		if err != nil {
			loadErr = err
			break
		}
		if h.Applied(d) || seen.Contains(d) {
			logger.Debug("Skipping configuration, content already applied.", "path", path, "digest", d)
			continue
		}

		u, err := a.loader.Load(ctx, path)
		if err != nil {
			loadErr = err
			break
		}
		// The loader reads the file again; record what it executed.
		if u.Digest != "" && u.Digest.Algorithm() == d.Algorithm() && u.Digest != d {
			logger.Warn("Configuration changed while loading.", "path", path, "hashed", d, "loaded", u.Digest)
			d = u.Digest
			if h.Applied(d) || seen.Contains(d) {
				logger.Debug("Skipping configuration, content already applied.", "path", path, "digest", d)
				continue
			}
		}
		seen.Add(d)
		loaded = append(loaded, loadedUnit{unit: u, digest: d})
		logger.Debug("Loaded configuration.", "path", path, "unit", u.ID, "digest", d)
	}

	applyErr := a.invoke(ctx, h, loaded)

	if loadErr != nil {
		logger.Warn("Configuration load failed.", "error", loadErr, "loaded_units", len(loaded))
		if applyErr != nil {
			return multierror.Append(loadErr, applyErr)
		}
		return loadErr
	}
	if applyErr != nil {
		return applyErr
	}
	logger.Info("Configuration applied.", "files", len(paths), "units", len(loaded))
	return nil
}

func (a *Applier) invoke(ctx context.Context, h *host.Host, units []loadedUnit) error {
	logger := ctxlog.FromContext(ctx)
	obj := h.Object()
	for _, lu := range units {
		for i, fn := range lu.unit.Funcs {
			if err := ctx.Err(); err != nil {
				return err
			}
			name := fmt.Sprintf("#%d", i)
			if i < len(lu.unit.FuncNames) {
				name = lu.unit.FuncNames[i]
			}
			if err := fn(ctx, obj); err != nil {
				return fmt.Errorf("failed to apply %s from unit %s: %w", name, lu.unit.ID, err)
			}
			logger.Debug("Applied configure function.", "unit", lu.unit.ID, "function", name)
		}
		h.MarkApplied(lu.digest)
	}
	return nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) || base == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
