package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/specialistvlad/hostcfg/internal/fsutil"
	"github.com/specialistvlad/hostcfg/internal/host"
	"github.com/specialistvlad/hostcfg/internal/statefile"
	"github.com/specialistvlad/hostcfg/internal/watch"
)

// Run builds the host, applies the configured paths once and, in watch
// mode, keeps re-applying them until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx = a.context(ctx)
	a.logger.Debug("App.Run method started.")

	h, err := a.buildHost(ctx)
	if err != nil {
		return err
	}

	paths, err := a.expandPaths()
	if err != nil {
		return err
	}
	a.logger.Debug("Resolved configuration files.", "count", len(paths))

	var result *multierror.Error
	if err := a.applier.Apply(ctx, h, paths...); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to apply configuration: %w", err))
	}
	// Units completed by a partial apply are persisted too.
	if err := a.saveState(h); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}

	if err := a.render(h); err != nil {
		return err
	}
	if !a.config.Watch {
		a.logger.Debug("App.Run method finished.")
		return nil
	}
	return a.watch(ctx, h, paths)
}

func (a *App) buildHost(ctx context.Context) (*host.Host, error) {
	schema, err := host.LoadSchema(ctx, a.fs, a.resolve(a.config.HostSchema))
	if err != nil {
		return nil, err
	}
	h, err := schema.NewHost()
	if err != nil {
		return nil, fmt.Errorf("failed to build host: %w", err)
	}

	if a.config.StatePath != "" {
		st, err := statefile.Load(a.fs, a.resolve(a.config.StatePath))
		if err != nil {
			return nil, err
		}
		dropped, err := h.Restore(st.Applied, st.Attributes)
		if err != nil {
			return nil, fmt.Errorf("failed to restore state: %w", err)
		}
		if len(dropped) > 0 {
			a.logger.Warn("Saved attributes are not declared by the host schema.", "attributes", dropped)
		}
		a.logger.Debug("Restored applied state.", "path", a.config.StatePath, "applied", len(st.Applied))
	}
	return h, nil
}

func (a *App) saveState(h *host.Host) error {
	if a.config.StatePath == "" {
		return nil
	}
	attrs, err := h.Object().Native()
	if err != nil {
		return fmt.Errorf("failed to capture host attributes: %w", err)
	}
	st := &statefile.State{Applied: h.AppliedHashes(), Attributes: attrs}
	if err := statefile.Save(a.fs, a.resolve(a.config.StatePath), st); err != nil {
		return err
	}
	a.logger.Debug("Saved applied state.", "path", a.config.StatePath)
	return nil
}

func (a *App) expandPaths() ([]string, error) {
	resolved := make([]string, len(a.config.Paths))
	for i, p := range a.config.Paths {
		resolved[i] = a.resolve(p)
	}
	paths, err := fsutil.ExpandPaths(a.fs, resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to expand configuration paths: %w", err)
	}
	return paths, nil
}

func (a *App) resolve(p string) string {
	if filepath.IsAbs(p) || a.config.BaseDir == "" {
		return p
	}
	return filepath.Join(a.config.BaseDir, p)
}

func (a *App) watch(ctx context.Context, h *host.Host, paths []string) error {
	opts := []watch.Option{
		watch.OnApply(func() {
			if err := a.saveState(h); err != nil {
				a.logger.Error("Failed to save applied state.", "error", err)
			}
			if err := a.render(h); err != nil {
				a.logger.Error("Failed to render host.", "error", err)
			}
		}),
	}
	if a.config.Debounce > 0 {
		opts = append(opts, watch.WithDebounce(a.config.Debounce))
	}

	w, err := watch.New(a.applier, h, paths, opts...)
	if err != nil {
		return err
	}

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(ctx, h, a.config.HealthcheckPort)
		defer a.closeHealthcheckServer(ctx)
	}
	return w.Run(ctx)
}
