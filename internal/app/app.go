package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/afero"

	"github.com/specialistvlad/hostcfg/internal/applier"
	"github.com/specialistvlad/hostcfg/internal/ctxlog"
	"github.com/specialistvlad/hostcfg/internal/loader"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	fs     afero.Fs

	loader  *loader.Loader
	applier *applier.Applier

	httpServer *http.Server
}

// NewApp wires an App reading from fs. Rendered output goes to outW, logs
// to logW.
func NewApp(outW, logW io.Writer, cfg *Config, fs afero.Fs) *App {
	logger := NewLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	if cfg.BaseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.BaseDir = wd
		}
	}

	l := loader.New(fs)
	opts := []applier.Option{applier.WithFs(fs), applier.WithLoader(l), applier.WithBaseDir(cfg.BaseDir)}

	return &App{
		outW:    outW,
		logger:  logger,
		config:  cfg,
		fs:      fs,
		loader:  l,
		applier: applier.New(opts...),
	}
}

// Loader returns the loader holding every unit this app loaded.
func (a *App) Loader() *loader.Loader { return a.loader }

func (a *App) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}
