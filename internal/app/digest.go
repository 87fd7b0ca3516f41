package app

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/specialistvlad/hostcfg/internal/ctxlog"
	"github.com/specialistvlad/hostcfg/internal/digest"
	"github.com/specialistvlad/hostcfg/internal/fsutil"
)

// PrintDigests writes "<digest>  <path>" for every unit file under paths,
// the same digests the applier records.
func PrintDigests(ctx context.Context, w io.Writer, fs afero.Fs, paths []string) error {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.ExpandPaths(fs, paths)
	if err != nil {
		return fmt.Errorf("failed to expand paths: %w", err)
	}
	hasher := digest.NewHasher(fs)
	for _, f := range files {
		d, err := hasher.File(f)
		if err != nil {
			return err
		}
		logger.Debug("Hashed file.", "path", f, "digest", d)
		if _, err := fmt.Fprintf(w, "%s  %s\n", d, f); err != nil {
			return err
		}
	}
	return nil
}
