package cli

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/specialistvlad/hostcfg/internal/app"
	"github.com/specialistvlad/hostcfg/internal/ctxlog"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return &ExitError{Code: 2, Message: err.Error()}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	logLevel  string
	logFormat string
}

// NewRootCommand builds the command tree. Output goes to outW, logs and
// usage errors to errW, and every file is read through fs.
func NewRootCommand(outW, errW io.Writer, fs afero.Fs) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "hostcfg",
		Short: "Apply HCL configuration units to a host, once per distinct content",
		Long: `hostcfg applies configuration units to a host described by a schema file.

Each unit is an HCL file of configure blocks. A unit whose exact content was
already applied to the host is skipped, so running the same files again is a
no-op until one of them changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(errW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Logging level: 'debug', 'info', 'warn' or 'error'")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "Log output format: 'text' or 'json'")

	root.AddCommand(newApplyCommand(g, outW, errW, fs))
	root.AddCommand(newDigestCommand(g, outW, errW, fs))
	return root
}

func newApplyCommand(g *globalFlags, outW, errW io.Writer, fs afero.Fs) *cobra.Command {
	var (
		hostSchema string
		statePath  string
		output     string
		baseDir    string
		watch      bool
		debounce   time.Duration
		healthPort int
	)
	cmd := &cobra.Command{
		Use:   "apply --host SCHEMA [flags] FILE|DIR...",
		Short: "Apply configuration units to a host",
		Example: `  # Apply every unit in conf.d to the host described by host.hcl
  hostcfg apply --host host.hcl conf.d

  # Remember applied content between runs and print the result
  hostcfg apply --host host.yaml --state /var/lib/hostcfg/state.yaml --output json conf.d

  # Keep re-applying units when they change
  hostcfg apply --host host.hcl --watch conf.d/web.hcl`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return &ExitError{Code: 2, Message: "apply requires at least one FILE or DIR argument"}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.NewConfig(app.Config{
				Paths:           args,
				HostSchema:      hostSchema,
				StatePath:       statePath,
				BaseDir:         baseDir,
				Output:          strings.ToLower(output),
				Watch:           watch,
				Debounce:        debounce,
				HealthcheckPort: healthPort,
				LogFormat:       strings.ToLower(g.logFormat),
				LogLevel:        strings.ToLower(g.logLevel),
			})
			if err != nil {
				return usageError(err)
			}
			return app.NewApp(outW, errW, cfg, fs).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&hostSchema, "host", "", "Host schema file (.hcl, .yaml, .yml or .toml)")
	cmd.Flags().StringVar(&statePath, "state", "", "File recording applied content between runs")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Print the host after applying: 'json' or 'yaml'")
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "Directory relative paths are resolved against (default: working directory)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-apply units whenever they change")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Delay after the last change before re-applying in watch mode")
	cmd.Flags().IntVar(&healthPort, "healthcheck-port", 0, "Port for the HTTP health check server in watch mode. 0 is disabled.")
	return cmd
}

func newDigestCommand(g *globalFlags, outW, errW io.Writer, fs afero.Fs) *cobra.Command {
	return &cobra.Command{
		Use:   "digest FILE|DIR...",
		Short: "Print the content digest hostcfg records for each unit",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return &ExitError{Code: 2, Message: "digest requires at least one FILE or DIR argument"}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := app.NewLogger(strings.ToLower(g.logLevel), strings.ToLower(g.logFormat), errW)
			ctx := ctxlog.WithLogger(cmd.Context(), logger)
			return app.PrintDigests(ctx, outW, fs, args)
		},
	}
}

// Execute runs the command tree with args.
func Execute(ctx context.Context, args []string, outW, errW io.Writer, fs afero.Fs) error {
	root := NewRootCommand(outW, errW, fs)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil && isUsageError(err) {
		return usageError(err)
	}
	return err
}

// isUsageError recognizes the plain errors cobra returns for unknown
// commands.
func isUsageError(err error) bool {
	return strings.HasPrefix(err.Error(), "unknown command") ||
		strings.HasPrefix(err.Error(), "unknown flag") ||
		strings.HasPrefix(err.Error(), "unknown shorthand flag")
}
