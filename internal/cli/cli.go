package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"

	"github.com/specialistvlad/nativebind/internal/app"
	"github.com/specialistvlad/nativebind/internal/artifact"
	"github.com/specialistvlad/nativebind/internal/descriptor"
	"github.com/specialistvlad/nativebind/internal/manifest"
	"github.com/specialistvlad/nativebind/internal/resolver"
	"github.com/specialistvlad/nativebind/internal/shim"
)

// Exit codes. Resolution failures get their own codes so build scripts can
// tell a packaging mistake from a manifest written for a newer resolver.
const (
	ExitFailure       = 1
	ExitUsage         = 2
	ExitSchemaTooNew  = 3
	ExitPackaging     = 4
	ExitSymbolMissing = 5
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

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := pflag.NewFlagSet("nativebind", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.SortFlags = false

	flagSet.Usage = func() {
		fmt.Fprint(output, `
nativebind - binds prebuilt native libraries to validated module descriptors.

Usage:
  nativebind [options] [MANIFEST_PATH...]

Arguments:
  MANIFEST_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	manifestFlag := flagSet.StringSliceP("manifest", "m", nil, "Path to a manifest file or directory. Repeatable.")
	targetFlag := flagSet.StringSliceP("target", "t", nil, "Resolve only these declared targets (os-arch[-variant]). Repeatable.")
	formatFlag := flagSet.StringP("format", "f", "json", "Output format. Options: 'json', 'yaml', 'cbor'.")
	outFlag := flagSet.StringP("out", "o", "", "Write the publication to this file instead of stdout.")
	probeFlag := flagSet.Bool("probe", false, "Load host-runnable slices and confirm every declared symbol exists.")
	libPathFlag := flagSet.StringSlice("lib-path", nil, "Extra directory to search for libraries when probing. Repeatable.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.IntP("workers", "w", resolver.DefaultWorkers, "Number of targets resolved in parallel.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	paths := append(append([]string{}, *manifestFlag...), flagSet.Args()...)
	slog.Debug("Manifest paths determined.", "paths", paths)

	if len(paths) == 0 {
		slog.Debug("No manifest path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: ExitUsage, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: ExitUsage, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ManifestPaths: paths,
		Targets:       *targetFlag,
		Format:        *formatFlag,
		OutPath:       *outFlag,
		Probe:         *probeFlag,
		SearchPaths:   *libPathFlag,
		LogFormat:     logFormat,
		LogLevel:      logLevel,
		WorkerCount:   *workersFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

// Classify wraps a failed run in an ExitError whose code names the kind of
// failure. Errors that already carry a code pass through.
func Classify(err error) *ExitError {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}

	code := ExitFailure
	var (
		schemaErr    *manifest.SchemaEvolutionError
		mixedErr     *manifest.MixedStrategyError
		ambiguousErr *artifact.AmbiguousSliceError
		platformErr  *artifact.UnsupportedPlatformError
		dupErr       *shim.DuplicateMappingError
		symbolErr    *descriptor.SymbolMismatchError
	)
	switch {
	case errors.As(err, &schemaErr) && schemaErr.TooNew():
		code = ExitSchemaTooNew
	case errors.As(err, &symbolErr):
		code = ExitSymbolMissing
	case errors.As(err, &ambiguousErr), errors.As(err, &platformErr),
		errors.As(err, &dupErr), errors.As(err, &mixedErr), errors.As(err, &schemaErr):
		code = ExitPackaging
	}
	return &ExitError{Code: code, Message: err.Error()}
}
