package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/voxmemo/cmd/voxmemo/internal/config"
	"github.com/haivivi/voxmemo/pkg/cli"
	"github.com/haivivi/voxmemo/pkg/memo"
)

const appName = "voxmemo"

var (
	// Global flags
	verbose      bool
	homeDir      string
	formatOutput string
	queryOutput  string
	outputFile   string
)

var rootCmd = &cobra.Command{
	Use:   "voxmemo",
	Short: "Record voice memos and transcribe them",
	Long: `voxmemo - record voice memos and turn them into searchable text.

Recordings are transcribed locally with whisper.cpp or remotely with the
OpenAI or Gemini APIs, then kept in the transcription history.

Settings live in the OS config directory (or $VOXMEMO_HOME):
  Linux:   ~/.config/voxmemo/settings.yaml
  macOS:   ~/Library/Application Support/voxmemo/settings.yaml

Examples:
  # Record until Ctrl-C, then transcribe
  voxmemo record

  # Transcribe an existing file in English
  voxmemo transcribe meeting.wav --lang en

  # Search the history
  voxmemo history search "budget" -o table`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command and reports a failure on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		reportError(err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", os.Getenv("VOXMEMO_HOME"), "root directory for config and data (env VOXMEMO_HOME)")
	rootCmd.PersistentFlags().StringVarP(&formatOutput, "output", "o", "", "output format: yaml, json, table, raw")
	rootCmd.PersistentFlags().StringVar(&queryOutput, "query", "", "jq expression applied to the output")
	rootCmd.PersistentFlags().StringVar(&outputFile, "output-file", "", "write output to a file")
}

// Loaded by setup before any command runs.
var (
	paths    *cli.Paths
	settings config.Settings
	logger   *slog.Logger
)

func setup(cmd *cobra.Command, _ []string) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if homeDir != "" {
		paths = cli.RootedPaths(appName, homeDir)
	} else {
		p, err := cli.NewPaths(appName)
		if err != nil {
			return err
		}
		paths = p
	}
	s, err := config.Load(paths)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	settings = s
	return nil
}

// reportError prints the user-facing message for err. The full error
// chain follows under --verbose, or when err has no known kind.
func reportError(err error) {
	lang := settings.DefaultLanguage
	if lang == "" {
		lang = "en"
	}
	if !isKnown(err) {
		cli.PrintError("%v", err)
		return
	}
	cli.PrintError("%s", memo.Message(err, lang))
	if verbose {
		fmt.Fprintf(os.Stderr, "  %v\n", err)
	}
}

func isKnown(err error) bool {
	for _, kind := range []error{
		memo.ErrPermissionDenied,
		memo.ErrRecordingFailed,
		memo.ErrExtractionFailed,
		memo.ErrModelNotLoaded,
		memo.ErrBackendFailure,
		memo.ErrPersistenceFailure,
		memo.ErrNotFound,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// output writes v with the global output flags, using def when -o is not
// given.
func output(v any, def cli.OutputFormat) error {
	format := def
	if formatOutput != "" {
		f, err := cli.ParseFormat(formatOutput)
		if err != nil {
			return err
		}
		format = f
	}
	return cli.Output(v, cli.OutputOptions{
		Format: format,
		Query:  queryOutput,
		File:   outputFile,
	})
}
