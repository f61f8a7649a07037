package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/haivivi/voxmemo/pkg/chunk"
	"github.com/haivivi/voxmemo/pkg/cli"
	"github.com/haivivi/voxmemo/pkg/memo"
	"github.com/haivivi/voxmemo/pkg/transcribe"
)

// transcribeRequest is the -f request file of the transcribe command.
type transcribeRequest struct {
	File     string `yaml:"file" json:"file"`
	Language string `yaml:"language,omitempty" json:"language,omitempty"`
	Model    string `yaml:"model,omitempty" json:"model,omitempty"`
	Backend  string `yaml:"backend,omitempty" json:"backend,omitempty"`
	Prompt   string `yaml:"prompt,omitempty" json:"prompt,omitempty"`
}

var transcribeFlags struct {
	request  string
	language string
	model    string
	backend  string
	prompt   string
	noSave   bool
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [file]",
	Short: "Transcribe an audio file",
	Long: `Transcribe an audio file and save the result to the history.

WAV files are read directly; other formats need ffmpeg in PATH. Long
files are cut into overlapping chunks and merged back into one
transcript.

The request can also come from a YAML or JSON file:

  file: interview.m4a
  language: en
  model: openai_whisper-small
  prompt: "Names: Anna, Björn"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := transcribeRequestFrom(cmd, args)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		src, err := chunk.Probe(ctx, req.File)
		if err != nil {
			return err
		}
		res, err := runTranscription(ctx, src, req)
		if err != nil {
			return err
		}
		// The transcript is printed before saving so a history failure
		// does not lose it.
		if err := printResult(res); err != nil {
			return err
		}
		if transcribeFlags.noSave {
			return nil
		}
		return saveResult(ctx, res)
	},
}

func init() {
	f := transcribeCmd.Flags()
	f.StringVarP(&transcribeFlags.request, "file", "f", "", "request file (YAML or JSON, - for stdin)")
	f.StringVarP(&transcribeFlags.language, "lang", "l", "", "language hint, \"auto\" to detect")
	f.StringVarP(&transcribeFlags.model, "model", "m", "", "model id (see 'voxmemo models')")
	f.StringVar(&transcribeFlags.backend, "backend", "", "whispercpp, openai or gemini")
	f.StringVar(&transcribeFlags.prompt, "prompt", "", "context text such as names or terms")
	f.BoolVar(&transcribeFlags.noSave, "no-save", false, "do not save the result to the history")
	rootCmd.AddCommand(transcribeCmd)
}

func transcribeRequestFrom(cmd *cobra.Command, args []string) (transcribeRequest, error) {
	var req transcribeRequest
	if transcribeFlags.request != "" {
		if err := cli.LoadRequest(transcribeFlags.request, &req); err != nil {
			return req, err
		}
	}
	if len(args) == 1 {
		req.File = args[0]
	}
	flags := cmd.Flags()
	if flags.Changed("lang") {
		req.Language = transcribeFlags.language
	}
	if flags.Changed("model") {
		req.Model = transcribeFlags.model
	}
	if flags.Changed("backend") {
		req.Backend = transcribeFlags.backend
	}
	if flags.Changed("prompt") {
		req.Prompt = transcribeFlags.prompt
	}
	if req.File == "" {
		return req, errors.New("no audio file given")
	}
	return req, nil
}

// runTranscription transcribes src with the settings overridden by req.
func runTranscription(ctx context.Context, src memo.AudioSource, req transcribeRequest) (*memo.Result, error) {
	model := req.Model
	if model == "" {
		model = settings.Model
	}
	if _, ok := transcribe.LookupModel(model); !ok {
		return nil, fmt.Errorf("unknown model %q", model)
	}
	lang := settings.LanguageHint()
	switch req.Language {
	case "":
	case "auto":
		lang = ""
	default:
		lang = req.Language
	}

	backend, err := newBackend(ctx, req.Backend)
	if err != nil {
		return nil, err
	}
	engine, err := newEngine(backend, req.Prompt)
	if err != nil {
		return nil, err
	}
	logger.Debug("transcribing", "file", src.Path, "duration", src.Duration, "model", model, "language", lang)
	return engine.Transcribe(ctx, transcribe.Request{
		Source:   src,
		Language: lang,
		Model:    model,
	})
}

// printResult prints the transcript text, or the whole result when an
// output format is given.
func printResult(res *memo.Result) error {
	if formatOutput == "" && queryOutput == "" {
		return output(res.Text+"\n", cli.FormatRaw)
	}
	return output(res, cli.FormatYAML)
}
