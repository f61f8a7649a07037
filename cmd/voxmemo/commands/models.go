package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/voxmemo/pkg/cli"
	"github.com/haivivi/voxmemo/pkg/transcribe"
	"github.com/haivivi/voxmemo/pkg/transcribe/whispercpp"
)

type modelRow struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Size      string `json:"size" yaml:"size"`
	Language  string `json:"language" yaml:"language"`
	Installed bool   `json:"installed" yaml:"installed"`
	Selected  bool   `json:"selected" yaml:"selected"`
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List speech models",
	Long: `List the speech models voxmemo knows about.

Installed means the whisper.cpp model file is present in the models
directory; remote backends do not need local files.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		local := whispercpp.New(whispercpp.Config{ModelDir: paths.ModelsDir()})
		var rows []modelRow
		for _, m := range transcribe.Models() {
			_, err := os.Stat(local.ModelPath(m.ID))
			lang := m.Language
			if lang == "" {
				lang = "multi"
			}
			rows = append(rows, modelRow{
				ID:        m.ID,
				Name:      m.Name,
				Size:      cli.FormatBytes(int64(m.SizeMB) << 20),
				Language:  lang,
				Installed: err == nil,
				Selected:  m.ID == settings.Model,
			})
		}
		return output(rows, cli.FormatTable)
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
