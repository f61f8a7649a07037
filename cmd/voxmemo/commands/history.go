package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/voxmemo/pkg/cli"
	"github.com/haivivi/voxmemo/pkg/history"
	"github.com/haivivi/voxmemo/pkg/memo"
)

const previewRunes = 60

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"h"},
	Short:   "Browse saved transcriptions",
}

var historyListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List transcriptions, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return listResults(cmd, "")
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "List transcriptions containing text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return listResults(cmd, strings.Join(args, " "))
	},
}

func listResults(cmd *cobra.Command, query string) error {
	store, closeStore, err := openHistory(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	rs, err := history.Search(cmd.Context(), store, query)
	if err != nil {
		return err
	}
	entries := make([]history.Entry, 0, len(rs))
	for _, r := range rs {
		entries = append(entries, history.Summarize(r, previewRunes))
	}
	if len(entries) == 0 && formatOutput == "" {
		cli.PrintInfo("no transcriptions")
		return nil
	}
	return output(entries, cli.FormatTable)
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one transcription with its segments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openHistory(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		r, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return output(r, cli.FormatYAML)
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:     "delete <id>...",
	Aliases: []string{"rm"},
	Short:   "Delete transcriptions",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openHistory(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		for _, id := range args {
			if err := store.Delete(cmd.Context(), id); err != nil {
				return err
			}
			cli.PrintSuccess("deleted %s", id)
		}
		return nil
	},
}

var exportFormat string

var historyExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a transcription as text, markdown or SRT",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, ok := memo.Renderers[strings.ToLower(exportFormat)]; !ok {
			return fmt.Errorf("unknown export format %q (want text, markdown or srt)", exportFormat)
		}
		store, closeStore, err := openHistory(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		w := os.Stdout
		if outputFile != "" {
			f, err := os.Create(outputFile)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return history.Export(cmd.Context(), store, args[0], exportFormat, w)
	},
}

func init() {
	historyExportCmd.Flags().StringVar(&exportFormat, "format", "text", "text, markdown or srt")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historySearchCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}
