package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/voxmemo/cmd/voxmemo/internal/config"
	"github.com/haivivi/voxmemo/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change settings",
	Long: `Show and change settings.

Keys:
  model                 speech model id (see 'voxmemo models')
  backend               whispercpp, openai or gemini
  auto_detect_language  true to let the model detect the language
  default_language      sv, en, no, da or fi
  save_transcriptions   keep results in the history
  concurrency           chunks transcribed at once by remote backends
  history.kind          files, kv or s3
  history.dir           directory of files or kv history
  history.bucket, history.prefix, history.region, history.endpoint

Backend credentials live in per-service files:
  voxmemo config service set openai api_key sk-...`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print all settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s := settings
		s.History.SecretAccessKey = cli.MaskAPIKey(s.History.SecretAccessKey)
		return output(s, cli.FormatYAML)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := settings.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := settings
		if err := s.Set(args[0], args[1]); err != nil {
			return fmt.Errorf("%w (keys: %s)", err, strings.Join(config.Keys(), ", "))
		}
		if err := config.Save(paths, s); err != nil {
			return err
		}
		settings = s
		cli.PrintSuccess("%s = %s", args[0], args[1])
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config and data directories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return output(map[string]string{
			"settings":       paths.SettingsFile(),
			"recordings":     paths.RecordingsDir(),
			"transcriptions": paths.TranscriptionsDir(),
			"models":         paths.ModelsDir(),
			"cache":          paths.CacheDir(),
		}, cli.FormatYAML)
	},
}

var configServiceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage backend credentials",
}

var configServiceSetCmd = &cobra.Command{
	Use:   "set <service> <key> <value>",
	Short: "Set a value in a service file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetServiceValue(paths, args[0], args[1], args[2]); err != nil {
			return err
		}
		cli.PrintSuccess("%s.%s saved", args[0], args[1])
		return nil
	},
}

var configServiceShowCmd = &cobra.Command{
	Use:   "show <service>",
	Short: "Print a service file with secrets masked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := config.LoadService[map[string]any](paths, args[0])
		if err != nil {
			return err
		}
		out := map[string]any{}
		for k, v := range *m {
			if s, ok := v.(string); ok && isSecret(k) {
				v = cli.MaskAPIKey(s)
			}
			out[k] = v
		}
		return output(out, cli.FormatYAML)
	},
}

func isSecret(key string) bool {
	key = strings.ToLower(key)
	return strings.Contains(key, "key") || strings.Contains(key, "secret") || strings.Contains(key, "token")
}

func init() {
	configServiceCmd.AddCommand(configServiceSetCmd)
	configServiceCmd.AddCommand(configServiceShowCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configServiceCmd)
	rootCmd.AddCommand(configCmd)
}
