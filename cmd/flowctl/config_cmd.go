package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/internal/config"
	"github.com/flowctl/flowctl/internal/debug"
	"github.com/flowctl/flowctl/internal/ui"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change flowctl configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the effective configuration and where each value comes from",
			Args:  cobra.NoArgs,
			RunE:  runConfigShow,
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one configuration value",
			Args:  cobra.ExactArgs(1),
			RunE:  runConfigGet,
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Write a value to the project's .flowctl/config.yaml",
			Args:  cobra.ExactArgs(2),
			RunE:  runConfigSet,
		},
	)
	return cmd
}

type configShowResult struct {
	ConfigFile string         `json:"config_file,omitempty"`
	Settings   []config.Entry `json:"settings"`
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	result := configShowResult{
		ConfigFile: config.ConfigFileUsed(),
		Settings:   config.Effective(),
	}
	return writeResult(cmd, result, func(w io.Writer) {
		file := result.ConfigFile
		if file == "" {
			file = ui.RenderMuted("(none)")
		}
		fmt.Fprintln(w, ui.RenderField("config file", file))
		fmt.Fprintln(w)
		for _, e := range result.Settings {
			fmt.Fprintf(w, "%-24s %-28v %s\n", e.Key, e.Value, ui.RenderMuted(e.Source))
		}
	})
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	for _, e := range config.Effective() {
		if e.Key == key {
			return writeResult(cmd, e, func(w io.Writer) {
				fmt.Fprintln(w, e.Value)
			})
		}
	}
	return newUsageError("unknown config key %q", key)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	setting, ok := config.Lookup(key)
	if !ok {
		return newUsageError("unknown config key %q", key)
	}
	path, err := config.SetYamlConfig(key, value)
	if err != nil {
		return err
	}
	debug.Logf("config: wrote %s to %s\n", key, path)

	shown := value
	if setting.Secret {
		shown = config.Redact(value)
	}
	return writeResult(cmd, map[string]string{"key": key, "value": shown, "path": path}, func(w io.Writer) {
		fmt.Fprintf(w, "%s Set %s = %s in %s\n", ui.RenderPassIcon(), key, shown, path)
	})
}
