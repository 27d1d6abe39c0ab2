package main

import (
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hdx-tools/pcode-detector/internal/config"
)

const redacted = "<redacted>"

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeConfig(cmd.OutOrStdout(), redact(*cfg), configFormat)
	},
}

func init() {
	configCmd.Flags().StringVar(&configFormat, "format", "yaml", "output format: yaml or toml")
	rootCmd.AddCommand(configCmd)
}

// writeConfig encodes c with the same key names the config file uses.
func writeConfig(w io.Writer, c config.Config, format string) error {
	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return eris.Wrap(err, "config: encode yaml")
		}
		return enc.Close()
	case "toml":
		// Round-trip through YAML so TOML keys match the yaml tags.
		data, err := yaml.Marshal(c)
		if err != nil {
			return eris.Wrap(err, "config: encode yaml")
		}
		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return eris.Wrap(err, "config: decode yaml")
		}
		if err := toml.NewEncoder(w).Encode(tree); err != nil {
			return eris.Wrap(err, "config: encode toml")
		}
		return nil
	}
	return eris.Errorf("config: unknown format %q", format)
}

// redact hides credentials.
func redact(c config.Config) config.Config {
	if c.Catalog.APIKey != "" {
		c.Catalog.APIKey = redacted
	}
	if c.Slack.Token != "" {
		c.Slack.Token = redacted
	}
	return c
}
