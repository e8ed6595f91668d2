package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alpkeskin/gotoon"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func stdout(cmd *cobra.Command) io.Writer {
	if cmd != nil {
		return cmd.OutOrStdout()
	}
	return os.Stdout
}

// render writes v in the selected --format; text output is produced by
// the command itself
func render(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	w := stdout(cmd)

	switch outputFormat {
	case "", "text":
		return text(w)

	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return nil

	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()

	case "toon":
		// go through JSON so custom wire forms are kept
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("failed to decode JSON: %w", err)
		}
		output, err := gotoon.Encode(generic)
		if err != nil {
			return fmt.Errorf("failed to encode Toon: %w", err)
		}
		fmt.Fprintln(w, output)
		return nil
	}

	return fmt.Errorf("unknown output format %q (want text, json, yaml or toon)", outputFormat)
}
