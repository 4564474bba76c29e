package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// printResult writes v as indented JSON when asJSON is set and otherwise
// hands stdout to the human renderer. HTML escaping is off so affiliate URLs
// keep their literal '&'.
func printResult(cmd *cobra.Command, asJSON bool, v any, human func(io.Writer)) error {
	out := cmd.OutOrStdout()
	if !asJSON {
		human(out)
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json output: %w", err)
	}
	return nil
}
