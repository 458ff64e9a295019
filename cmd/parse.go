// File: cmd/parse.go
package cmd

import (
	"fmt"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/promptpilot/internal/prompt"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <prompt.md>",
		Short: "Print the steps parsed from a prompt file without executing them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := prompt.ParseFile(args[0])
			if err != nil {
				return err
			}
			if doc.Steps == nil {
				doc.Steps = []prompt.Step{}
			}
			out, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to serialize steps: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}
