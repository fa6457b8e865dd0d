package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/jonathan/evidentia/internal/schemas"
)

func newValidateCmd() *cobra.Command {
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a saved Truth Report against the report schema",
		Long: `Validate checks a JSON file against the Truth Report schema. The file may be a
bare report or the output of 'evidentia analyze --json', in which case the
"report" field is checked. Use --schema to check against another schema file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := validateFile(path, schemaPath); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid\n", path)
			return err
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "JSON Schema file to validate against instead of the report schema")
	return cmd
}

func validateFile(path, schemaPath string) error {
	if schemaPath != "" {
		return schemas.ValidateJSON(schemaPath, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if nested := gjson.GetBytes(data, "report"); nested.IsObject() {
		return schemas.ValidateReport([]byte(nested.Raw))
	}
	return schemas.ValidateReportFile(path)
}
