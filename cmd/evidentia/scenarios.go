package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/evidentia/internal/scenarios"
)

func newScenariosCmd(_ *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List built-in demo scenarios and adversarial templates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := scenarios.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"scenarios": catalog.Scenarios,
					"templates": catalog.Templates,
				})
			}

			fmt.Fprintln(out, "Scenarios:")
			for _, s := range catalog.Scenarios {
				fmt.Fprintf(out, "  %-26s %s (%d items)\n", s.ID, s.Name, len(s.Payload))
				if len(s.Tags) > 0 {
					fmt.Fprintf(out, "  %-26s [%s]\n", "", strings.Join(s.Tags, ", "))
				}
			}
			fmt.Fprintln(out, "\nAdversarial templates:")
			for _, t := range catalog.Templates {
				fmt.Fprintf(out, "  %-26s %s\n", t.ID, t.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the catalog as JSON")
	return cmd
}
