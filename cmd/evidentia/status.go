package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which model, search and storage backends are configured",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := statusInfo(a.cfg)
			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			fmt.Fprintf(out, "Model:   %s (%s)\n", configured(info.ModelKeyPresent), info.ModelProvider)
			fmt.Fprintf(out, "Search:  %s (%s)\n", configured(a.cfg.Search.Settings().Configured()), info.SearchProvider)
			fmt.Fprintf(out, "Storage: %s\n", configured(info.StorePresent))
			if !info.ModelKeyPresent {
				fmt.Fprintln(out, "\nNo model API key found: analyses will run in demo mode.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print status as JSON")
	return cmd
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}
