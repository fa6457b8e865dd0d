package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newAdversarialCmd(a *app) *cobra.Command {
	var template string

	cmd := &cobra.Command{
		Use:   "adversarial",
		Short: "Generate adversarial test content for the analyzer",
		Long: `Generate synthetic deceptive content (phishing email, fabricated news,
edited screenshot text, voice-clone script) for red-team testing. The template
is either a template id from 'evidentia scenarios' or free text.`,
		Example: `  evidentia adversarial --template scam-email
  evidentia adversarial --template "fake charity appeal after a flood"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newServices(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			out, err := svc.runner.GenerateAdversarial(cmd.Context(), template)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&template, "template", "", "template id or free-text description")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}
