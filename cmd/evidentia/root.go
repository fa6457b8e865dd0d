package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonathan/evidentia/internal/config"
	"github.com/jonathan/evidentia/internal/logging"
)

// app carries the configuration shared by every subcommand. Each command tree
// gets its own viper instance so flag bindings never leak between runs.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "evidentia",
		Short: "Evidentia - evidence analysis and Truth Reports",
		Long: `Evidentia analyzes a bundle of evidence (text, links, PDFs, images, audio and
video) and produces a Truth Report: extracted claims, contradictions,
manipulation and AI-generation signals, external verification and a
calibrated verdict.

Without a model API key every analysis runs in demo mode.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: "+config.DefaultConfigPath+")")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", flags.Lookup("log-format"))

	root.AddCommand(
		newAnalyzeCmd(a),
		newServeCmd(a),
		newStatusCmd(a),
		newScenariosCmd(a),
		newAdversarialCmd(a),
		newConfigCmd(a),
		newValidateCmd(),
	)
	return root
}

// load reads the effective configuration and applies the log settings.
func (a *app) load() error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	if err := logging.SetLevel(cfg.Log.Level); err != nil {
		return err
	}
	if err := logging.SetFormat(cfg.Log.Format); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}
