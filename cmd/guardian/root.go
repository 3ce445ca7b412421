package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mobigaurav/ai-release-guardian/internal/config"
	"github.com/mobigaurav/ai-release-guardian/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "guardian",
		Short: "AI-assisted release readiness for pull requests",
		Long: `guardian analyzes a pull request and its linked tickets, generates test
scenarios, runs the test suite, checks acceptance criteria coverage and
decides GO, GATE or NO-GO for deployment.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig()
		},
	}

	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "config file (default is ./guardian.yaml)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text, json, auto")
	_ = viper.BindPFlag("config", pf.Lookup("config"))
	_ = viper.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", pf.Lookup("log-format"))

	root.AddCommand(
		newGenerateTestsCmd(),
		newExecuteTestsCmd(),
		newValidateTestsCmd(),
		newMakeDecisionCmd(),
		newEndToEndCmd(),
		newReplayCmd(),
		newServeCmd(),
		newMCPCmd(),
		newRollbackPlanCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)
	return root
}

func initConfig() error {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("guardian")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/guardian")
	}
	config.BindEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	level, err := logging.ParseLevel(viper.GetString("logging.level"))
	if err != nil {
		return err
	}
	logging.Init(level, strings.ToLower(viper.GetString("logging.format")))
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the guardian version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("guardian %s\n", version)
		},
	}
}
