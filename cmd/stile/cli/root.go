package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	dataDir string
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stile",
		Short: "Authenticated read-only gateway for the entity-management platform",
		Long: `Stile is the protocol core of the entity-management platform: a read-only
REST gateway over the platform's resources behind hashed API keys, plus the
step-up verification flows (trusted devices and one-time codes).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./stile.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for the embedded SQLite store (default: ~/.stile)")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newCodeCmd())
	cmd.AddCommand(newSweepCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("stile")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.stile")
	}

	viper.SetEnvPrefix("STILE")
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}
