package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/prasenjit/go-modulus/internal/config"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "go-modulus",
		Short: "Go-Modulus - stateful API mock server",
		Long: `Go-Modulus serves mock APIs discovered from a directory tree.
Each service directory is either code-defined (index.yaml naming a built-in
handler) or config-defined (index.json plus one JSON file per response
variant). Stored mappings pick which variant a given request identity gets.`,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}

		viper.AddConfigPath(cwd)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// GOMODULUS_SERVER_PORT overrides server.port and so on
	viper.SetEnvPrefix("GOMODULUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults sets the default configuration values
func setDefaults() {
	def := config.Default()

	// Server defaults
	viper.SetDefault("server.port", def.Server.Port)
	viper.SetDefault("server.host", def.Server.Host)

	// Mock tree defaults
	viper.SetDefault("mocks.root", def.Mocks.Root)
	viper.SetDefault("mocks.prefix", def.Mocks.Prefix)
	viper.SetDefault("generators.file", def.Generators.File)

	// OAuth signing key defaults
	viper.SetDefault("oauth.keyFile", def.OAuth.KeyFile)
	viper.SetDefault("oauth.storePath", def.OAuth.StorePath)
	viper.SetDefault("oauth.autoGenerate", def.OAuth.AutoGenerate)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", def.Tracing.Enabled)
	viper.SetDefault("tracing.maxTraces", def.Tracing.MaxTraces)

	// Logging defaults
	viper.SetDefault("logging.level", def.Logging.Level)
	viper.SetDefault("logging.format", def.Logging.Format)
}

// loadConfig materializes the viper state into a Config
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
