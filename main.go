package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Chris-Boho/stingray-vrm-sub000/pkg/config"
)

var errMissingDatabase = errors.New("database uri is not set (DATABASE_URL or VRM_DATABASE_URI)")

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "vrmd",
	Short:        "vrmd edits VRM workflow documents",
	Long:         `A document engine for VRM workflow files: an HTTP editing service plus offline check and format tools.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
}

// loadConfig reads the config file named by --config plus the environment.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.New(), cfgFile)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
