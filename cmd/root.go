// Package cmd implements the imagecached command-line surface, grounded on
// tagTonic's cmd package: a cobra root command with persistent --config and
// --verbose flags, viper-backed config loading in a cobra.OnInitialize hook.
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/krisalay/imagecache/cliconfig"
)

var (
	cfgFile string
	verbose bool
	cfg     *cliconfig.Config
)

var rootCmd = &cobra.Command{
	Use:     "imagecached",
	Short:   "A client-side image cache engine",
	Version: "0.1.0",
	Long: `imagecached is a standalone runner for the image cache engine:
it tracks Images by URL, groups RenderRequests into Buckets, bounds
concurrent fetches through a Network pool, and evicts under RAM and
video-memory budgets.

Examples:
  imagecached demo --bucket gallery https://example.com/a.jpg https://example.com/b.jpg`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.imagecached.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	loaded, err := cliconfig.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg = loaded

	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}
