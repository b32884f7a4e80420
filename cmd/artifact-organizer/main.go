// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the artifact-organizer CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/artifact-organizer/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// envFile is loaded into the process environment before configuration is
// resolved, so ARTIFACT_ORGANIZER_* settings can live next to the dumps.
const envFile = ".env"

// rootCmd is the base command for the artifact-organizer CLI.
var rootCmd = &cobra.Command{
	Use:   "artifact-organizer",
	Short: "Split saved chat and code dumps into a real file tree",
	Long: `artifact-organizer scans a directory of saved text artifacts (chat
transcripts, code dumps), finds the file path markers embedded in them,
and writes each embedded file to its path under a destination directory.

A marker is a line such as "// apps/web/src/index.ts", "# packages/db/seed.py"
or a bare "apps/web/next.config.js" at the start of a line. Everything up to
the next marker becomes the content of that file.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(envFile); err != nil {
			return err
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		logger.SetVerbose(verbose || viper.GetBool("verbose"))
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./artifact-organizer.yaml or ~/.config/artifact-organizer/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "print debug logging to stderr")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("artifact-organizer")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "artifact-organizer"))
		}
	}

	viper.SetEnvPrefix("ARTIFACT_ORGANIZER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadEnvFile merges path into the environment without overriding
// variables that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		logger.Debug("loaded environment from %s", path)
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// bindFlags binds the named flags of cmd to viper keys. Binding happens
// when a command runs so commands sharing a key do not steal each other's
// flags.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
