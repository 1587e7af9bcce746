// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the checklist-fuser CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/checklist-fuser/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback if non-empty, else the secret value
// for key if one was loaded.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the checklist-fuser CLI.
var rootCmd = &cobra.Command{
	Use:   "checklist-fuser",
	Short: "Merge certification checklists from two OCR'd documents",
	Long: `checklist-fuser parses OCR text of two certification checklists into
structured documents, sends them to an external fusion analyzer for merge
suggestions, and walks the suggestions through an accept/reject/edit review
before exporting one unified checklist.

Each workflow step is a subcommand: parse, session, analyze, and export.
Sessions and parsed documents persist in a local SQLite database, so the
review can span multiple CLI invocations.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./checklist-fuser.yaml or ~/.config/checklist-fuser/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "base directory for the session database (default \"data\")")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("checklist-fuser")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "checklist-fuser"))
		}
	}

	viper.SetEnvPrefix("CHECKLIST_FUSER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
