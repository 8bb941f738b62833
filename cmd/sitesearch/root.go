package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitesearch/internal/config"
	"github.com/nao1215/sitesearch/internal/log"
)

// NewRootCmd creates the root command for sitesearch.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitesearch",
		Short: "Search the text of a website for a query",
		Long: `sitesearch crawls a website from a start URL, following links on the same
origin up to a maximum depth, and reports every sentence in which a query occurs.

Each match is shown with the sentence before and after it, and every
occurrence of the query is marked with ✅.

Searches can be run from the command line or through a small HTTP API
(sitesearch serve). Finished searches are kept in a local history database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-format", config.LogFormatText,
		"Log format: text, json or console")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .sitesearch in current or home directory)")

	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getBoolFlag retrieves a bool flag from the command or its parents.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// getStringFlag retrieves a string flag from the command or its parents.
func getStringFlag(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetString(name)
		if err != nil {
			return ""
		}
	}
	return v
}

// applyGlobalFlags copies the persistent flags into cfg and loads the
// configuration file.
//
// If the user explicitly specified a config file, a missing file is an
// error. Otherwise an empty site configuration is used.
func applyGlobalFlags(cmd *cobra.Command, cfg *config.Config) error {
	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogFormat = getStringFlag(cmd, "log-format")
	cfg.ConfigFilePath = getStringFlag(cmd, "config")

	siteConfigs, err := loadSiteConfigs(cfg.ConfigFilePath)
	if err != nil {
		return err
	}
	cfg.SiteConfigs = siteConfigs
	return nil
}

func loadSiteConfigs(explicitPath string) (*config.File, error) {
	configPath := config.FindConfigFile(explicitPath)
	if configPath == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicitPath)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	siteConfigs, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return siteConfigs, nil
}

// setupLogger creates the structured logger selected by cfg and makes it
// the default logger.
func setupLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	logger, err := log.New(w, cfg.LogFormat, cfg.Verbose)
	if err != nil {
		if errors.Is(err, log.ErrUnknownFormat) {
			return nil, fmt.Errorf("%w: %q", config.ErrInvalidLogFormat, cfg.LogFormat)
		}
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
