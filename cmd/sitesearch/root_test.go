package main

import (
	"testing"

	"github.com/nao1215/sitesearch/internal/config"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "sitesearch" {
			t.Errorf("expected use 'sitesearch', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions and version", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" {
			t.Error("expected non-empty descriptions")
		}
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has global flags", func(t *testing.T) {
		t.Parallel()

		verbose := cmd.PersistentFlags().Lookup("verbose")
		if verbose == nil {
			t.Fatal("expected verbose flag")
		}
		if verbose.Shorthand != "v" || verbose.DefValue != "false" {
			t.Errorf("unexpected verbose flag %+v", verbose)
		}

		logFormat := cmd.PersistentFlags().Lookup("log-format")
		if logFormat == nil {
			t.Fatal("expected log-format flag")
		}
		if logFormat.DefValue != config.LogFormatText {
			t.Errorf("expected default %q, got %q", config.LogFormatText, logFormat.DefValue)
		}

		if cmd.PersistentFlags().Lookup("config") == nil {
			t.Error("expected config flag")
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()

		want := map[string]bool{
			"search": false, "serve": false, "history": false, "init": false, "version": false,
		}
		for _, sub := range cmd.Commands() {
			if _, ok := want[sub.Name()]; ok {
				want[sub.Name()] = true
			}
		}
		for name, found := range want {
			if !found {
				t.Errorf("expected %s subcommand", name)
			}
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage {
			t.Error("expected SilenceUsage to be true")
		}
		if !cmd.SilenceErrors {
			t.Error("expected SilenceErrors to be true")
		}
	})
}

func TestLoadSiteConfigs(t *testing.T) {
	t.Parallel()

	t.Run("missing explicit file is an error", func(t *testing.T) {
		t.Parallel()

		_, err := loadSiteConfigs(t.TempDir() + "/missing.yaml")
		if err == nil {
			t.Error("expected error for missing explicit config file")
		}
	})

	t.Run("invalid yaml is an error", func(t *testing.T) {
		t.Parallel()

		path := writeTestConfig(t, "sites: [unclosed")
		if _, err := loadSiteConfigs(path); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("loads explicit file", func(t *testing.T) {
		t.Parallel()

		path := writeTestConfig(t, "sites:\n  example.com:\n    depth: 5\n")
		got, err := loadSiteConfigs(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.GetSiteConfig("example.com").Depth != 5 {
			t.Errorf("expected depth 5, got %+v", got.Sites)
		}
	})
}
