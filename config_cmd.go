package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# write debug logs
debug: false

cache:
  # SQLite file for the persistent cache (default: user data dir)
  # store_path: "/path/to/cache.db"
  # quotas in bytes, 0 for unlimited
  store_quota: 5242880
  session_quota: 5242880
  # zstd-compress persistent values
  compress: true
  compression_level: 3
  # periodic sweep of expired items
  cleanup_interval: "5m"

  # bounded in-memory caches
  bounded:
    api:
      ttl: "5m"
      max_entries: 100
    static:
      ttl: "30m"
      max_entries: 50
    component:
      ttl: "10m"
      max_entries: 25

  # critical resource preloading (production builds only)
  preload:
    concurrency: 4
    rate: 10
    timeout: "5s"

  # sample resource cache hits after startup (default: development builds)
  observe:
    # enabled: true
    window: "30s"

worker:
  page_url: "http://localhost:3000"
  script_url: "/service-worker.js"
  # websocket link to the worker runtime
  # link_url: "ws://localhost:3001/worker"
  auto_activate: false
  check_timeout: "10s"
  remind_after: "1h"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the offlinekit config file",
	Long:    paragraph(fmt.Sprintf("\n%s the offlinekit config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("offlinekit config\nofflinekit config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("offlinekit", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
