// Package main provides the entry point for the offlinekit CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool
	mouse      bool

	rootCmd = &cobra.Command{
		Use:   "offlinekit",
		Short: "Offline caching and worker updates, from the terminal",
		Long: paragraph(
			fmt.Sprintf("\nKeep a web client's caches %s and its worker up to date.", keyword("working offline")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// config edits (and may create) the file, so it reads nothing here.
			if cmd.Flags().Changed("config") && cmd.Name() != "config" {
				if err := loadConfigFile(configFile); err != nil {
					return err
				}
			}
			if debug || viper.GetBool("debug") {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context())
		},
	}
)

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug logs")
	rootCmd.PersistentFlags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse support (watch only)")
	_ = rootCmd.PersistentFlags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("mouse", rootCmd.PersistentFlags().Lookup("mouse"))

	rootCmd.AddCommand(watchCmd, sweepCmd, statsCmd, getCmd, setCmd, rmCmd, preloadCmd, fetchCmd, configCmd, manCmd)
}

// loadConfigFile replaces the configuration found in the default places with
// the file at path.
func loadConfigFile(path string) error {
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to read config file %s: %w", path, err)
	}
	log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
	return nil
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "offlinekit")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "offlinekit")}, dirs...)
	}

	if c := os.Getenv("OFFLINEKIT_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("offlinekit")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("offlinekit")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "offlinekit.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
