// Package main provides the entry point for the lexivox CLI.
package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lexivox/lexivox/playback"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	volume     float64
	rate       float64
	language   string
	verbose    bool

	rootCmd = &cobra.Command{
		Use:   "lexivox [URL|WORD]",
		Short: "Pronunciation audio for vocabulary study",
		Long: "\nPlay pronunciation audio for flashcard vocabulary. Audio assets are\n" +
			"cached and decoded ahead of time; when an asset cannot be fetched the\n" +
			"word is streamed or spoken through a system synthesizer instead.",
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRun: func(*cobra.Command, []string) {
			applyVerbosity()
		},
		RunE: execute,
	}
)

// execute routes the bare argument: URLs play through the full tiered
// pipeline, anything else is spoken directly.
func execute(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	if isURL(args[0]) {
		return runPlay(cmd, args)
	}
	return runSay(cmd, args)
}

func isURL(arg string) bool {
	u, err := url.ParseRequestURI(arg)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

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
	rootCmd.PersistentFlags().Float64Var(&volume, "volume", 1.0, "playback volume, 0.0 to 1.0")
	rootCmd.PersistentFlags().Float64Var(&rate, "rate", 1.0, "playback rate, 0.25 to 4.0")
	rootCmd.PersistentFlags().StringVar(&language, "language", "", "language tag for synthesized speech")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "log debug output")

	// Config bindings
	_ = viper.BindPFlag("playback.volume", rootCmd.PersistentFlags().Lookup("volume"))
	_ = viper.BindPFlag("playback.rate", rootCmd.PersistentFlags().Lookup("rate"))
	_ = viper.BindPFlag("playback.synth.language", rootCmd.PersistentFlags().Lookup("language"))

	playback.SetDefaults()

	rootCmd.AddCommand(playCmd, sayCmd, preloadCmd, cacheCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "lexivox")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "lexivox")}, dirs...)
	}

	if c := os.Getenv("LEXIVOX_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("lexivox")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("lexivox")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
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
		configFile = filepath.Join(dirs[0], "lexivox.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
