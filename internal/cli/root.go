// Package cli implements the tiered-memory CLI commands.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/tiered-memory/internal/config"
	"github.com/rcliao/tiered-memory/internal/llm"
	"github.com/rcliao/tiered-memory/internal/memory"
)

var (
	rootDir    string
	userFlag   string
	configPath string
	verbose    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "tiered-memory",
	Short: "Tiered memory for conversational agents",
	Long: "Active, short-term, mid-term, long-term and archive memory tiers with nightly consolidation. " +
		"JSON out, one directory of files per installation.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&rootDir, "root", "r", "", "Storage root (default: $TIERED_MEMORY_ROOT or ~/.tiered-memory)")
	RootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "User namespace (default: $TIERED_MEMORY_USER or \"default\")")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.tiered-memory/config.yaml if present)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging on stderr")
}

func setupLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig resolves settings: flag > env > file > default.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		if configPath != "" || !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
		cfg = config.Default()
	}
	cfg.ApplyEnv(os.LookupEnv)
	if rootDir != "" {
		cfg.Root = rootDir
	}
	if userFlag != "" {
		cfg.User = userFlag
	}
	return cfg, nil
}

func openCoordinator() (*memory.Coordinator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	opts := []memory.Option{memory.WithLogger(slog.Default())}

	provider, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, err
	}
	if provider != nil {
		opts = append(opts, memory.WithGenerator(llm.NewGenerator(provider, slog.Default())))
	}
	return memory.New(cfg.CoordinatorConfig(), opts...)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
