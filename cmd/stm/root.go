package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/stm"
	"github.com/aretw0/stm/internal/platform"
	"github.com/aretw0/stm/pkg/core"
	"github.com/aretw0/stm/pkg/store"
)

var (
	verbose    bool
	file       string
	configPath string
	access     string
	adapter    string
	versioning bool
	devSafety  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stm",
	Short: "An attributed short-term memory store shared by an LLM and its host",
	Long: `stm edits a memory snapshot from the command line.
Entries carry system tags that decide what the model may read, write or see
in its system prompt. Snapshots are JSON, YAML or Markdown files, SQLite
databases or Redis hashes.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVarP(&file, "file", "f", "stm.json", "Snapshot file, database path or redis URL")
	flags.StringVarP(&configPath, "config", "c", "", "Config file (default: nearest stm.yaml)")
	flags.StringVar(&access, "access", "", "Access level: user, system or admin")
	flags.StringVar(&adapter, "adapter", "", "Storage adapter: fs, sqlite, redis or memory")
	flags.BoolVar(&versioning, "versioning", false, "Commit every save to git (fs adapter)")
	flags.BoolVar(&devSafety, "dev-safety", true, "Sandbox file paths under go run")
}

// openSession builds a session from the config file and the flags. Flags
// win over the file.
func openSession(ctx context.Context, cmd *cobra.Command) (*stm.Session, error) {
	flags := cmd.Flags()
	var opts []stm.Option
	uri := ""

	path := configPath
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path, _ = stm.FindConfig(wd)
		}
	}
	if path != "" {
		cfg, err := platform.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		fileOpts, err := cfg.Options()
		if err != nil {
			return nil, err
		}
		opts = append(opts, fileOpts...)
		uri = cfg.URI
		slog.Debug("config loaded", "path", path)
	}

	if flags.Changed("file") || uri == "" {
		uri = file
	}
	if flags.Changed("access") {
		level, err := core.ParseAccessLevel(access)
		if err != nil {
			return nil, err
		}
		opts = append(opts, stm.WithAccessLevel(level))
	}
	if flags.Changed("adapter") {
		opts = append(opts, stm.WithAdapter(adapter))
	}
	if flags.Changed("versioning") {
		opts = append(opts, stm.WithVersioning(versioning))
	}
	if flags.Changed("dev-safety") {
		opts = append(opts, stm.WithDevSafety(devSafety))
	}
	opts = append(opts, stm.WithLogger(slog.Default()))

	return stm.Open(ctx, uri, opts...)
}

// withStore opens a session, runs fn on its store and closes it, flushing
// any change.
func withStore(cmd *cobra.Command, fn func(st *store.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := openSession(ctx, cmd)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	runErr := s.Do(fn)
	if err := s.Close(ctx); err != nil && runErr == nil {
		runErr = fmt.Errorf("save: %w", err)
	}
	return runErr
}
