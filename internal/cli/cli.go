// Package cli wires the command-line surface: flag parsing, config
// loading, logger setup, the host run lock, and dispatch into the
// service layer.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avermeulen/confsync/internal/config"
	"github.com/avermeulen/confsync/internal/lock"
	"github.com/avermeulen/confsync/internal/logger"
	"github.com/avermeulen/confsync/internal/report"
	"github.com/avermeulen/confsync/internal/service"
	"github.com/avermeulen/confsync/internal/state"
)

var (
	// Set at build time
	version = "dev"
	commit  = "none"

	cfgFile   string
	fix       bool
	verbose   bool
	shellEcho bool
	backup    bool
	terse     bool
)

var rootCmd = &cobra.Command{
	Use:   "confsync",
	Short: "Converge host configuration files onto a repository tree",
	Long: `confsync compares the files under a repository overlay tree with their
counterparts on this host and reports every difference. With --fix it
converges the host onto the repository: creating, replacing and
deleting entries and correcting ownership and permission bits.

Without --fix nothing on the host is ever modified.`,
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Compare the overlay tree against this host and converge it",
	RunE:  runSync,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Sync the purge tree and delete host entries it no longer carries",
	RunE:  runPurge,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("confsync %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs recorded on this host",
	RunE:  runHistory,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/confsync, user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&fix, "fix", "f", false, "apply changes; without this flag the run is a dry run")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show detailed per-operation output")
	rootCmd.PersistentFlags().BoolVar(&shellEcho, "echo", false, "echo the equivalent shell command for each change")
	rootCmd.PersistentFlags().BoolVarP(&backup, "backup", "b", false, "keep replaced entries as .saved copies")
	rootCmd.PersistentFlags().BoolVarP(&terse, "terse", "T", false, "one short line per event")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(historyCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	return runMode("sync", func(ctx context.Context, svc *service.Service) (*service.Stats, error) {
		return svc.Sync(ctx)
	})
}

func runPurge(cmd *cobra.Command, args []string) error {
	return runMode("purge", func(ctx context.Context, svc *service.Service) (*service.Stats, error) {
		return svc.Purge(ctx)
	})
}

// runMode performs the shared run scaffolding: config, logger, lock,
// state, reporter, then the mode-specific pass.
func runMode(mode string, run func(context.Context, *service.Service) (*service.Stats, error)) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := initLogger(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Shutdown()

	flags := config.RunFlags{
		DryRun:       !fix,
		Verbose:      verbose,
		ShellEcho:    shellEcho,
		BackupCopies: backup || cfg.BackupCopies,
	}

	fileLock, err := lock.NewFileLock(cfg.GetLockDir())
	if err != nil {
		return fmt.Errorf("failed to create run lock: %w", err)
	}
	if err := fileLock.Acquire(mode); err != nil {
		return err
	}
	defer fileLock.Release()

	var st *state.Manager
	st, err = state.NewManager(cfg.GetDataDir())
	if err != nil {
		logger.Get().Warn("run history unavailable", "error", err)
		st = nil
	} else {
		defer st.Close()
	}

	opts := report.Options{
		Log:         logger.Get(),
		OverlayRoot: cfg.OverlayDir,
	}
	if st != nil {
		opts.Audit = st
	}
	if terse {
		opts.TerseOut = os.Stdout
	}
	if shellEcho {
		opts.EchoOut = os.Stdout
	}
	rep := report.New(flags, opts)

	svc, err := service.New(cfg, flags, rep, st)
	if err != nil {
		return err
	}

	stats, err := run(ctx, svc)
	if err != nil {
		return err
	}

	if flags.DryRun {
		fmt.Printf("%d entries checked, %d would change, %d metadata fixes pending\n",
			stats.EntriesChecked, stats.ContentChanged, stats.MetaChanged)
	} else {
		fmt.Printf("%d entries checked, %d changed, %d metadata fixed, %d deleted\n",
			stats.EntriesChecked, stats.ContentChanged, stats.MetaChanged, stats.Deleted)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st, err := state.NewManager(cfg.GetDataDir())
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer st.Close()

	records, err := st.GetHistory("", 20)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, r := range records {
		fmt.Printf("%s  %-5s  %-7s  checked=%d changed=%d meta=%d deleted=%d\n",
			r.StartTime.Format("2006-01-02 15:04:05"), r.Mode, r.Status,
			r.EntriesChecked, r.ContentChanged, r.MetaChanged, r.Deleted)
		if r.Error != "" {
			fmt.Printf("    error: %s\n", r.Error)
		}
	}
	return nil
}

// initLogger configures the process logger from config plus the
// verbosity flag
func initLogger(cfg *config.Config) error {
	level := logger.ParseLevel(cfg.Logging.Level)
	if verbose && level > logger.LevelDebug {
		level = logger.LevelDebug
	}

	logCfg := logger.Config{
		Level:   level,
		Format:  logger.ParseFormat(cfg.Logging.Format),
		Outputs: []logger.OutputConfig{{Type: logger.OutputStderr}},
		File: logger.FileConfig{
			Enabled:    cfg.Logging.File.Enabled,
			Path:       config.ExpandPath(cfg.Logging.File.Path),
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxAgeDays: cfg.Logging.File.MaxAgeDays,
			MaxBackups: cfg.Logging.File.MaxBackups,
			Compress:   cfg.Logging.File.Compress,
		},
	}
	return logger.Init(logCfg)
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
