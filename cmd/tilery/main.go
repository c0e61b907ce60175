// Package main provides the entry point for the tilery tile pyramid
// generator.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jobrunner/tilery/internal/adapters/metrics"
	"github.com/jobrunner/tilery/internal/adapters/sink"
	"github.com/jobrunner/tilery/internal/app"
	"github.com/jobrunner/tilery/internal/config"
	"github.com/jobrunner/tilery/internal/domain"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var (
	cfgFile     string
	autoConfirm bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tilery",
	Short: "Tilery - tile pyramid generator",
	Long: `Tilery renders map layers into tile pyramids.

It enumerates the quadtree of tiles covering an extent across a zoom
range and writes the rendered tiles into one of several containers,
selected by the output path extension:

  directory   plain z/x/y tile tree
  .zip        zip archive
  .ngrc       indexed archive with a JSON manifest
  .mbtiles    SQLite tile database (deduplicated on finalize)`,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render the configured extent into a tile container",
	RunE:  runGenerate,
}

var compactCmd = &cobra.Command{
	Use:   "compact <file.mbtiles>",
	Short: "Deduplicate tile payloads in an existing MBTiles database",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompact,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default configuration file",
	RunE:  runInit,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("Tilery %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (json, text)")

	// Generate flags
	generateCmd.Flags().String("output", "", "output path (directory, .zip, .ngrc or .mbtiles)")
	generateCmd.Flags().Int("min-zoom", 0, "lowest zoom level")
	generateCmd.Flags().Int("max-zoom", 18, "highest zoom level")
	generateCmd.Flags().String("format", "png", "tile image format (png, jpg)")
	generateCmd.Flags().Bool("tms", false, "number rows bottom-up")
	generateCmd.Flags().Bool("watch", false, "keep running and re-render on layer changes")
	generateCmd.Flags().BoolVarP(&autoConfirm, "yes", "y", false, "proceed without asking when the tile count is large")

	// Bind flags to viper
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("output.path", generateCmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("tiles.min_zoom", generateCmd.Flags().Lookup("min-zoom"))
	_ = viper.BindPFlag("tiles.max_zoom", generateCmd.Flags().Lookup("max-zoom"))
	_ = viper.BindPFlag("tiles.format", generateCmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("tiles.tms", generateCmd.Flags().Lookup("tms"))
	_ = viper.BindPFlag("watch.enabled", generateCmd.Flags().Lookup("watch"))

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func runGenerate(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting tilery",
		"version", version,
		"output", cfg.Output.Path,
		"min_zoom", cfg.Tiles.MinZoom,
		"max_zoom", cfg.Tiles.MaxZoom,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	application.StartStatusServer()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		application.Shutdown(shutdownCtx)
	}()

	observer := newConsoleObserver(application, autoConfirm)

	// Forward the first signal to the running pipeline as a cooperative
	// stop; a second signal aborts the process.
	go func() {
		<-sigChan
		logger.Info("received shutdown signal, stopping after current tile")
		if p := application.Current(); p != nil {
			p.ConfirmStop()
			p.Stop()
		}
		cancel()
		<-sigChan
		os.Exit(1)
	}()

	res, err := application.RunOnce(ctx, observer)
	if err != nil {
		return err
	}
	logger.Info("run complete",
		"outcome", res.Outcome.String(),
		"rendered", res.TilesRendered,
		"planned", res.TilesPlanned,
	)

	if cfg.Watch.Enabled && application.Watcher != nil {
		if err := application.Watcher.Start(ctx); err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		logger.Info("watching layer sources for changes")
		<-ctx.Done()
	}

	return nil
}

func runCompact(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg.Logging)

	path := args[0]
	if !strings.HasSuffix(strings.ToLower(path), ".mbtiles") {
		return fmt.Errorf("%w: compact expects an .mbtiles file", domain.ErrInvalidRequest)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	compactor := sink.NewCompactor(db, metrics.NewCollector("tilery"), logger)
	if err := compactor.Run(cmd.Context()); err != nil {
		return fmt.Errorf("compacting %s: %w", path, err)
	}
	if err := sink.Optimize(cmd.Context(), db); err != nil {
		return fmt.Errorf("optimizing %s: %w", path, err)
	}

	logger.Info("compaction complete", "path", path)
	return nil
}

func runInit(_ *cobra.Command, _ []string) error {
	config.Defaults()

	// Round-trip the defaults through viper so the generated file and
	// the loader cannot drift apart.
	settings := viper.AllSettings()
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}

	path := cfgFile
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", path)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return err
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(time.Now().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// askYesNo prompts on the terminal and reads a y/n answer.
func askYesNo(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
