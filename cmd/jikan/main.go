// Package main is the jikan CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/jikan/internal/batch"
	"github.com/hyperjump/jikan/internal/cli"
	"github.com/hyperjump/jikan/internal/config"
	"github.com/hyperjump/jikan/internal/entities"
	"github.com/hyperjump/jikan/internal/export"
	"github.com/hyperjump/jikan/internal/extract"
	"github.com/hyperjump/jikan/internal/metrics"
	"github.com/hyperjump/jikan/internal/models"
	"github.com/hyperjump/jikan/internal/reshape"
	"github.com/hyperjump/jikan/internal/server"
	"github.com/hyperjump/jikan/internal/storage"
	"github.com/hyperjump/jikan/internal/watcher"
	"github.com/hyperjump/jikan/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/jikan/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if present, and a missing default file falls back to built-in
// defaults. Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "list":
		runList()
	case "transform":
		runTransform()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("jikan version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	metrics.Init(func() float64 {
		n, err := store.CountResults(context.Background())
		if err != nil {
			return 0
		}
		return float64(n)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go storage.RunJanitor(ctx, store, cfg.Storage.ResultTTL, 0, logger)

	ext, proc := newPipelineParts(cfg, logger)

	if cfg.Watch.Inbox != "" {
		watchSvc, err := startInboxWatcher(ctx, cfg, ext, proc, logger, debugMode)
		if err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(ext, proc, store, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	format := fs.String("format", "text", "output format: text, json or csv")
	query := fs.String("q", "", "only list short names containing this text")
	sheet := fs.String("sheet", "", "sheet name (default: first sheet)")
	header := fs.String("header", "", "identifier column header (default from config)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: jikan list [flags] <file>...\n\n")
		fs.PrintDefaults()
	}
	files, _ := parseArgs(fs, os.Args[2:])
	if len(files) < 1 {
		fs.Usage()
		os.Exit(1)
	}
	outFormat, err := cli.ParseOutputFormat(*format)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	cfg, logger := loadCLIConfig(*configPath)
	defer logger.Sync()
	applySheetFlags(cfg, *sheet, *header)

	ext, proc := newPipelineParts(cfg, logger)
	sources := loadSources(ext, files)
	res := proc.ListEntities(sources)
	res.ShortNames = nonNil(entities.Filter(res.ShortNames, *query))

	if err := cli.WriteEntities(os.Stdout, res, outFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
		os.Exit(1)
	}
	if len(res.Failures) == len(sources) {
		os.Exit(1)
	}
}

func runTransform() {
	fs := flag.NewFlagSet("transform", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	var names nameList
	fs.Var(&names, "name", "short name to transform (repeatable, or comma separated)")
	output := fs.String("o", "", "write the result to this .xlsx or .csv file instead of stdout")
	format := fs.String("format", "text", "stdout format when -o is not set: text, json or csv")
	all := fs.Bool("all", false, "transform every short name found in the inputs")
	sheet := fs.String("sheet", "", "sheet name (default: first sheet)")
	header := fs.String("header", "", "identifier column header (default from config)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: jikan transform [flags] <file>...\n\n")
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), `
Examples:
  jikan transform -name M1 -name M2 -o out.xlsx january.xlsx february.xlsx
  jikan transform -name "M1,M2" -format csv readings.zip
  jikan transform -all -o all.csv readings.ods
`)
	}
	files, _ := parseArgs(fs, os.Args[2:])
	if len(files) < 1 {
		fs.Usage()
		os.Exit(1)
	}

	cfg, logger := loadCLIConfig(*configPath)
	defer logger.Sync()
	applySheetFlags(cfg, *sheet, *header)

	ext, proc := newPipelineParts(cfg, logger)
	sources := loadSources(ext, files)

	selected := []string(names)
	if *all {
		selected = proc.ListEntities(sources).ShortNames
	}
	if len(selected) == 0 {
		fmt.Println("No short names selected (use -name or -all)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	res, err := proc.Transform(ctx, sources, selected)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Transform failed: %v\n", err)
		os.Exit(1)
	}
	if len(res.Failures) == len(sources) {
		for _, f := range res.Failures {
			fmt.Fprintf(os.Stderr, "skipped: %v\n", f)
		}
		os.Exit(1)
	}

	if *output == "" {
		outFormat, err := cli.ParseOutputFormat(*format)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		if err := cli.WriteTable(os.Stdout, res, outFormat); err != nil {
			fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := writeOutputFile(*output, res.Table); err != nil {
		fmt.Fprintf(os.Stderr, "Write failed: %v\n", err)
		os.Exit(1)
	}
	for _, f := range res.Failures {
		fmt.Fprintf(os.Stderr, "skipped: %v\n", f)
	}
	fmt.Printf("Wrote %d rows (%d dates) to %s\n", res.Table.Len(), len(res.Table.Dates), *output)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	inbox := fs.String("inbox", "", "directory to watch (default from config)")
	outbox := fs.String("outbox", "", "directory for results (default from config, or <inbox>/transformed)")
	var names nameList
	fs.Var(&names, "name", "short name to transform (repeatable; default: all)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *inbox != "" {
		cfg.Watch.Inbox = *inbox
	}
	if *outbox != "" {
		cfg.Watch.Outbox = *outbox
	}
	if len(names) > 0 {
		cfg.Watch.ShortNames = names
	}
	if cfg.Watch.Inbox == "" {
		fmt.Println("Usage: jikan watch -inbox <dir> [-outbox <dir>] [-name <short name>]...")
		os.Exit(1)
	}

	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolvedConfigPath), zap.Bool("debug", debugMode))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ext, proc := newPipelineParts(cfg, logger)
	watchSvc, err := startInboxWatcher(ctx, cfg, ext, proc, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer watchSvc.Stop()

	<-ctx.Done()
	logger.Info("Shutting down...")
}

// startInboxWatcher starts watching cfg.Watch.Inbox and processes files already there.
func startInboxWatcher(ctx context.Context, cfg *config.Config, ext *extract.Extractor, proc *batch.Processor, logger *zap.Logger, debug bool) (*watcher.Watcher, error) {
	outbox := cfg.Watch.Outbox
	if outbox == "" {
		outbox = filepath.Join(cfg.Watch.Inbox, "transformed")
	}
	pipeline := watcher.NewPipeline(ext, proc, outbox, cfg.Watch.ShortNames, logger)

	opts := []watcher.WatcherOption{watcher.WithExclude(outbox)}
	if debug {
		opts = append(opts, watcher.WithLogger(logger))
	}
	w := watcher.NewWatcher(cfg.Watch.Inbox, cfg.Sheet.Extensions, cfg.Watch.RecursiveOrDefault(), pipeline.Handler(ctx), opts...)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	logger.Info("watching inbox", zap.String("inbox", w.Inbox()), zap.String("outbox", outbox))
	go w.SyncExistingFiles()
	return w, nil
}

func newPipelineParts(cfg *config.Config, logger *zap.Logger) (*extract.Extractor, *batch.Processor) {
	ext := extract.NewExtractor(extract.WithSheet(cfg.Sheet.SheetName))
	proc := batch.NewProcessor(
		reshape.FromConfig(&cfg.Sheet),
		batch.WithLogger(logger),
		batch.WithConcurrency(cfg.Transform.Concurrency),
	)
	return ext, proc
}

// loadCLIConfig loads config for one-shot commands, exiting on failure.
func loadCLIConfig(path string) (*config.Config, *zap.Logger) {
	cfg, _, err := loadConfig(path)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger
}

func applySheetFlags(cfg *config.Config, sheet, header string) {
	if sheet != "" {
		cfg.Sheet.SheetName = sheet
	}
	if header != "" {
		cfg.Sheet.IdentifierHeader = header
	}
}

func loadSources(ext *extract.Extractor, paths []string) []models.Source {
	var sources []models.Source
	for _, p := range paths {
		sources = append(sources, ext.Load(p)...)
	}
	return sources
}

// writeOutputFile writes table to path, choosing CSV or XLSX from the extension.
func writeOutputFile(path string, table *models.Table) error {
	format := outputFormatForPath(path)
	content, err := export.Bytes(table, format)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, content, 0644)
}

func outputFormatForPath(path string) export.Format {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return export.FormatCSV
	}
	return export.FormatXLSX
}

// nameList is a repeatable flag; each value may hold several comma separated names.
type nameList []string

func (n *nameList) String() string {
	return strings.Join(*n, ",")
}

func (n *nameList) Set(value string) error {
	*n = append(*n, splitNames(value)...)
	return nil
}

// splitNames splits a comma separated list, trimming entries and dropping blanks.
func splitNames(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// parseArgs parses flags that may appear before, between or after file arguments and
// returns the file arguments in order. Go's flag package stops at the first non-flag
// argument, so "jikan list a.xlsx -format json" would otherwise leave -format unparsed.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func printUsage() {
	fmt.Println(`jikan - Reshape meter-reading spreadsheets into hourly tables

Usage:
  jikan server [flags]              Start the HTTP server
  jikan list [flags] <file>...      List the short names found in spreadsheets
  jikan transform [flags] <file>... Reshape selected short names into one table
  jikan watch [flags]               Transform spreadsheets dropped into an inbox
  jikan version                     Show version
  jikan help                        Show this help

Inputs may be .xlsx, .xlsm, .ods, .csv, or .zip archives of those.

Server Flags:
  --config string    Config file path (default: /usr/local/etc/jikan/config.yaml)
  --debug            Enable debug logging

List Flags:
  --format string    text, json or csv (default: text)
  --q string         Only list short names containing this text
  --sheet string     Sheet name (default: first sheet)
  --header string    Identifier column header (default: "Short name")

Transform Flags:
  --name string      Short name to include (repeatable or comma separated)
  --all              Include every short name found
  --o string         Output .xlsx or .csv file (default: print to stdout)
  --format string    Stdout format: text, json or csv (default: text)

Watch Flags:
  --inbox string     Directory to watch
  --outbox string    Directory for results (default: <inbox>/transformed)
  --name string      Short name to include (repeatable; default: all)`)
}
