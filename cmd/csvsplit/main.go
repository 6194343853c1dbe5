package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/jittakal/csvsplit/internal/compress"
	"github.com/jittakal/csvsplit/internal/config"
	"github.com/jittakal/csvsplit/internal/iocache"
	"github.com/jittakal/csvsplit/internal/observability"
	"github.com/jittakal/csvsplit/internal/server"
	"github.com/jittakal/csvsplit/internal/splitter"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	flags := pflag.NewFlagSet("csvsplit", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: csvsplit [flags] <file> [out-dir]\n\n")
		flags.PrintDefaults()
	}

	configPath := flags.String("config", "", "path to configuration file")
	flags.IntP("group-col", "g", -1,
		"zero-based column with values that must remain together; the input must already be sorted by it")
	flags.IntP("num-rows", "n", 0, "maximum number of rows per file; grouping can exceed it")
	flags.Bool("stdin", false, "read from standard input")
	flags.StringP("input-compression", "i", "none", "treat input as 'g'zip, 'b'zip, or 'd'etect")
	flags.StringP("output-compression", "z", "none", "compress each output file ('g'zip or 'b'zip)")
	flags.StringP("trigger", "t", "", "command to execute each time a file is written ({}, {/}, {rows})")
	flags.BoolP("header", "d", false, "treat the first row as a header injected into each split file")
	flags.IntP("suffix-length", "a", 5, "generate numeric suffixes of length N")
	flags.String("engine", config.EngineURing, "write path: uring, sync, or background")
	flags.Int("buffer-size", 1<<20, "encode buffer capacity in bytes")
	flags.Int("queue-depth", 8, "I/O concurrency limit and buffer pool size")
	flags.Int("channel-depth", 1024, "background writer channel capacity")
	flags.String("metrics-addr", "", "serve /metrics and /health/live on this address")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	loader := config.NewLoader()
	args := flags.Args()
	switch {
	case len(args) >= 2:
		loader.SetPositional(args[0], args[1])
	case len(args) == 1:
		loader.SetPositional(args[0], "")
	}
	cfg, err := loader.Load(*configPath, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		ops := server.New(cfg.MetricsAddr, registry, logger)
		ops.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			ops.Shutdown(shutdownCtx)
		}()
	}

	stream, itype, err := openInput(cfg)
	if err != nil {
		return err
	}
	defer stream.Close()

	reader := csv.NewReader(stream)
	reader.FieldsPerRecord = -1

	splitCfg := splitter.Config{
		Dir:         cfg.OutDir,
		Base:        outputBase(cfg, itype),
		MaxRows:     cfg.MaxRows,
		GroupColumn: cfg.GroupColumn,
		Header:      cfg.Header,
		SuffixLen:   cfg.SuffixLen,
		Trigger:     cfg.Trigger,
	}

	logger.Info("starting split",
		"engine", cfg.Engine,
		"input", inputName(cfg),
		"out_dir", cfg.OutDir,
		"max_rows", cfg.MaxRows,
		"group_column", cfg.GroupColumn,
	)

	start := time.Now()
	switch cfg.Engine {
	case config.EngineURing:
		err = runURing(ctx, cfg, splitCfg, reader, logger, metrics)
	case config.EngineSync, config.EngineBackground:
		err = runBuffered(ctx, cfg, splitCfg, reader, logger, metrics)
	}
	if err != nil {
		return err
	}

	logger.Info("split complete", "duration", time.Since(start).String())
	return nil
}

func inputName(cfg *config.Config) string {
	if cfg.Stdin && cfg.File == "" {
		return "stdin"
	}
	return cfg.File
}

// outputBase derives the output naming stem from the input filename,
// stripping the input compression suffix so decoded output does not
// inherit it.
func outputBase(cfg *config.Config, itype compress.Type) string {
	if cfg.Stdin && cfg.File == "" {
		return "stdin.csv"
	}
	base := filepath.Base(cfg.File)
	switch itype {
	case compress.Gzip:
		base = strings.TrimSuffix(base, ".gz")
	case compress.Bzip:
		base = strings.TrimSuffix(strings.TrimSuffix(base, ".bz2"), ".bz")
	}
	return base
}

func openInput(cfg *config.Config) (*compress.Stream, compress.Type, error) {
	if cfg.Stdin && cfg.File == "" {
		stream, err := compress.OpenStdin(cfg.InputType())
		return stream, cfg.InputType(), err
	}
	return compress.OpenInput(cfg.File, cfg.InputType())
}

func runURing(
	ctx context.Context,
	cfg *config.Config,
	splitCfg splitter.Config,
	reader splitter.RecordReader,
	logger *slog.Logger,
	metrics *observability.Metrics,
) error {
	first := splitter.Name(splitCfg.Dir, splitCfg.Base, 1, splitCfg.SuffixLen, compress.None)
	cache, err := iocache.New(first, iocache.Options{
		QueueDepth: cfg.QueueDepth,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		return err
	}

	driver := splitter.NewDriver(cache, splitCfg, logger, metrics)
	runErr := driver.Run(ctx, reader)
	return errors.Join(runErr, cache.Close())
}

// recordWriter is the shared surface of the buffered write paths.
type recordWriter interface {
	WriteHeader(hdr []string) error
	WriteRecord(row []string) error
	Close() error
}

func runBuffered(
	ctx context.Context,
	cfg *config.Config,
	splitCfg splitter.Config,
	reader splitter.RecordReader,
	logger *slog.Logger,
	metrics *observability.Metrics,
) error {
	sw, err := splitter.NewSplitWriter(splitter.WriterConfig{
		Config:      splitCfg,
		Compression: cfg.OutputType(),
	}, logger, metrics)
	if err != nil {
		return err
	}

	var w recordWriter = sw
	if cfg.Engine == config.EngineBackground {
		w = splitter.NewBackgroundWriter(sw, cfg.ChannelDepth)
	}

	if err := feed(ctx, cfg.Header, reader, w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func feed(ctx context.Context, header bool, reader splitter.RecordReader, w recordWriter) error {
	if header {
		hdr, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if err := w.WriteHeader(hdr); err != nil {
			return err
		}
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if err := w.WriteRecord(row); err != nil {
			return err
		}
	}
}
