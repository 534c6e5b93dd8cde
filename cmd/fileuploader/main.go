// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nishisan-dev/filestreamer/internal/config"
	"github.com/nishisan-dev/filestreamer/internal/logging"
	"github.com/nishisan-dev/filestreamer/internal/uploader"
)

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func main() {
	configPath := flag.String("config", "", "path to an optional YAML defaults file")
	host := flag.String("host", "", "receiver host (default 127.0.0.1)")
	port := flag.Uint("port", 0, "receiver port")
	rateLimit := flag.Int64("rate-limit", -1, "bytes/sec rate limit; 0 disables it (default: from config, or unlimited)")
	showProgress := flag.Bool("progress", false, "show a terminal progress bar while uploading")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (default info)")
	logFormat := flag.String("log-format", "", "log format: json, text (default json)")
	flag.Parse()

	var cfg config.UploaderConfig
	if *configPath != "" {
		loaded, err := config.LoadUploaderConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = *loaded
	}

	if *host != "" {
		cfg.Host = *host
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if *port != 0 {
		cfg.Port = uint16(*port)
	}
	if *rateLimit >= 0 {
		cfg.RateLimit = *rateLimit
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	if flag.NArg() < 1 || cfg.Port == 0 {
		fmt.Fprintln(os.Stderr, "Usage: fileuploader [flags] --port PORT FILE")
		flag.PrintDefaults()
		os.Exit(1)
	}
	path := flag.Arg(0)

	logger, logCloser := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, aborting upload", "signal", sig)
		cancel()
	}()

	var progress *uploader.ProgressReporter
	if *showProgress {
		progress = uploader.NewProgressReporter(path, fileSize(path))
	}

	stats, err := uploader.Upload(ctx, cfg.Host, cfg.Port, path, cfg.RateLimit, logger, progress)
	if progress != nil {
		progress.Stop()
	}
	if err != nil {
		logger.Error("upload failed", "error", err)
		os.Exit(1)
	}

	logger.Info("upload finished",
		"bytes", stats.BytesTransferred,
		"elapsed_seconds", stats.Elapsed.Seconds(),
		"average_bytes_per_sec", stats.AverageBytesPerSec,
	)
}
