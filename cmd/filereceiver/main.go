// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/nishisan-dev/filestreamer/internal/config"
	"github.com/nishisan-dev/filestreamer/internal/logging"
	"github.com/nishisan-dev/filestreamer/internal/receiver"
)

func main() {
	configPath := flag.String("config", "", "path to an optional YAML defaults file")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (default info)")
	logFormat := flag.String("log-format", "", "log format: json, text (default json)")
	flag.Parse()

	var cfg config.ReceiverConfig
	if *configPath != "" {
		loaded, err := config.LoadReceiverConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = *loaded
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	if flag.NArg() >= 1 {
		port, err := strconv.ParseUint(flag.Arg(0), 10, 16)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid PORT %q: %v\n", flag.Arg(0), err)
			os.Exit(1)
		}
		cfg.Port = uint16(port)
	}

	if cfg.Port == 0 {
		fmt.Fprintln(os.Stderr, "Usage: filereceiver [flags] PORT")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger, logCloser := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer logCloser.Close()

	r := receiver.New(cfg.Port, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, stopping after current transfer", "signal", sig)
		r.Stop()
	}()

	if err := r.Start(); err != nil {
		logger.Error("receiver error", "error", err)
		os.Exit(1)
	}
}
