// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package config loads the optional YAML configuration files for the
// filereceiver and fileuploader commands. Every field except logging.file
// can also be given on the command line, and the command-line value wins
// when both are given; logging.file can only be set here.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoggingInfo controls the shared slog setup described in logging.NewLogger.
type LoggingInfo struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// ReceiverConfig is the optional file backing the filereceiver command.
type ReceiverConfig struct {
	Port    uint16      `yaml:"port"`
	Logging LoggingInfo `yaml:"logging"`
}

// UploaderConfig is the optional file backing the fileuploader command.
type UploaderConfig struct {
	Host      string      `yaml:"host"`
	Port      uint16      `yaml:"port"`
	RateLimit int64       `yaml:"rate_limit"` // bytes/sec; 0 or absent disables rate limiting
	Logging   LoggingInfo `yaml:"logging"`
}

// LoadReceiverConfig reads and parses a filereceiver YAML config file.
func LoadReceiverConfig(path string) (*ReceiverConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading receiver config: %w", err)
	}

	var cfg ReceiverConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing receiver config: %w", err)
	}
	return &cfg, nil
}

// LoadUploaderConfig reads and parses a fileuploader YAML config file.
func LoadUploaderConfig(path string) (*UploaderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading uploader config: %w", err)
	}

	var cfg UploaderConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing uploader config: %w", err)
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must not be negative, got %d", cfg.RateLimit)
	}
	return &cfg, nil
}
