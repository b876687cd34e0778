/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	mu           sync.RWMutex
	globalLogger *log.Logger
)

type Config struct {
	Level   string   // debug/info/warn/error
	Outputs []string // stderr/stdout/file path
}

// New builds a logger writing to every configured output. Files are
// opened for append and stay open for the life of the process.
func New(cfg Config, stdout, stderr io.Writer) (*log.Logger, error) {
	level := log.InfoLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	var writers []io.Writer
	for _, output := range cfg.Outputs {
		switch output {
		case "", "stderr":
			writers = append(writers, stderr)
		case "stdout":
			writers = append(writers, stdout)
		default:
			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %w", err)
			}
			file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("failed to open log file: %w", err)
			}
			writers = append(writers, file)
		}
	}
	if len(writers) == 0 {
		writers = append(writers, stderr)
	}

	return log.NewWithOptions(io.MultiWriter(writers...), log.Options{
		Level:           level,
		Prefix:          "audioplay",
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	}), nil
}

// Init installs the process-wide logger on the process's own streams
func Init(cfg Config) error {
	return InitWriters(cfg, os.Stdout, os.Stderr)
}

// InitWriters installs the process-wide logger, resolving the "stdout"
// and "stderr" outputs to the given writers. The logger also becomes
// charmbracelet's default, so components handed a nil logger follow it.
func InitWriters(cfg Config, stdout, stderr io.Writer) error {
	l, err := New(cfg, stdout, stderr)
	if err != nil {
		return err
	}
	mu.Lock()
	globalLogger = l
	mu.Unlock()
	log.SetDefault(l)
	return nil
}

// Logger returns the process-wide logger, or charmbracelet's default
// before Init
func Logger() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger == nil {
		return log.Default()
	}
	return globalLogger
}

func Debug(msg string, args ...interface{}) {
	Logger().Debug(msg, args...)
}

func Info(msg string, args ...interface{}) {
	Logger().Info(msg, args...)
}

func Warn(msg string, args ...interface{}) {
	Logger().Warn(msg, args...)
}

func Error(msg string, args ...interface{}) {
	Logger().Error(msg, args...)
}
