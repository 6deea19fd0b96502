// Copyright (c) 2025 pgload
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package logging provides utilities for secure logging and error presentation.
// It defines the small leveled Logger capability that the import orchestrator
// and the COPY session receive at construction, plus helpers for masking
// sensitive information in anything surfaced to the terminal.
package logging

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
)

// Level is a log severity threshold.
type Level int

const (
	// LevelError emits only errors.
	LevelError Level = iota
	// LevelWarning emits warnings and errors.
	LevelWarning
	// LevelInfo emits everything.
	LevelInfo
)

// ParseLevel converts a --log flag value into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LevelError, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "info", "":
		return LevelInfo, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q (use error, warning or info)", s)
}

// Logger is the leveled logging capability injected into the orchestrator
// and the loader session. Implementations must be safe for sequential use;
// pgload never logs concurrently.
type Logger interface {
	Error(msg string)
	Warning(msg string)
	Info(msg string)
}

// TermLogger renders leveled messages through pterm's prefix printers,
// filtered by a severity threshold.
type TermLogger struct {
	Threshold Level
}

// NewTermLogger creates a terminal logger with the given threshold.
func NewTermLogger(threshold Level) *TermLogger {
	return &TermLogger{Threshold: threshold}
}

func (l *TermLogger) Error(msg string) {
	pterm.Error.Println(Mask(msg))
}

func (l *TermLogger) Warning(msg string) {
	if l.Threshold >= LevelWarning {
		pterm.Warning.Println(Mask(msg))
	}
}

func (l *TermLogger) Info(msg string) {
	if l.Threshold >= LevelInfo {
		pterm.Info.Println(Mask(msg))
	}
}
