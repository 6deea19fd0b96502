// Copyright (c) 2025 pgload
// Licensed under the MIT License. See LICENSE file in the project root for details.

package importer

import (
	"strings"

	"pgload/cli/internal/logging"
)

// ErrorSink renders a drained ErrorReport as one log record per line, at
// error severity, in report order. Lines are emitted exactly once and never
// mutated beyond stripping trailing line-terminator characters.
type ErrorSink struct {
	Log logging.Logger
}

// Emit logs every line of the report and returns how many were emitted.
// A report without errors is a no-op.
func (s *ErrorSink) Emit(report ErrorReport) int {
	if !report.HasErrors() {
		return 0
	}
	for _, line := range report.Lines {
		s.Log.Error("batch error: " + strings.TrimRight(line, "\r\n"))
	}
	return len(report.Lines)
}
