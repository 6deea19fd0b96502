// Copyright (c) 2025 pgload
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package job defines the immutable parameters of one import run.
// A Config is built once at startup from flags and configuration,
// validated before any connection is opened, and read-only thereafter.
package job

import (
	"fmt"
	"regexp"
	"strings"
)

// identPart matches one unquoted PostgreSQL identifier segment.
var identPart = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_$]*$`)

// Dialect describes the text format of the source file.
type Dialect struct {
	// Delimiter separates fields within a record.
	Delimiter byte
	// Quote optionally encloses fields.
	Quote byte
	// Null is the literal that represents SQL NULL. Empty string is valid.
	Null string
	// RecordTerminator separates records; may be multi-byte (e.g. "\r\n").
	RecordTerminator string
	// SkipLines is the number of leading records to discard (e.g. headers).
	SkipLines int
}

// DefaultDialect returns the comma-separated, double-quoted,
// newline-terminated dialect used when no flags override it.
func DefaultDialect() Dialect {
	return Dialect{
		Delimiter:        ',',
		Quote:            '"',
		Null:             "",
		RecordTerminator: "\n",
	}
}

// Config holds the immutable parameters for one import run.
type Config struct {
	// SourcePath is the delimited text file to load.
	SourcePath string
	// Table is the target table, optionally schema-qualified.
	Table string
	// Dialect describes the source file's text format.
	Dialect Dialect
	// Truncate requests a TRUNCATE before loading. Only honored in
	// commit mode; see EffectiveTruncate.
	Truncate bool
	// Commit enables checkpoint commits. False means dry-run.
	Commit bool
	// CommitThreshold is the checkpoint cadence in rows. Must be > 0.
	CommitThreshold int64
}

// EffectiveTruncate reports whether the target table may actually be
// truncated. A dry-run must never destroy existing data, so the truncate
// flag is only honored together with commit mode.
func (c Config) EffectiveTruncate() bool {
	return c.Truncate && c.Commit
}

// Validate checks the invariants the orchestrator relies on.
// It must pass before a loader session is opened.
func (c Config) Validate() error {
	if strings.TrimSpace(c.SourcePath) == "" {
		return fmt.Errorf("source file path is required")
	}
	if err := ValidateTableName(c.Table); err != nil {
		return err
	}
	if c.CommitThreshold <= 0 {
		return fmt.Errorf("--partial-commit-after must be positive, got %d", c.CommitThreshold)
	}
	if c.Dialect.Delimiter == 0 {
		return fmt.Errorf("delimiter must be a single character")
	}
	if c.Dialect.Quote == 0 {
		return fmt.Errorf("enclosed-by must be a single character")
	}
	if c.Dialect.Delimiter == c.Dialect.Quote {
		return fmt.Errorf("delimiter and enclosed-by must differ")
	}
	if c.Dialect.RecordTerminator == "" {
		return fmt.Errorf("record terminator must not be empty")
	}
	if strings.Contains(c.Dialect.RecordTerminator, string(c.Dialect.Delimiter)) {
		return fmt.Errorf("record terminator must not contain the delimiter")
	}
	if c.Dialect.SkipLines < 0 {
		return fmt.Errorf("--skip must be non-negative, got %d", c.Dialect.SkipLines)
	}
	return nil
}

// ValidateTableName checks that a table identifier is syntactically valid.
// Either "table" or "schema.table" is accepted.
func ValidateTableName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("table name is required")
	}
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return fmt.Errorf("invalid table name %q: expected table or schema.table", name)
	}
	for _, p := range parts {
		if !identPart.MatchString(p) {
			return fmt.Errorf("invalid table name %q: %q is not a valid identifier", name, p)
		}
	}
	return nil
}

// ParseSingleChar converts a flag value like "," or "\t" into one byte.
// The escape sequences \t, \n and \r are accepted for convenience.
func ParseSingleChar(flag, value string) (byte, error) {
	switch value {
	case `\t`:
		return '\t', nil
	case `\n`:
		return '\n', nil
	case `\r`:
		return '\r', nil
	}
	if len(value) != 1 {
		return 0, fmt.Errorf("--%s must be a single character, got %q", flag, value)
	}
	return value[0], nil
}

// ParseTerminator converts a flag value into a record terminator string,
// expanding the escape sequences \n, \r and \r\n.
func ParseTerminator(value string) (string, error) {
	switch value {
	case `\n`, "":
		return "\n", nil
	case `\r`:
		return "\r", nil
	case `\r\n`:
		return "\r\n", nil
	}
	return value, nil
}
