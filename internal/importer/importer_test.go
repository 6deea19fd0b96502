// Copyright (c) 2025 pgload
// Licensed under the MIT License. See LICENSE file in the project root for details.

package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgerrors "pgload/cli/internal/errors"
	"pgload/cli/internal/job"
)

// memLogger captures leveled log lines for assertions.
type memLogger struct {
	errors   []string
	warnings []string
	infos    []string
}

func (l *memLogger) Error(msg string)   { l.errors = append(l.errors, msg) }
func (l *memLogger) Warning(msg string) { l.warnings = append(l.warnings, msg) }
func (l *memLogger) Info(msg string)    { l.infos = append(l.infos, msg) }

// fakeLoader simulates a bulk-load session. Each ingested chunk advances the
// row counter by one row per 'R' byte, so tests control row cadence through
// the source file contents.
type fakeLoader struct {
	rows    int64
	pending []string
	calls   []string

	// errAfterRow queues error lines the moment the counter passes a row.
	errAt map[int64][]string

	ingestErr   error
	ingestErrOn int // 1-based ingest call that fails; 0 means never
	commitErr   error
	truncateErr error
	ingests     int
}

func (f *fakeLoader) Ingest(ctx context.Context, chunk []byte) error {
	f.ingests++
	f.calls = append(f.calls, fmt.Sprintf("ingest:%d", len(chunk)))
	if f.ingestErrOn != 0 && f.ingests >= f.ingestErrOn {
		return f.ingestErr
	}
	for _, b := range chunk {
		if b == 'R' {
			f.rows++
			if lines, ok := f.errAt[f.rows]; ok {
				f.pending = append(f.pending, lines...)
			}
		}
	}
	return nil
}

func (f *fakeLoader) RowCount() int64 { return f.rows }

func (f *fakeLoader) DrainErrors() ErrorReport {
	f.calls = append(f.calls, "drain")
	lines := f.pending
	f.pending = nil
	return ErrorReport{Lines: lines}
}

func (f *fakeLoader) Flush(ctx context.Context) error {
	f.calls = append(f.calls, "flush")
	return nil
}

func (f *fakeLoader) Commit(ctx context.Context) error {
	f.calls = append(f.calls, "commit")
	return f.commitErr
}

func (f *fakeLoader) Truncate(ctx context.Context) error {
	f.calls = append(f.calls, "truncate")
	return f.truncateErr
}

func (f *fakeLoader) commits() int {
	n := 0
	for _, c := range f.calls {
		if c == "commit" {
			n++
		}
	}
	return n
}

// writeSource creates a temp file containing count 'R' bytes, one per row
// the fake loader will report.
func writeSource(t *testing.T, count int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.csv")
	if err := os.WriteFile(path, bytes.Repeat([]byte{'R'}, count), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T, rows int, threshold int64, commit bool) job.Config {
	t.Helper()
	return job.Config{
		SourcePath:      writeSource(t, rows),
		Table:           "public.events",
		Dialect:         job.DefaultDialect(),
		Commit:          commit,
		CommitThreshold: threshold,
	}
}

func newOrchestrator(log *memLogger, chunkSize int) *Orchestrator {
	return &Orchestrator{Log: log, ChunkSize: chunkSize}
}

func TestRunCommitModeCheckpoints(t *testing.T) {
	// Scenario A: 10,000 rows, threshold 5,000, commit mode, truncate set.
	log := &memLogger{}
	loader := &fakeLoader{}
	cfg := testConfig(t, 10_000, 5_000, true)
	cfg.Truncate = true

	res, err := newOrchestrator(log, 1_000).Run(context.Background(), cfg, loader)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Rows != 10_000 {
		t.Errorf("Rows = %d, want 10000", res.Rows)
	}
	if res.Checkpoints != 2 {
		t.Errorf("Checkpoints = %d, want 2", res.Checkpoints)
	}
	if loader.commits() != 2 {
		t.Errorf("commits = %d, want 2", loader.commits())
	}
	if res.ErrorLines != 0 || len(log.errors) != 0 {
		t.Errorf("unexpected error lines: %d / %v", res.ErrorLines, log.errors)
	}
	if !res.Committed {
		t.Error("Committed = false, want true")
	}
	if loader.calls[0] != "truncate" {
		t.Errorf("first call = %q, want truncate before any ingest", loader.calls[0])
	}
}

func TestRunDryRunReportsErrorsWithoutCommit(t *testing.T) {
	// Scenario B: 3 malformed rows before row 5,000, threshold 5,000, dry-run.
	log := &memLogger{}
	loader := &fakeLoader{
		errAt: map[int64][]string{
			10:  {"line 10: unterminated quoted field\n"},
			200: {"line 200: expected 4 fields, got 3\r\n"},
			999: {"line 999: unterminated quoted field"},
		},
	}
	cfg := testConfig(t, 10_000, 5_000, false)
	cfg.Truncate = true // must be suppressed in dry-run

	res, err := newOrchestrator(log, 1_000).Run(context.Background(), cfg, loader)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Checkpoints != 2 {
		t.Errorf("Checkpoints = %d, want 2", res.Checkpoints)
	}
	if loader.commits() != 0 {
		t.Errorf("commits = %d, want 0 in dry-run", loader.commits())
	}
	for _, c := range loader.calls {
		if c == "truncate" {
			t.Error("truncate called in dry-run")
		}
	}
	if res.ErrorLines != 3 {
		t.Errorf("ErrorLines = %d, want 3", res.ErrorLines)
	}
	want := []string{
		"batch error: line 10: unterminated quoted field",
		"batch error: line 200: expected 4 fields, got 3",
		"batch error: line 999: unterminated quoted field",
	}
	if len(log.errors) != len(want) {
		t.Fatalf("logged %d error lines, want %d: %v", len(log.errors), len(want), log.errors)
	}
	for i := range want {
		if log.errors[i] != want[i] {
			t.Errorf("error[%d] = %q, want %q", i, log.errors[i], want[i])
		}
	}
	if res.Committed {
		t.Error("Committed = true in dry-run")
	}
}

func TestRunEmptySource(t *testing.T) {
	// Scenario C: empty file, commit mode.
	log := &memLogger{}
	loader := &fakeLoader{}
	cfg := testConfig(t, 0, 5_000, true)

	res, err := newOrchestrator(log, 1_000).Run(context.Background(), cfg, loader)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Rows != 0 {
		t.Errorf("Rows = %d, want 0", res.Rows)
	}
	if res.Checkpoints != 1 {
		t.Errorf("Checkpoints = %d, want 1 (the final one)", res.Checkpoints)
	}
	if loader.commits() != 1 {
		t.Errorf("commits = %d, want 1 (commit of nothing is a no-op)", loader.commits())
	}
}

func TestRunThresholdOne(t *testing.T) {
	// Scenario D: threshold 1, 3 rows, one row per chunk.
	log := &memLogger{}
	loader := &fakeLoader{}
	cfg := testConfig(t, 3, 1, true)

	res, err := newOrchestrator(log, 1).Run(context.Background(), cfg, loader)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Checkpoints < 3 {
		t.Errorf("Checkpoints = %d, want at least one per row", res.Checkpoints)
	}
	if loader.commits() != res.Checkpoints {
		t.Errorf("commits = %d, checkpoints = %d; want equal", loader.commits(), res.Checkpoints)
	}
}

func TestRunCheckpointCountFormula(t *testing.T) {
	// floor(R/T) checkpoints on multiples plus a final one unless the
	// counter ended exactly on a multiple; minimum 1 for any completed run.
	tests := []struct {
		name      string
		rows      int
		threshold int64
		want      int
	}{
		{name: "threshold larger than row count", rows: 10, threshold: 100, want: 1},
		{name: "exact multiple", rows: 100, threshold: 25, want: 4},
		{name: "remainder rows", rows: 105, threshold: 25, want: 5},
		{name: "single row", rows: 1, threshold: 10, want: 1},
		{name: "empty", rows: 0, threshold: 10, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &memLogger{}
			loader := &fakeLoader{}
			cfg := testConfig(t, tt.rows, tt.threshold, false)

			res, err := newOrchestrator(log, 1).Run(context.Background(), cfg, loader)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if res.Checkpoints != tt.want {
				t.Errorf("Checkpoints = %d, want %d", res.Checkpoints, tt.want)
			}
		})
	}
}

func TestRunDryRunIsRepeatable(t *testing.T) {
	log := &memLogger{}
	cfg := testConfig(t, 250, 100, false)

	run := func() RunResult {
		loader := &fakeLoader{errAt: map[int64][]string{42: {"line 42: bad"}}}
		res, err := newOrchestrator(log, 7).Run(context.Background(), cfg, loader)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return res
	}

	first := run()
	second := run()
	if first != second {
		t.Errorf("dry-run not repeatable: first %+v, second %+v", first, second)
	}
}

func TestRunFatalIngestAborts(t *testing.T) {
	log := &memLogger{}
	boom := errors.New("connection reset")
	loader := &fakeLoader{ingestErr: boom, ingestErrOn: 3}
	cfg := testConfig(t, 1_000, 100, true)

	_, err := newOrchestrator(log, 10).Run(context.Background(), cfg, loader)
	if err == nil {
		t.Fatal("Run() error = nil, want fatal error")
	}
	var e *pgerrors.E
	if !errors.As(err, &e) || e.Kind != pgerrors.IngestFailed {
		t.Errorf("error = %v, want kind %s", err, pgerrors.IngestFailed)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error chain does not contain the cause: %v", err)
	}
	if loader.ingests != 3 {
		t.Errorf("ingests = %d, want abort on chunk 3 with no further reads", loader.ingests)
	}
}

func TestRunFatalCommitKeepsEarlierCheckpoints(t *testing.T) {
	log := &memLogger{}
	loader := &fakeLoader{}
	cfg := testConfig(t, 300, 100, true)

	// First commit succeeds, second fails.
	committed := 0
	loader.commitErr = nil
	o := newOrchestrator(log, 100)

	// Wrap the fake to fail the second commit.
	fl := &commitFailLoader{fakeLoader: loader, failOn: 2, count: &committed}
	res, err := o.Run(context.Background(), cfg, fl)
	if err == nil {
		t.Fatal("Run() error = nil, want commit failure")
	}
	var e *pgerrors.E
	if !errors.As(err, &e) || e.Kind != pgerrors.CommitFailed {
		t.Errorf("error = %v, want kind %s", err, pgerrors.CommitFailed)
	}
	if res.Checkpoints != 1 {
		t.Errorf("Checkpoints = %d, want exactly the one that succeeded", res.Checkpoints)
	}
}

// commitFailLoader fails the Nth commit.
type commitFailLoader struct {
	*fakeLoader
	failOn int
	count  *int
}

func (c *commitFailLoader) Commit(ctx context.Context) error {
	*c.count++
	if *c.count == c.failOn {
		return errors.New("server closed the connection unexpectedly")
	}
	return c.fakeLoader.Commit(ctx)
}

func TestRunMissingSourceIsFatal(t *testing.T) {
	log := &memLogger{}
	loader := &fakeLoader{}
	cfg := job.Config{
		SourcePath:      filepath.Join(t.TempDir(), "does-not-exist.csv"),
		Table:           "events",
		Dialect:         job.DefaultDialect(),
		CommitThreshold: 100,
	}

	_, err := newOrchestrator(log, 10).Run(context.Background(), cfg, loader)
	if err == nil {
		t.Fatal("Run() error = nil, want source failure")
	}
	var e *pgerrors.E
	if !errors.As(err, &e) || e.Kind != pgerrors.SourceFailed {
		t.Errorf("error = %v, want kind %s", err, pgerrors.SourceFailed)
	}
	if loader.ingests != 0 {
		t.Errorf("ingests = %d, want 0 after open failure", loader.ingests)
	}
}

func TestRunFlushBeforeFinalCheckpoint(t *testing.T) {
	log := &memLogger{}
	loader := &fakeLoader{}
	cfg := testConfig(t, 5, 100, true)

	if _, err := newOrchestrator(log, 2).Run(context.Background(), cfg, loader); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	joined := strings.Join(loader.calls, ",")
	if !strings.Contains(joined, "flush,drain,commit") {
		t.Errorf("final sequence = %v, want flush before the final drain+commit", loader.calls)
	}
}
