// Copyright (c) 2025 pgload
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package importer drives one bulk-load job end to end. It reads the source
// file in bounded chunks, forwards them to the loader session, and enforces
// the checkpoint policy: whenever the loader's row counter crosses a multiple
// of the commit threshold, buffered row errors are drained and, in commit
// mode, the work submitted so far is committed. A final checkpoint after end
// of stream guarantees every run ends with one, so rows and errors past the
// last threshold crossing are never lost.
//
// The orchestrator is fully synchronous and single-threaded: it never
// overlaps loader communication with the next chunk read, and rows reach the
// loader strictly in source-file order.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"

	"pgload/cli/internal/errors"
	"pgload/cli/internal/job"
	"pgload/cli/internal/logging"
)

// DefaultChunkSize is the read size used when the orchestrator is not
// configured with one. Chunk boundaries need not align with records;
// the loader handles framing.
const DefaultChunkSize = 1 << 20

// Loader is the warehouse session the orchestrator feeds. Implementations
// own the bulk-load channel: connection state, record framing, transaction
// control. The session is opened before Run and closed by the caller after
// Run returns; the orchestrator has exclusive use of it in between.
type Loader interface {
	// Ingest forwards a raw byte chunk into the bulk-load channel.
	Ingest(ctx context.Context, chunk []byte) error
	// RowCount returns the monotonic count of rows handed to the channel
	// since session start. Commits do not reset it.
	RowCount() int64
	// DrainErrors returns and clears the currently buffered non-fatal
	// row errors.
	DrainErrors() ErrorReport
	// Flush frames any buffered tail bytes (a final record without a
	// trailing terminator) as a record. Called once, at end of stream.
	Flush(ctx context.Context) error
	// Commit commits the rows submitted since the previous commit.
	Commit(ctx context.Context) error
	// Truncate empties the target table.
	Truncate(ctx context.Context) error
}

// ErrorReport carries the non-fatal row errors drained at a checkpoint.
// It is consumed exactly once and not retained by the orchestrator.
type ErrorReport struct {
	Lines []string
}

// HasErrors reports whether the report contains any error lines.
func (r ErrorReport) HasErrors() bool { return len(r.Lines) > 0 }

// RunResult summarizes a completed run.
type RunResult struct {
	// Rows is the total number of rows submitted to the loader.
	Rows int64
	// Checkpoints is the number of checkpoints performed, including the
	// final one.
	Checkpoints int
	// ErrorLines is the total number of non-fatal row errors reported.
	ErrorLines int
	// Committed reports whether the run was in commit mode.
	Committed bool
}

// Orchestrator executes import jobs. The zero value is usable once Log is
// set; ChunkSize and Progress are optional.
type Orchestrator struct {
	// Log receives run status and row-error lines.
	Log logging.Logger
	// ChunkSize overrides DefaultChunkSize when positive.
	ChunkSize int
	// Progress, when set, is invoked after every chunk with cumulative
	// bytes read and rows submitted.
	Progress func(bytesRead, rows int64)
}

// Run executes one import job against an opened loader session.
//
// Any failure to open or read the source, or any error returned by the
// loader, is fatal: the run aborts immediately, no further chunks are
// processed, and the error propagates to the caller. Work committed at
// earlier checkpoints is left intact. Non-fatal row errors never abort
// the run; they are logged through the error sink at each checkpoint.
func (o *Orchestrator) Run(ctx context.Context, cfg job.Config, loader Loader) (RunResult, error) {
	result := RunResult{Committed: cfg.Commit}
	sink := &ErrorSink{Log: o.Log}

	lastCheckpointRows := int64(-1)
	checkpoint := func() error {
		result.ErrorLines += sink.Emit(loader.DrainErrors())
		if cfg.Commit {
			if err := loader.Commit(ctx); err != nil {
				return errors.Wrap(errors.CommitFailed, "checkpoint commit failed", err)
			}
		}
		result.Checkpoints++
		lastCheckpointRows = loader.RowCount()
		return nil
	}

	if cfg.EffectiveTruncate() {
		if err := loader.Truncate(ctx); err != nil {
			result.Rows = loader.RowCount()
			return result, errors.Wrap(errors.TruncateFailed, fmt.Sprintf("truncating %s", cfg.Table), err)
		}
		o.Log.Info(fmt.Sprintf("truncated table %s", cfg.Table))
	}

	src, err := os.Open(cfg.SourcePath)
	if err != nil {
		return result, errors.Wrap(errors.SourceFailed, fmt.Sprintf("opening %s", cfg.SourcePath), err)
	}
	defer src.Close()

	chunkSize := o.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	buf := make([]byte, chunkSize)

	var bytesRead int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if err := loader.Ingest(ctx, buf[:n]); err != nil {
				result.Rows = loader.RowCount()
				return result, errors.Wrap(errors.IngestFailed, fmt.Sprintf("after %d bytes", bytesRead), err)
			}
			bytesRead += int64(n)
			count := loader.RowCount()
			if o.Progress != nil {
				o.Progress(bytesRead, count)
			}
			// Checkpoint on crossing an exact positive multiple of the
			// threshold; the counter drives the cadence, not the chunks.
			if count > 0 && count%cfg.CommitThreshold == 0 {
				if err := checkpoint(); err != nil {
					result.Rows = count
					return result, err
				}
			}
		}
		if rerr == io.EOF || (rerr == nil && n == 0) {
			break
		}
		if rerr != nil {
			result.Rows = loader.RowCount()
			return result, errors.Wrap(errors.SourceFailed, fmt.Sprintf("reading %s", cfg.SourcePath), rerr)
		}
	}

	if err := loader.Flush(ctx); err != nil {
		result.Rows = loader.RowCount()
		return result, errors.Wrap(errors.IngestFailed, "flushing final record", err)
	}
	if o.Progress != nil {
		o.Progress(bytesRead, loader.RowCount())
	}

	// Final checkpoint: an empty source still drains errors once and, in
	// commit mode, issues one commit. When the in-loop checkpoint already
	// covered every submitted row it is not repeated.
	rows := loader.RowCount()
	if lastCheckpointRows != rows {
		if err := checkpoint(); err != nil {
			result.Rows = rows
			return result, err
		}
	}

	result.Rows = rows
	return result, nil
}
