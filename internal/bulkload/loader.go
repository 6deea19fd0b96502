// Copyright (c) 2025 pgload
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package bulkload implements the warehouse side of an import run: a single
// PostgreSQL session that streams framed records into COPY ... FROM STDIN.
//
// The session owns record framing and transaction control. Raw chunks from
// the orchestrator are split on the record terminator; well-formed records
// flow into an in-flight COPY statement opened lazily inside an explicit
// transaction, malformed records are diverted to a pending error buffer and
// reported at the next checkpoint instead of aborting the load. Each commit
// ends the current COPY, verifies the server's row count and commits; the
// next record opens a fresh transaction. A session that is closed without
// commits rolls everything back, which is what makes dry-runs side-effect
// free.
package bulkload

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pgload/cli/internal/importer"
	"pgload/cli/internal/job"
	"pgload/cli/internal/logging"
)

// errSessionClosed is returned by operations on a closed session.
var errSessionClosed = errors.New("bulkload: session is closed")

// Session is the loader the orchestrator drives.
var _ importer.Loader = (*Session)(nil)

// copyResult carries the outcome of one COPY statement from the pipe
// goroutine back to the session.
type copyResult struct {
	tag pgconn.CommandTag
	err error
}

// Session is one bulk-load channel into a PostgreSQL table. It is not safe
// for concurrent use; the orchestrator owns it exclusively for the run.
type Session struct {
	conn    *pgx.Conn
	log     logging.Logger
	table   string // quoted, possibly schema-qualified
	columns []string
	dialect job.Dialect
	copySQL string

	framer *framer
	skip   int
	line   int64 // physical records seen, including skipped and rejected
	rows   int64 // records handed to the COPY stream since session start
	sent   int64 // records in the current uncommitted batch
	errs   []string

	// in-flight COPY plumbing
	copyCtx    context.Context
	cancelCopy context.CancelFunc
	pw         *io.PipeWriter
	copyDone   chan copyResult
	inTx       bool
	closed     bool
}

// Open connects to the database and prepares a session for the target
// table. The table's column list is resolved up front: it drives both the
// COPY statement and the per-record field-count validation.
func Open(ctx context.Context, connString, table string, dialect job.Dialect, log logging.Logger) (*Session, error) {
	if err := job.ValidateTableName(table); err != nil {
		return nil, err
	}

	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	columns, err := tableColumns(ctx, conn, table)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}

	copyCtx, cancel := context.WithCancel(context.Background())
	return &Session{
		conn:       conn,
		log:        log,
		table:      QuoteIdent(table),
		columns:    columns,
		dialect:    dialect,
		copySQL:    BuildCopySQL(table, columns, dialect),
		framer:     newFramer(dialect.RecordTerminator),
		skip:       dialect.SkipLines,
		copyCtx:    copyCtx,
		cancelCopy: cancel,
	}, nil
}

// Columns returns the target table's loadable columns in ordinal order.
func (s *Session) Columns() []string { return s.columns }

// ServerVersion reports the connected server's version string.
func (s *Session) ServerVersion() string {
	return s.conn.PgConn().ParameterStatus("server_version")
}

// Ingest forwards one raw chunk into the bulk-load channel. Chunk
// boundaries need not align with record boundaries.
func (s *Session) Ingest(ctx context.Context, chunk []byte) error {
	if s.closed {
		return errSessionClosed
	}
	for _, rec := range s.framer.feed(chunk) {
		if err := s.submit(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Flush frames any buffered tail bytes as a final record. Files without a
// trailing terminator would otherwise silently lose their last row.
func (s *Session) Flush(ctx context.Context) error {
	if s.closed {
		return errSessionClosed
	}
	if rec, ok := s.framer.tail(); ok {
		return s.submit(ctx, rec)
	}
	return nil
}

// submit validates one record and streams it into the in-flight COPY.
func (s *Session) submit(ctx context.Context, rec []byte) error {
	s.line++
	if s.skip > 0 {
		s.skip--
		return nil
	}
	// Tolerate CRLF sources when loading with the default terminator.
	if s.dialect.RecordTerminator == "\n" && len(rec) > 0 && rec[len(rec)-1] == '\r' {
		rec = rec[:len(rec)-1]
	}
	if err := validateRecord(rec, s.dialect, len(s.columns)); err != nil {
		s.errs = append(s.errs, fmt.Sprintf("line %d: %v: %s", s.line, err, rec))
		return nil
	}
	if err := s.ensureCopy(ctx); err != nil {
		return err
	}
	if _, err := s.pw.Write(rec); err != nil {
		return s.copyFailure(err)
	}
	if _, err := s.pw.Write([]byte{'\n'}); err != nil {
		return s.copyFailure(err)
	}
	s.rows++
	s.sent++
	return nil
}

// ensureCopy lazily opens the transaction and COPY statement for the
// current batch. The COPY runs in its own goroutine reading from a pipe;
// the session stays blocking and single-threaded from the caller's view.
func (s *Session) ensureCopy(ctx context.Context) error {
	if s.pw != nil {
		return nil
	}
	if !s.inTx {
		if _, err := s.conn.Exec(ctx, "BEGIN"); err != nil {
			return err
		}
		s.inTx = true
	}

	pr, pw := io.Pipe()
	s.pw = pw
	done := make(chan copyResult, 1)
	s.copyDone = done
	go func() {
		tag, err := s.conn.PgConn().CopyFrom(s.copyCtx, pr, s.copySQL)
		// Unblock any writer stuck on the pipe when COPY ends early.
		pr.CloseWithError(err)
		done <- copyResult{tag: tag, err: err}
	}()
	return nil
}

// copyFailure recovers the real COPY error after a pipe write failed.
func (s *Session) copyFailure(writeErr error) error {
	res := <-s.copyDone
	s.pw = nil
	s.copyDone = nil
	if res.err != nil {
		return res.err
	}
	return writeErr
}

// endCopy completes the in-flight COPY statement and returns the server's
// row count for the batch. A session without an in-flight COPY returns 0.
func (s *Session) endCopy() (int64, error) {
	if s.pw == nil {
		return 0, nil
	}
	err := s.pw.Close()
	res := <-s.copyDone
	s.pw = nil
	s.copyDone = nil
	if res.err != nil {
		return 0, res.err
	}
	if err != nil {
		return 0, err
	}
	return res.tag.RowsAffected(), nil
}

// RowCount returns the number of records handed to the COPY stream since
// the session was opened. The counter is monotonic; commits do not reset it.
func (s *Session) RowCount() int64 { return s.rows }

// DrainErrors returns and clears the buffered non-fatal row errors.
func (s *Session) DrainErrors() importer.ErrorReport {
	lines := s.errs
	s.errs = nil
	return importer.ErrorReport{Lines: lines}
}

// Commit ends the current COPY batch and commits it. With no open
// transaction it is a legal no-op, so committing an empty load is fine.
func (s *Session) Commit(ctx context.Context) error {
	if s.closed {
		return errSessionClosed
	}
	copied, err := s.endCopy()
	if err != nil {
		// The transaction is aborted server-side; drop it so a later
		// close does not mask this failure.
		s.rollback(ctx)
		return err
	}
	if !s.inTx {
		return nil
	}
	if _, err := s.conn.Exec(ctx, "COMMIT"); err != nil {
		return err
	}
	s.inTx = false
	if copied != s.sent {
		s.log.Warning(fmt.Sprintf("server committed %d rows but client submitted %d", copied, s.sent))
	}
	s.sent = 0
	return nil
}

// Truncate empties the target table. It runs outside the load transaction
// and must only be called before the first ingest.
func (s *Session) Truncate(ctx context.Context) error {
	if s.closed {
		return errSessionClosed
	}
	_, err := s.conn.Exec(ctx, "TRUNCATE TABLE "+s.table)
	return err
}

func (s *Session) rollback(ctx context.Context) {
	if s.inTx {
		_, _ = s.conn.Exec(ctx, "ROLLBACK")
		s.inTx = false
	}
}

// Close finalizes the session: the in-flight COPY is completed so the
// server parses every submitted row (dry-run validation), any uncommitted
// work is rolled back and the connection is released. Close is idempotent.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if _, err := s.endCopy(); err != nil {
		firstErr = err
		s.log.Warning(logging.PresentError("finalizing COPY", err))
	}
	s.rollback(ctx)
	s.cancelCopy()
	if err := s.conn.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
