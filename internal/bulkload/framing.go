// Copyright (c) 2025 pgload
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bulkload

import (
	"bytes"
	"fmt"

	"pgload/cli/internal/job"
)

// framer re-assembles records from arbitrarily sliced byte chunks. Bytes
// after the last record terminator are retained until the next chunk, so
// chunk boundaries never have to align with record boundaries.
type framer struct {
	term    []byte
	partial []byte
}

func newFramer(terminator string) *framer {
	return &framer{term: []byte(terminator)}
}

// feed appends a chunk and returns the complete records it closed, in
// source order, without their terminators. Returned slices are copies and
// remain valid across calls.
func (f *framer) feed(chunk []byte) [][]byte {
	f.partial = append(f.partial, chunk...)

	var records [][]byte
	rest := f.partial
	for {
		i := bytes.Index(rest, f.term)
		if i < 0 {
			break
		}
		rec := make([]byte, i)
		copy(rec, rest[:i])
		records = append(records, rec)
		rest = rest[i+len(f.term):]
	}
	if len(records) > 0 {
		f.partial = append(f.partial[:0:0], rest...)
	}
	return records
}

// tail returns any buffered bytes as a final unterminated record and clears
// the buffer. ok is false when nothing is buffered (the usual case for files
// with a trailing terminator).
func (f *framer) tail() (rec []byte, ok bool) {
	if len(f.partial) == 0 {
		return nil, false
	}
	rec = f.partial
	f.partial = nil
	return rec, true
}

// validateRecord checks one record against the dialect: quoting must be
// balanced and, when wantFields is positive, the field count must match the
// target table's column count. The record must already be terminator-free.
func validateRecord(rec []byte, d job.Dialect, wantFields int) error {
	fields := 1
	inQuote := false
	for i := 0; i < len(rec); i++ {
		b := rec[i]
		switch {
		case inQuote:
			if b == d.Quote {
				if i+1 < len(rec) && rec[i+1] == d.Quote {
					i++ // doubled quote inside a quoted field
				} else {
					inQuote = false
				}
			}
		case b == d.Quote:
			inQuote = true
		case b == d.Delimiter:
			fields++
		}
	}
	if inQuote {
		return fmt.Errorf("unterminated quoted field")
	}
	if wantFields > 0 && fields != wantFields {
		return fmt.Errorf("expected %d fields, got %d", wantFields, fields)
	}
	return nil
}
