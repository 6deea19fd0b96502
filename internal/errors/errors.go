// Copyright (c) 2025 pgload
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages. This enables better error categorization, logging,
// and user experience by providing context-aware error information.
//
// The package supports wrapping underlying errors while maintaining error kind information,
// making it easier to handle different types of failures appropriately.
package errors

import "fmt"

// Kind is a machine-readable error category.
type Kind string

const (
	// ConnectFailed indicates the database session could not be established.
	ConnectFailed Kind = "connect_failed"
	// SourceFailed indicates the source file could not be opened or read.
	SourceFailed Kind = "source_failed"
	// IngestFailed indicates a chunk could not be handed to the COPY stream.
	IngestFailed Kind = "ingest_failed"
	// CommitFailed indicates a checkpoint commit was rejected by the server.
	CommitFailed Kind = "commit_failed"
	// TruncateFailed indicates the pre-load TRUNCATE was rejected by the server.
	TruncateFailed Kind = "truncate_failed"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying error for errors.Is/As chains.
func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }
