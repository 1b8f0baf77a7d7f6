// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"errors"
	"fmt"
)

// Sentinel errors for structure retrieval.
var (
	// ErrParseFailure indicates a single file's structure could not be
	// produced: the source was malformed, the tool failed, or the file could
	// not be read. Callers skip the file and continue the batch.
	//
	// Every *ParseError matches this sentinel via errors.Is.
	ErrParseFailure = errors.New("parse failure")

	// ErrUnknownSource indicates an unrecognized source name in configuration.
	ErrUnknownSource = errors.New("unknown ast source")
)

// ParseError describes why the structure of one file could not be produced.
//
// Example:
//
//	root, err := src.Structure(ctx, path, content)
//	var parseErr *ParseError
//	if errors.As(err, &parseErr) {
//	    logger.Warn("skipping file", "file", parseErr.FilePath, "error", parseErr.Message)
//	}
type ParseError struct {
	// FilePath is the file whose structure could not be produced.
	FilePath string

	// Source names the source that failed ("sourcekitten", "treesitter").
	Source string

	// Message describes the failure.
	Message string

	// Cause is the underlying error. May be nil.
	Cause error
}

// Error formats the failure as "path: source: message".
func (e *ParseError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.FilePath, e.Source, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is makes every ParseError match ErrParseFailure.
func (e *ParseError) Is(target error) bool {
	return target == ErrParseFailure
}

// NewParseError creates a ParseError for filePath.
func NewParseError(filePath, source, message string, cause error) *ParseError {
	return &ParseError{
		FilePath: filePath,
		Source:   source,
		Message:  message,
		Cause:    cause,
	}
}

// AsParseFailure returns err unchanged if it already matches ErrParseFailure,
// otherwise wraps it in a ParseError. Returns nil for a nil err.
func AsParseFailure(err error, filePath, source string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrParseFailure) {
		return err
	}
	return NewParseError(filePath, source, err.Error(), err)
}

// IsParseFailure reports whether err is or wraps ErrParseFailure.
func IsParseFailure(err error) bool {
	return errors.Is(err, ErrParseFailure)
}
