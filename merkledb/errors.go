// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkledb

import "errors"

// Error taxonomy for the trie, per spec.md section 7. Each sentinel is
// meant to be matched with errors.Is; wrapped occurrences add the key,
// path, or version that triggered them with fmt.Errorf("%w: ...", ...).
var (
	// ErrMalformed means framed or canonical bytes could not be parsed, or
	// had trailing data after a value of the expected length was read.
	ErrMalformed = errors.New("merkledb: malformed node bytes")

	// ErrCorruption means a reader returned bytes that failed the
	// malformed check, or a node referenced a child that could not be
	// loaded.
	ErrCorruption = errors.New("merkledb: corrupted node reference")

	// ErrStorageError wraps a lower-level failure signaled by the
	// NodeReader.
	ErrStorageError = errors.New("merkledb: node store error")

	// ErrDuplicateKey means a batch contained the same key hash twice.
	ErrDuplicateKey = errors.New("merkledb: duplicate key in update batch")

	// ErrOutOfRange means a nibble index was requested outside a path's
	// bounds.
	ErrOutOfRange = errors.New("merkledb: index out of range")

	// ErrInvalidArgument means a caller supplied a value outside the
	// domain the API accepts, e.g. a nibble >= 16.
	ErrInvalidArgument = errors.New("merkledb: invalid argument")

	// ErrUnknownNodeKind means a framed node's kind tag did not match any
	// known node kind.
	ErrUnknownNodeKind = errors.New("merkledb: unknown node kind")
)

// errs accumulates the first non-nil error across a sequence of operations,
// adapted from the teacher's utils/wrappers.Errs: NewPrometheusMetrics
// registers several counters that may each fail, and only the first failure
// is returned to the caller.
type errs struct {
	err error
}

func (e *errs) add(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *errs) errored() bool {
	return e.err != nil
}
