package model

import (
	"errors"
	"fmt"
)

// ErrUnsupportedProtocol means no adapter matched the pool's structural
// signature. It aborts the query immediately; retrying cannot help.
var ErrUnsupportedProtocol = errors.New("unsupported protocol")

// TransportError is a network-level failure reaching the chain: dial errors,
// timeouts, exhausted batch retries. It aborts the whole query.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError is malformed or inconsistent return data. Individual call
// decode failures are skipped where they occur; a DecodeError only surfaces
// when the inconsistency poisons the whole result (e.g. liquidity deltas
// that do not sum to zero over the full tick set).
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("decode %s", e.What)
	}
	return fmt.Sprintf("decode %s: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
