// Copyright 2025 Certen Protocol
//
// Batch package errors

package batch

import "errors"

// Common errors for the batch package
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrBatchNotFound     = errors.New("batch not found")
	ErrAttemptsExhausted = errors.New("attempts exhausted")
	ErrInvalidDAMode     = errors.New("invalid da_mode")
	ErrInvalidAddress    = errors.New("bridge_address must be 20 bytes")
	ErrInvalidHash       = errors.New("hash must be 32 bytes")
)
