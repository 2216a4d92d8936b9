package domain

import "errors"

var ErrNotFound = errors.New("not found")

// DeliveryError reports a failed outbound message send, including a failed
// fallback send.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string { return "delivering message: " + e.Err.Error() }

func (e *DeliveryError) Unwrap() error { return e.Err }

// CompletionError reports a failed LLM call. It is never recovered locally:
// the caller sends an apology instead of a generated reply.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string { return "generating completion: " + e.Err.Error() }

func (e *CompletionError) Unwrap() error { return e.Err }
