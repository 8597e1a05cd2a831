// Package faults classifies errors so that callers can decide between
// retrying, aborting, and the HTTP status returned to webhook sources.
package faults

import (
	"errors"
	"fmt"
)

// Class identifies how an error should be handled upstream.
type Class int

const (
	// ClassTransient covers network failures, rate limits, version-token
	// conflicts and timeouts. Safe to retry.
	ClassTransient Class = iota

	// ClassValidation covers malformed payloads and missing required
	// fields. Caller fault, never retried, maps to HTTP 400.
	ClassValidation

	// ClassAuth covers signature mismatches and stale timestamps. Never
	// retried, maps to HTTP 401.
	ClassAuth

	// ClassFatal covers programming errors. The invocation aborts.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassValidation:
		return "validation"
	case ClassAuth:
		return "auth"
	case ClassFatal:
		return "fatal"
	}
	return "unknown"
}

// Fault wraps an error with its handling class.
type Fault struct {
	Class Class
	Err   error
}

func (f *Fault) Error() string { return f.Class.String() + ": " + f.Err.Error() }
func (f *Fault) Unwrap() error { return f.Err }

// Validation marks an error as a caller-fault validation failure.
func Validation(format string, args ...interface{}) error {
	return &Fault{Class: ClassValidation, Err: fmt.Errorf(format, args...)}
}

// Auth marks an error as an authentication failure.
func Auth(format string, args ...interface{}) error {
	return &Fault{Class: ClassAuth, Err: fmt.Errorf(format, args...)}
}

// Transient marks an error as retryable.
func Transient(format string, args ...interface{}) error {
	return &Fault{Class: ClassTransient, Err: fmt.Errorf(format, args...)}
}

// Fatal marks an error as a programming failure.
func Fatal(format string, args ...interface{}) error {
	return &Fault{Class: ClassFatal, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a class to an existing error, preserving the chain.
func Wrap(class Class, err error) error {
	if err == nil {
		return nil
	}
	return &Fault{Class: class, Err: err}
}

// ClassOf reports the class of err. Unclassified errors default to
// ClassTransient so that unknown network-layer failures are retried.
func ClassOf(err error) Class {
	var f *Fault
	if errors.As(err, &f) {
		return f.Class
	}
	return ClassTransient
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return ClassOf(err) == ClassTransient
}
