package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassOf(t *testing.T) {
	cases := []struct {
		err  error
		want Class
	}{
		{Validation("missing channel"), ClassValidation},
		{Auth("bad signature"), ClassAuth},
		{Transient("rate limited"), ClassTransient},
		{Fatal("nil pipeline"), ClassFatal},
		{errors.New("connection reset"), ClassTransient},
	}

	for _, tc := range cases {
		if got := ClassOf(tc.err); got != tc.want {
			t.Errorf("ClassOf(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestClassOfWrapped(t *testing.T) {
	inner := Auth("signature mismatch")
	outer := fmt.Errorf("slack webhook: %w", inner)

	if got := ClassOf(outer); got != ClassAuth {
		t.Errorf("ClassOf(wrapped) = %v, want ClassAuth", got)
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) {
		t.Error("nil error must not be retryable")
	}
	if Retryable(Validation("bad payload")) {
		t.Error("validation errors must not be retryable")
	}
	if Retryable(Auth("stale timestamp")) {
		t.Error("auth errors must not be retryable")
	}
	if !Retryable(Transient("version conflict")) {
		t.Error("transient errors must be retryable")
	}
	if !Retryable(errors.New("dial tcp: i/o timeout")) {
		t.Error("unclassified errors default to retryable")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(ClassTransient, nil) != nil {
		t.Error("Wrap(nil) must return nil")
	}
}
