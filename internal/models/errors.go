package models

import (
	"fmt"
	"strings"
)

// PreconditionError reports precondition failures that remediation could not fix.
type PreconditionError struct {
	Kinds []PreconditionKind
}

func (e *PreconditionError) Error() string {
	names := make([]string, 0, len(e.Kinds))
	for _, k := range e.Kinds {
		names = append(names, string(k))
	}
	return fmt.Sprintf("unresolved precondition errors: %s", strings.Join(names, ", "))
}

// ExtractionError reports that metadata could not be extracted from the working
// copy, typically because the build descriptor has never been resolved.
type ExtractionError struct {
	Extractor string
	Reason    string
	Err       error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("metadata extraction failed in %s: %s", e.Extractor, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// TransformationError reports a failed transformation run. It is never retried.
type TransformationError struct {
	Recipes []string
	Err     error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("transformation %s failed: %v", strings.Join(e.Recipes, ","), e.Err)
}

func (e *TransformationError) Unwrap() error { return e.Err }

// VerificationWarning reports a verification failure that does not stop publishing.
type VerificationWarning struct {
	JDK    int
	Output string
}

func (e *VerificationWarning) Error() string {
	return fmt.Sprintf("verification failed with jdk %d", e.JDK)
}

// UnexpectedError wraps any failure caught at the repository boundary.
type UnexpectedError struct {
	State State
	Err   error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error in state %s: %v", e.State, e.Err)
}

func (e *UnexpectedError) Unwrap() error { return e.Err }
