package forecast

import (
	"errors"
	"fmt"
	"strings"
)

// ErrArtifactUnavailable is returned when prediction is requested before any
// training has completed, or the artifact file is missing.
var ErrArtifactUnavailable = errors.New("no trained model artifact available")

// ErrTrainingInProgress is returned when a training run is triggered while
// another run for the same artifact is still active.
var ErrTrainingInProgress = errors.New("training already in progress")

// ValidationError reports malformed or missing input. Recoverable by the
// caller correcting the request.
type ValidationError struct {
	Subject string
	Errors  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Subject, strings.Join(e.Errors, "; "))
}

// InsufficientDataError reports a dataset too small or degenerate to train on.
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient training data: %s", e.Reason)
}

// SchemaMismatchError reports a feature schema divergence between the
// inference row and the artifact's recorded training schema. Always fatal:
// it indicates a versioning defect, not bad input.
type SchemaMismatchError struct {
	Detail  string
	Missing []string
	Extra   []string
}

func (e *SchemaMismatchError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("schema mismatch: %s", e.Detail)
	}
	return fmt.Sprintf("feature schema mismatch: missing=%v extra=%v", e.Missing, e.Extra)
}

// Report accumulates validation findings in lenient mode.
type Report struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r *Report) addError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

func (r *Report) addWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}
