package errors

import "fmt"

// EntityNotFoundError indicates that no failed bill exists for the
// requested filename.
type EntityNotFoundError struct {
	Err      error
	Filename string
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("no failed bill found for filename %s: %s", e.Filename, e.Err)
}

// MalformedRequestError indicates a rate assignment request whose mode and
// payload do not line up: mode missing, unrecognized, or both/neither of
// the individual and category payloads populated.
type MalformedRequestError struct {
	Msg string
}

func (e *MalformedRequestError) Error() string {
	return fmt.Sprintf("malformed rate assignment request: %s", e.Msg)
}

// InvalidRateError names the procedure code or category submitted with a
// missing or non-positive rate.
type InvalidRateError struct {
	Field string // offending procedure code or category key
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("invalid rate value for %s", e.Field)
}

// EmptySubmissionError indicates a category-mode request with no categories
// enabled.
type EmptySubmissionError struct{}

func (e *EmptySubmissionError) Error() string {
	return "no categories enabled in rate assignment request"
}

// ApplyFailedError indicates an inconsistency found at apply time that the
// validator could not see. Nothing is partially recorded.
type ApplyFailedError struct {
	Err error
	Msg string
}

func (e *ApplyFailedError) Error() string {
	return fmt.Sprintf("rate assignment not applied. Msg: %s, Err: %s", e.Msg, e.Err)
}
