package orchestrator

import (
	"errors"
	"fmt"
)

// Kind classifies a step failure.
type Kind string

const (
	// KindFatal aborts the whole run (unusable inventory).
	KindFatal Kind = "fatal"
	// KindValidation skips a device with an incomplete record.
	KindValidation Kind = "validation"
	KindConnect    Kind = "connect"
	KindRead       Kind = "read"
	KindStage      Kind = "stage"
	KindCompare    Kind = "compare"
	KindCommit     Kind = "commit"
	KindVerify     Kind = "verify"
)

// StepError is the typed failure of one workflow step on one device.
type StepError struct {
	Kind   Kind
	Device string
	Step   string
	Err    error
}

func (e *StepError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Device, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func stepError(kind Kind, device, step string, err error) *StepError {
	return &StepError{Kind: kind, Device: device, Step: step, Err: err}
}

// KindOf returns the kind of a StepError anywhere in err's chain, or
// the empty kind.
func KindOf(err error) Kind {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
