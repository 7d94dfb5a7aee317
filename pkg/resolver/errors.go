package resolver

import (
	"errors"
	"fmt"
)

var (
	// ErrDisambiguationTimeout is returned when the forced-choice prompt gets no answer
	ErrDisambiguationTimeout = errors.New("disambiguation timed out on forced choice")

	// ErrInvalidSelection is returned when a forced-choice answer is not one of the candidates
	ErrInvalidSelection = errors.New("selection is not one of the offered candidates")
)

// ExhaustedError means the store holds no non-null values for the target at all
type ExhaustedError struct {
	Target   Target
	RawValue string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("resolution exhausted: no stored values for %s (raw value %q)", e.Target, e.RawValue)
}

// IsExhausted reports whether err wraps an ExhaustedError
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}
