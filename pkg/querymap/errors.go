package querymap

import (
	"errors"
	"fmt"
)

// ParseError marks a fragment the scanners cannot interpret safely
type ParseError struct {
	Fragment string
	Offset   int
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot interpret query fragment %q at offset %d: %s", e.Fragment, e.Offset, e.Reason)
}

func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
