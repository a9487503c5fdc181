package scoring

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord matches every InvalidRecordError via errors.Is.
var ErrInvalidRecord = errors.New("invalid transaction record")

// InvalidRecordError reports a record the engine cannot score, currently a
// missing or unparseable date.
type InvalidRecordError struct {
	Index int    // position in the input sequence
	Field string // offending field name
	Value string // raw value, empty when missing
	Err   error  // underlying parse error, may be nil
}

func (e *InvalidRecordError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("transaction %d: missing %s", e.Index, e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("transaction %d: invalid %s %q: %v", e.Index, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("transaction %d: invalid %s %q", e.Index, e.Field, e.Value)
}

func (e *InvalidRecordError) Unwrap() error {
	return e.Err
}

func (e *InvalidRecordError) Is(target error) bool {
	return target == ErrInvalidRecord
}
