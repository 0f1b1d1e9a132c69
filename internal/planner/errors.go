package planner

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotSplitEligible  = fmt.Errorf("%w: block is not split-eligible", ErrInvalidTransition)
	ErrCapacityExhausted = errors.New("capacity exhausted within horizon")
)

// ConflictsPendingError is returned by Assign when the placement has conflicts
// and the caller did not acknowledge them. Re-invoke with acknowledgement to proceed.
type ConflictsPendingError struct {
	BlockID   string
	Conflicts []Conflict
}

func (e *ConflictsPendingError) Error() string {
	tags := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		tags = append(tags, string(c.Tag))
	}
	return fmt.Sprintf("block %s: %d conflicts need acknowledgement (%s)", e.BlockID, len(e.Conflicts), strings.Join(tags, ", "))
}
