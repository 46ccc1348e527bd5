package merge

import (
	"errors"
	"fmt"
)

// Reason is the user-facing cause of a rejected merge or unmerge.
type Reason string

const (
	ReasonNoAvatar      Reason = "Load avatar first"
	ReasonNoWearables   Reason = "No wearables to merge"
	ReasonAlreadyMerged Reason = "Already merged"
	ReasonNotMerged     Reason = "Not merged"
	ReasonFailed        Reason = "Merge failed"
)

// Error reports a merge precondition violation or a failure while
// combining geometry.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("merge: %s", e.Reason)
	}
	return fmt.Sprintf("merge: %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsReason reports whether err is a merge Error with reason r.
func IsReason(err error, r Reason) bool {
	var me *Error
	return errors.As(err, &me) && me.Reason == r
}
