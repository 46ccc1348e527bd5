package asset

import (
	"errors"
	"fmt"
)

// Load failure reasons.
const (
	ReasonNetwork     = "network error"
	ReasonMalformed   = "malformed file"
	ReasonUnsupported = "unsupported structure"
	ReasonNoGeometry  = "no geometry found"
	ReasonTooLarge    = "file too large"
	ReasonNotRigged   = "no skinned mesh"
)

// ErrSuperseded is returned to a load whose result was discarded because a
// newer request for the same slot was issued.
var ErrSuperseded = errors.New("asset: load superseded by a newer request")

// errUnsupported marks parse failures caused by valid but unhandled glTF
// features.
var errUnsupported = errors.New("unsupported")

// LoadError describes why an asset could not be loaded.
type LoadError struct {
	URL    string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("asset: load %s: %s", e.URL, e.Reason)
	}
	return fmt.Sprintf("asset: load %s: %s: %v", e.URL, e.Reason, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsReason reports whether err is a LoadError with the given reason.
func IsReason(err error, reason string) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Reason == reason
}
