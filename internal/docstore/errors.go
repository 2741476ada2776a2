package docstore

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by lookups and argument validation. They are
// matchable with errors.Is even when wrapped.
var (
	ErrPDFNotFound   = errors.New("pdf does not exist")
	ErrImageNotFound = errors.New("image does not exist")
	ErrInvalidDocID  = errors.New("invalid document id")
	ErrInvalidPage   = errors.New("invalid page number")
)

// OpError records a failed storage operation and the document it was
// operating on. The underlying cause is available through Unwrap.
type OpError struct {
	Op    string
	DocID string
	Err   error
}

func (e *OpError) Error() string {
	if e.DocID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.DocID, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
