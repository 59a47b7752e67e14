package journal

import "errors"

// Sentinel errors for the journal.
var (
	ErrOpen          = errors.New("journal open failed")
	ErrSchemaTooNew  = errors.New("journal schema is newer than this binary")
	ErrCorruptRecord = errors.New("journal record is corrupt")
	ErrClosed        = errors.New("journal is closed")
)
