package disklru

import "errors"

var (
	ErrInvalidKey     = errors.New("disklru: key must match [a-z0-9_-]{1,120}")
	ErrEditInProgress = errors.New("disklru: entry is already being edited")
	ErrClosed         = errors.New("disklru: cache is closed")
	ErrTooLarge       = errors.New("disklru: value larger than cache")
	ErrCommitFailed   = errors.New("disklru: commit failed")
	ErrStaleEditor    = errors.New("disklru: editor no longer valid")
	ErrMissingValue   = errors.New("disklru: edit did not write every value")
	ErrBadIndex       = errors.New("disklru: value index out of range")

	errCorrupt = errors.New("disklru: corrupt journal")
)
