package pdb

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyMolecule means the input had no ATOM or HETATM we could keep.
	ErrEmptyMolecule = errors.New("pdb: no atoms found")
	// ErrParseIO is matched by every *IOError.
	ErrParseIO = errors.New("pdb: read failure")
	// ErrUnsupportedFormat comes from ParseFile for mmCIF and unknown files.
	ErrUnsupportedFormat = errors.New("pdb: unsupported file format")
)

// IOError is a failure of the underlying reader, not of the data.
type IOError struct {
	Name string
	Line int // lines read before the failure
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("reading %s after line %d: %v", e.Name, e.Line, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrParseIO) work.
func (e *IOError) Is(target error) bool { return target == ErrParseIO }

var errBadSense = errors.New("sense must be -1, 0 or 1")

// lineError is a malformed line. The parser logs these and goes on.
type lineError struct {
	lineNum int
	field   string
	line    string
	err     error
}

func (e *lineError) Error() string {
	return fmt.Sprintf("line %d: bad %s: %v\n\"%s\"", e.lineNum, e.field, e.err, strings.TrimRight(e.line, " "))
}

func (e *lineError) Unwrap() error { return e.err }
