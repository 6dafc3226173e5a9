package importer

import (
	"errors"
	"fmt"
)

// Stage identifies where a verification failed.
type Stage string

const (
	// StageReadInfo is reading the stored checksum.
	StageReadInfo Stage = "read_info"

	// StageLoadDump is locating or decoding the collection dump.
	StageLoadDump Stage = "load_dump"

	// StageChecksum is hashing the dump.
	StageChecksum Stage = "checksum"

	// StageImport is replacing the stored rows.
	StageImport Stage = "import"
)

// Error reports a failed verification with the stage it failed in.
type Error struct {
	Stage      Stage
	Collection string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("verify %s: %s: %v", e.Collection, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsStage reports whether err is an *Error from the given stage.
// Uses errors.As to handle wrapped errors.
func IsStage(err error, stage Stage) bool {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Stage == stage
	}
	return false
}
