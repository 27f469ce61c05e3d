package sffs

import (
	"errors"

	"github.com/lidotcircle/sffs/cfb"
	"github.com/lidotcircle/sffs/directory"
)

// ErrorCode enumerates the façade's typed result codes (§6 "Error
// codes"). GetError reports the code of the most recent façade call and
// LastError the raw Go error behind it, the same "locally detected,
// propagated to the façade result and last_error" split §7 describes
// for the original C++ API.
type ErrorCode uint8

const (
	NoError ErrorCode = iota
	NotFound
	AlreadyExists
	NotADirectory
	IsADirectory
	InvalidHandle
	PermissionDenied
	OutOfSpace
	OutOfRange
	FileCorrupt
	BadFormat
	SectorTooHuge
)

func (c ErrorCode) String() string {
	switch c {
	case NoError:
		return "noerror"
	case NotFound:
		return "not_found"
	case AlreadyExists:
		return "already_exists"
	case NotADirectory:
		return "not_a_directory"
	case IsADirectory:
		return "is_a_directory"
	case InvalidHandle:
		return "invalid_handle"
	case PermissionDenied:
		return "permission_denied"
	case OutOfSpace:
		return "out_of_space"
	case OutOfRange:
		return "out_of_range"
	case FileCorrupt:
		return "file_corrupt"
	case BadFormat:
		return "bad_format"
	case SectorTooHuge:
		return "sector_too_huge"
	default:
		return "unknown"
	}
}

// Error wraps an ErrorCode with an optional underlying cause, matching
// §7's "argument / capacity / format / policy" taxonomy as a single
// Go error type that still composes with errors.Is/errors.As.
type Error struct {
	Code  ErrorCode
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Code.String() + ": " + e.Cause.Error()
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(code ErrorCode, cause error) *Error { return &Error{Code: code, Cause: cause} }

var (
	ErrNotFound         = newErr(NotFound, errors.New("entry not found"))
	ErrAlreadyExists    = newErr(AlreadyExists, errors.New("entry already exists"))
	ErrNotADirectory    = newErr(NotADirectory, errors.New("not a directory"))
	ErrIsADirectory     = newErr(IsADirectory, errors.New("is a directory"))
	ErrInvalidHandle    = newErr(InvalidHandle, errors.New("invalid handle"))
	ErrPermissionDenied = newErr(PermissionDenied, errors.New("permission denied"))
	ErrOutOfRange       = newErr(OutOfRange, errors.New("out of range"))
	ErrNotEmpty         = newErr(PermissionDenied, errors.New("directory not empty"))
	ErrBadMode          = newErr(PermissionDenied, errors.New("invalid open-mode combination"))
)

// codeOf classifies err into the façade's ErrorCode, unwrapping both
// this package's *Error and the lower layers' sentinels (cfb, directory).
func codeOf(err error) ErrorCode {
	if err == nil {
		return NoError
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	switch {
	case errors.Is(err, cfb.ErrOutOfSpace):
		return OutOfSpace
	case errors.Is(err, cfb.ErrFileCorrupt):
		return FileCorrupt
	case errors.Is(err, cfb.ErrBadFormat):
		return BadFormat
	case errors.Is(err, cfb.ErrSectorTooHuge):
		return SectorTooHuge
	case errors.Is(err, directory.ErrAlreadyExists):
		return AlreadyExists
	case errors.Is(err, directory.ErrNotFound):
		return NotFound
	case errors.Is(err, directory.ErrNotADirectory):
		return NotADirectory
	default:
		return FileCorrupt
	}
}
