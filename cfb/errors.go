package cfb

import "errors"

// Format/capacity/corruption errors surfaced by the on-device layers
// (§7 "Capacity errors", "Format errors").
var (
	ErrOutOfSpace  = errors.New("cfb: out of space")
	ErrFileCorrupt = errors.New("cfb: file corrupt")
)
