package model

import "errors"

// Error taxonomy shared by the validator, fetcher, parser and engine.
var (
	ErrInvalidURL      = errors.New("must be a valid URL")
	ErrDuplicateURL    = errors.New("RSS already exists")
	ErrParse           = errors.New("resource does not contain valid RSS")
	ErrNetwork         = errors.New("network error")
	ErrUnexpectedState = errors.New("unexpected state")
	ErrPostNotFound    = errors.New("post not found")
)

// KindOf maps an add-feed failure to the kind recorded in LoadStatus.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrParse):
		return KindParsing
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	default:
		return KindUnknown
	}
}
