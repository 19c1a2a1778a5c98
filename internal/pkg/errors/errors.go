package errors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalid           = errors.New("invalid")
	ErrTooMany           = errors.New("too many requests")
	ErrInternal          = errors.New("internal")
	ErrProvider          = errors.New("embedding provider failed")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrTimeout           = errors.New("operation timed out")
	ErrRanking           = errors.New("chunk ranking failed")
	ErrNoSearchResults   = errors.New("no search results")
	ErrNoContent         = errors.New("no scraped content")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsProvider(err error) bool {
	return errors.Is(err, ErrProvider)
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
