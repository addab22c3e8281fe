package client

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// NotFound means the source has no record for the requested code.
	NotFound Kind = iota + 1
	// SourceUnreachable means the document could not be fetched or read.
	SourceUnreachable
	// MalformedSource means the document was read but is not a valid snapshot.
	MalformedSource
)

var (
	ErrNotFound          = errors.New("currency not found")
	ErrSourceUnreachable = errors.New("source unreachable")
	ErrMalformedSource   = errors.New("malformed source")
)

func (k Kind) sentinel() error {
	switch k {
	case NotFound:
		return ErrNotFound
	case SourceUnreachable:
		return ErrSourceUnreachable
	case MalformedSource:
		return ErrMalformedSource
	}
	return nil
}

func (k Kind) String() string {
	if err := k.sentinel(); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// LookupError is returned by every client operation. errors.Is matches it against
// the sentinel of its Kind.
type LookupError struct {
	Kind   Kind
	Source string
	// Code is set for NotFound.
	Code string
	Err  error
}

func (e *LookupError) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("%s: %s in %s", e.Kind, e.Code, e.Source)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Source)
}

func (e *LookupError) Unwrap() error { return e.Err }

func (e *LookupError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}
