package feed

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrorKindInvalidFeed    ErrorKind = "invalid_feed"
	ErrorKindTimeout        ErrorKind = "timeout"
	ErrorKindDuplicateFeed  ErrorKind = "duplicate_feed"
	ErrorKindNotFound       ErrorKind = "not_found"
	ErrorKindStorageFailure ErrorKind = "storage_failure"
)

// Error is the typed failure shared by fetch, merge and query operations.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewInvalidFeedError(err error) *Error {
	return &Error{Kind: ErrorKindInvalidFeed, Message: "invalid feed", Err: err}
}

func NewTimeoutError(err error) *Error {
	return &Error{Kind: ErrorKindTimeout, Message: "feed fetch timed out", Err: err}
}

func NewDuplicateFeedError(url string) *Error {
	return &Error{Kind: ErrorKindDuplicateFeed, Message: "Feed already exists: " + url}
}

func NewNotFoundError(what string, id int64) *Error {
	return &Error{Kind: ErrorKindNotFound, Message: fmt.Sprintf("%s %d not found", what, id)}
}

func NewStorageError(op string, err error) *Error {
	return &Error{Kind: ErrorKindStorageFailure, Message: "storage failure during " + op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var feedErr *Error
	if errors.As(err, &feedErr) {
		return feedErr.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
