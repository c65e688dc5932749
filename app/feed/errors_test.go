package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"invalid feed", NewInvalidFeedError(errors.New("bad xml")), ErrorKindInvalidFeed},
		{"timeout", NewTimeoutError(context.DeadlineExceeded), ErrorKindTimeout},
		{"duplicate", NewDuplicateFeedError("https://example.com"), ErrorKindDuplicateFeed},
		{"not found", NewNotFoundError("feed", 3), ErrorKindNotFound},
		{"storage", NewStorageError("refresh", errors.New("disk full")), ErrorKindStorageFailure},
		{"wrapped", fmt.Errorf("outer: %w", NewNotFoundError("entry", 1)), ErrorKindNotFound},
		{"plain error", errors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("Expected kind %q, got %q", tt.want, got)
			}
		})
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := context.DeadlineExceeded
	err := NewTimeoutError(cause)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("Expected timeout error to unwrap to its cause")
	}
	if err.Error() != "feed fetch timed out: context deadline exceeded" {
		t.Errorf("Unexpected message: %s", err.Error())
	}

	notFound := NewNotFoundError("feed", 7)
	if notFound.Error() != "feed 7 not found" {
		t.Errorf("Expected 'feed 7 not found', got %q", notFound.Error())
	}
	if !IsKind(notFound, ErrorKindNotFound) {
		t.Error("Expected IsKind to match not_found")
	}
}
