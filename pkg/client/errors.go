package client

import (
	"context"
	"errors"
	"fmt"

	"orderdesk/pkg/product"
)

// Kind classifies a failed request.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindCanceled
	KindServer
	KindNotFound
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindCanceled:
		return "canceled"
	case KindServer:
		return "server"
	case KindNotFound:
		return "not_found"
	case KindDecode:
		return "decode"
	}
	return "unknown"
}

// Error describes a failed API call.
type Error struct {
	Op      string // e.g. "orders.add_item"
	Kind    Kind
	Status  int    // HTTP status, zero when no response was received
	Message string // server supplied message, if any
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsCanceled reports whether err came from an intentionally cancelled
// request. Such errors are never shown to the user.
func IsCanceled(err error) bool {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindCanceled {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// IsNotFound reports whether the server answered 404.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindNotFound
}

// Message turns err into text suitable for a notification.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var verr *product.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch e.Kind {
	case KindTransport:
		return "The server could not be reached. Check your connection and try again."
	case KindCanceled:
		return ""
	case KindDecode:
		return "The server sent an unexpected response."
	case KindNotFound:
		if e.Message != "" {
			return e.Message
		}
		return "Not found."
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("The request failed (status %d).", e.Status)
}
