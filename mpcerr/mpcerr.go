//
// Copyright (c) 2025 Markku Rossi
//
// All rights reserved.
//

// Package mpcerr defines the error kinds of the preprocessing
// engine. Usage errors are local and recoverable by adjusting the
// request. Protocol errors indicate a transcript inconsistency, a bug
// or a malicious peer. Transport errors are I/O failures and session
// timeouts. Protocol and transport errors are fatal for the session.
package mpcerr

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Error kinds. Test for them with errors.Is.
var (
	ErrUsage     = errors.New("usage error")
	ErrProtocol  = errors.New("protocol error")
	ErrTransport = errors.New("transport error")
)

// Usagef creates a new usage error.
func Usagef(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrUsage)
}

// Protocolf creates a new protocol error.
func Protocolf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrProtocol)
}

// Transport marks err as a transport error. Errors that already carry
// a kind are returned unmodified. The function returns nil for a nil
// error.
func Transport(err error) error {
	if err == nil || IsKind(err) {
		return err
	}
	return errors.Mark(errors.WithStackDepth(err, 1), ErrTransport)
}

// Transportf creates a new transport error.
func Transportf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...),
		ErrTransport)
}

// FromContext converts an I/O error err into a transport error. If the
// context ctx is done, the context's error is reported as the cause.
func FromContext(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if IsKind(err) {
		return err
	}
	if cerr := ctx.Err(); cerr != nil {
		return errors.Mark(errors.Wrapf(cerr, "%v", err), ErrTransport)
	}
	return errors.Mark(errors.WithStackDepth(err, 1), ErrTransport)
}

// IsKind tests if err already carries one of the error kinds.
func IsKind(err error) bool {
	return errors.Is(err, ErrUsage) || errors.Is(err, ErrProtocol) ||
		errors.Is(err, ErrTransport)
}

// IsFatal tests if err is fatal for the session.
func IsFatal(err error) bool {
	return errors.Is(err, ErrProtocol) || errors.Is(err, ErrTransport)
}
