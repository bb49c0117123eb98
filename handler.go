// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import "context"

// Handler computes the response to a single request.
//
// Servers treat the request and the response as opaque text. A handler
// rejecting a request returns an error wrapping [ErrInvalidRequest]; the
// servers then drop the request without responding.
type Handler interface {
	Handle(ctx context.Context, request string) (string, error)
}

// HandlerFunc adapts a function to the [Handler] interface.
type HandlerFunc func(ctx context.Context, request string) (string, error)

var _ Handler = HandlerFunc(nil)

// Handle implements [Handler].
func (f HandlerFunc) Handle(ctx context.Context, request string) (string, error) {
	return f(ctx, request)
}
