// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrDecode indicates an inbound frame could not be decoded into a known message.
// Malformed frames are logged and dropped; they never change fleet or connection state.
var ErrDecode = errors.New("malformed frame")

// ErrNotConnected indicates a send was attempted while the backend connection is not established.
var ErrNotConnected = errors.New("not connected")

// ErrSendFailed indicates a frame could not be written to an established connection.
var ErrSendFailed = errors.New("send failed")

// ErrValidation indicates operator-supplied command parameters were rejected before any I/O.
var ErrValidation = errors.New("validation failed")

// ErrTransport indicates the connection dropped or an I/O operation on it failed.
var ErrTransport = errors.New("transport error")
