package transport

import "github.com/pkg/errors"

// Sentinel errors for the error kinds a session can surface. Use errors.Is
// to test for a kind and errors.Wrap/errors.Wrapf to attach the transient
// cause and a stack trace when surfacing a session-fatal error.
var (
	// ErrMalformedHeader marks a datagram shorter than the fixed header
	// size, or one whose SYN/first-data payload failed to decode as
	// JSON. It is logged and the datagram dropped; the session continues.
	ErrMalformedHeader = errors.New("lftp: malformed header")

	// ErrFilesystem marks a fatal local file error: the source path is
	// not readable, or the output path is not writable.
	ErrFilesystem = errors.New("lftp: filesystem error")

	// ErrTransferFailed marks a session that terminated before the FIN
	// was acknowledged (in-order, on the receiver), e.g. because the
	// progress watchdog tripped.
	ErrTransferFailed = errors.New("lftp: transfer failed")

	// ErrProtocolViolation is reserved for an unexpected combination of
	// flags (e.g. SYN and FIN together) or an out-of-range sequence
	// number. The reference behavior ignores these rather than raising
	// an error; this sentinel exists for implementations that choose to
	// be stricter.
	ErrProtocolViolation = errors.New("lftp: protocol violation")
)
