// Package edlerr defines the error taxonomy shared by every layer of the
// flashing engine: transport, framing, protocol, auth, config, IO, and
// codec failures, plus cancellation.
package edlerr

import (
	"errors"
	"fmt"
)

// Kind is a coarse error category, matching the taxonomy in the design spec.
type Kind string

const (
	KindTransport Kind = "transport"
	KindFraming   Kind = "framing"
	KindProtocol  Kind = "protocol"
	KindAuth      Kind = "auth"
	KindConfig    Kind = "config"
	KindIO        Kind = "io"
	KindCodec     Kind = "codec"
	KindCancelled Kind = "cancelled"
)

// Error wraps a Kind, a short reason, and an optional cause.
type Error struct {
	Kind   Kind
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, edlerr.Cancelled) style sentinel checks by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Reason == "" {
		return e.Kind == t.Kind
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func Wrap(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}

// Sentinel reasons used across packages (§7 of the design spec).
var (
	Cancelled = New(KindCancelled, "cancelled")

	ErrOpenFailed       = New(KindTransport, "open-failed")
	ErrWriteFailed      = New(KindTransport, "write-failed")
	ErrReadTimeout      = New(KindTransport, "read-timeout")
	ErrClosedDuringIO   = New(KindTransport, "closed-during-io")
	ErrBadHeader        = New(KindFraming, "bad-header")
	ErrUnexpectedResp   = New(KindFraming, "unexpected-response")
	ErrXMLParse         = New(KindFraming, "xml-parse")
	ErrRawmodeMissing   = New(KindProtocol, "rawmode-missing")
	ErrNeedsAuth        = New(KindAuth, "needs-auth")
	ErrAuthRejected     = New(KindAuth, "auth-rejected")
	ErrMissingVIPFiles  = New(KindAuth, "missing-vip-files")
	ErrUnsupportedAuth  = New(KindAuth, "unsupported-strategy")
	ErrMemoryNotSupport = New(KindConfig, "memory-not-supported")
	ErrSectorMismatch   = New(KindConfig, "sector-size-mismatch")
	ErrStorageInitFail  = New(KindConfig, "storage-init-failed")
	ErrFileNotFound     = New(KindIO, "file-not-found")
	ErrShortRead        = New(KindIO, "short-read")
	ErrShortWrite       = New(KindIO, "short-write")
	ErrDiskFull         = New(KindIO, "disk-full")
	ErrBadMagic         = New(KindCodec, "bad-magic")
	ErrUnknownKey       = New(KindCodec, "unknown-key")
	ErrBruteExhausted   = New(KindCodec, "brute-force-exhausted")
	ErrCorruptMetadata  = New(KindCodec, "corrupt-metadata")
)

// NAK carries a Firehose NAK reason string verbatim so callers can pattern
// match on vendor-specific text (§4.4's configure retry ladder).
type NAK struct {
	Reason string
}

func (e *NAK) Error() string { return "nak: " + e.Reason }

// BadStatus carries a Sahara/Firehose numeric status code.
type BadStatus struct {
	Code uint32
}

func (e *BadStatus) Error() string { return fmt.Sprintf("bad-status(%d)", e.Code) }

// IsCancelled reports whether err is (or wraps) the cancellation sentinel.
func IsCancelled(err error) bool {
	return errors.Is(err, Cancelled)
}
