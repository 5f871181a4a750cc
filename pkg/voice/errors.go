package voice

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrSessionActive    = errors.New("voice: a session is already active")
	ErrNotConnected     = errors.New("voice: session not active")
	ErrConnectionClosed = errors.New("voice: connection closed")
	ErrUnknownTool      = errors.New("voice: unknown tool")
	ErrNoSynthesizer    = errors.New("voice: no synthesizer configured")
	ErrMissingAPIKey    = errors.New("voice: missing API key")
	ErrUnknownTransport = errors.New("voice: unknown transport")
)

// AcquisitionError reports a device or permission failure while a session
// was being set up. The session ends in the Error state.
type AcquisitionError struct {
	Resource string // "capture", "output"
	Cause    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("voice: acquire %s: %v", e.Resource, e.Cause)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Cause
}

// TransportError reports a failure to connect, send or receive. The
// session ends in the Error state.
type TransportError struct {
	Op    string // "connect", "send", "receive"
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("voice: transport %s: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// HandlerError reports a tool handler failure. The call is still answered
// and the session continues.
type HandlerError struct {
	Tool   string
	CallID string
	Cause  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("voice: tool %s (call %s): %v", e.Tool, e.CallID, e.Cause)
}

func (e *HandlerError) Unwrap() error {
	return e.Cause
}

// DecodeError reports an undecodable audio chunk. The chunk is dropped and
// the playback timeline is unchanged. Seq is the chunk's arrival index
// within the session, starting at 1.
type DecodeError struct {
	Seq      uint64
	MIMEType string
	Size     int
	Cause    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("voice: decode chunk %d (%d byte %q): %v", e.Seq, e.Size, e.MIMEType, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether err ends a session.
func IsFatal(err error) bool {
	var acq *AcquisitionError
	var tr *TransportError
	return errors.As(err, &acq) || errors.As(err, &tr)
}
