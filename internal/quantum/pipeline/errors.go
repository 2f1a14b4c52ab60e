// Package pipeline implements the driver that sits on top of the ack
// engine and the two sequence rings: Send, Receive, Update and
// ResumeReceive are the only entry points a connection object needs to
// drive reliable-sequenced delivery over an opaque datagram transport.
package pipeline

// Code identifies one of the pipeline's failure kinds (spec.md §7).
type Code int

const (
	// CodeStalePacket: an inbound packet fell outside the receive
	// window and was dropped outright.
	CodeStalePacket Code = -1

	// CodeDuplicatePacket: an inbound packet was already accounted for
	// by the current ack mask.
	CodeDuplicatePacket Code = -2

	// CodeOutgoingQueueFull: the send ring has no free slot for the
	// next sequence number; the caller is sending faster than the
	// window allows.
	CodeOutgoingQueueFull Code = -7

	// CodeInsufficientMemory: a packet, once header and payload are
	// combined, does not fit the configured slot size.
	CodeInsufficientMemory Code = -8
)

// Error is a typed pipeline failure, comparable via errors.Is against
// the package's sentinel values.
type Error struct {
	Code Code
	msg  string
}

func (e *Error) Error() string { return e.msg }

var (
	// ErrStalePacket is returned by Receive for CodeStalePacket.
	ErrStalePacket = &Error{Code: CodeStalePacket, msg: "pipeline: stale packet outside receive window"}

	// ErrDuplicatePacket is returned by Receive for CodeDuplicatePacket.
	ErrDuplicatePacket = &Error{Code: CodeDuplicatePacket, msg: "pipeline: duplicate packet"}

	// ErrOutgoingQueueFull is returned by Send for CodeOutgoingQueueFull.
	ErrOutgoingQueueFull = &Error{Code: CodeOutgoingQueueFull, msg: "pipeline: outgoing queue is full"}

	// ErrInsufficientMemory is returned by Send/Receive for
	// CodeInsufficientMemory.
	ErrInsufficientMemory = &Error{Code: CodeInsufficientMemory, msg: "pipeline: packet does not fit the configured slot size"}
)
