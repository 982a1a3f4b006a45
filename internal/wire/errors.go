// Package wire implements the DNS message wire format (RFC 1035 section 4):
// names with compression, the fixed header, questions, and typed resource
// records. It has no knowledge of transports, caching, or resolution
// strategy — those live in internal/cache, internal/agent, internal/query.
package wire

import "errors"

// Sentinel errors for wire-format violations. Wrap with fmt.Errorf("%w: ...")
// to add context; callers use errors.Is against these to classify failures.
var (
	// ErrInvalidDomainName marks a name that failed strict validation when
	// constructed from text (NewName). Decoding from the wire never returns
	// this — the wire side accepts arbitrary label bytes.
	ErrInvalidDomainName = errors.New("wire: invalid domain name")

	// ErrInvalidLabel marks a single label that failed strict validation.
	ErrInvalidLabel = errors.New("wire: invalid label")

	// ErrBufferOverflow is returned when a message cannot be encoded even
	// into the largest (64KiB+2) buffer tier.
	ErrBufferOverflow = errors.New("wire: encoder buffer overflow")

	// ErrBufferUnderflow marks a decode that ran past the end of the message.
	ErrBufferUnderflow = errors.New("wire: decoder buffer underflow")

	// ErrMalformed marks a structurally invalid message or record.
	ErrMalformed = errors.New("wire: malformed message")

	// ErrPointerLoop marks a name-compression pointer chain that does not
	// terminate within the bound on pointer indirections.
	ErrPointerLoop = errors.New("wire: compression pointer loop")
)
