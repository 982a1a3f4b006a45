package query

import (
	"fmt"
	"time"

	"github.com/jroosing/goresolv/internal/agent"
	"github.com/jroosing/goresolv/internal/wire"
)

// ErrKind classifies a terminal failure reported in an Outcome.
type ErrKind string

const (
	KindInvalidDomainName ErrKind = "INVALID_DOMAIN_NAME"
	KindInvalidLabel      ErrKind = "INVALID_LABEL"
	KindEncoderOverflow   ErrKind = "ENCODER_BUFFER_OVERFLOW"
	KindDecoderUnderflow  ErrKind = "DECODER_BUFFER_UNDERFLOW"
	KindMalformedMessage  ErrKind = "MALFORMED_MESSAGE"
	KindBadPointerLoop    ErrKind = "BAD_POINTER_LOOP"
	KindTimeout           ErrKind = "TIMEOUT"
	KindNetwork           ErrKind = "NETWORK"
	KindServerError       ErrKind = "SERVER_ERROR"
	KindNameError         ErrKind = "NAME_ERROR"
	KindNoData            ErrKind = "NO_DATA"
	KindCancelled         ErrKind = "CANCELLED"
	KindProtocol          ErrKind = "PROTOCOL"
)

// Err is the value-carried error type: it never crosses a component
// boundary as a panic or a raised exception, only as a field of an
// Outcome. RCode is populated for KindServerError so a caller can tell
// which upstream rcode it last saw.
type Err struct {
	Kind    ErrKind
	Message string
	Cause   error
	RCode   wire.RCode
}

func (e *Err) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *Err) Unwrap() error { return e.Cause }

// Answers is the question-relative payload of a successful Outcome.
type Answers struct {
	Answers     []wire.RR
	Authorities []wire.RR
	Additional  []wire.RR
}

// SubLog attaches the attempt log of an inner NS-resolution Query to the
// outer Query that spawned it, tagged with a UUID so concurrent sub-queries
// for the same outer Query stay distinguishable in diagnostics.
type SubLog struct {
	ID       string
	Question wire.Question
	Log      []LogEntry
}

// LogEntry records one attempt against one upstream, for diagnostics. All
// outcomes (success or failure) carry the full attempt log.
type LogEntry struct {
	Time      time.Time
	Upstream  string
	Addr      string
	Transport string
	Event     string // "sent", "timeout", "response", "malformed", "network-error", "tcp-promote", "dial-error", "send-error", "id-mismatch"
	RCode     wire.RCode
	Error     string
}

// Outcome is the terminal (or, for ResolveAsync, the "initiated") result of
// a resolution. Ok()==true iff Err is nil.
type Outcome struct {
	Answers Answers
	Err     *Err
	Log     []LogEntry
	SubLogs []SubLog
}

// Ok reports whether the outcome completed without error.
func (o Outcome) Ok() bool { return o.Err == nil }

// Options configures one resolution request.
type Options struct {
	// Upstreams, when non-empty, puts the query in forwarding mode (RD=1)
	// against these servers in priority order. Empty means recursive mode.
	Upstreams []agent.Params
	// InitialTransport selects UDP (the default) or TCP for the first send.
	InitialTransport agent.Transport
	// Timeout overrides the per-agent timeout carried on each upstream's
	// agent.Params, still bounded by the engine's global hard ceiling.
	Timeout time.Duration
	// Recursive forces recursive mode even when Upstreams is non-empty.
	Recursive bool
	// CacheBypass skips both the positive and negative cache consult.
	CacheBypass bool
}
