package wire

import "fmt"

// Resource limits applied while decoding an incoming message, to bound
// allocation from a hostile or corrupt packet before the section counts
// are known to be trustworthy.
const (
	MaxQuestions    = 8
	MaxRRPerSection = 4096
)

// Message is a complete DNS message (RFC 1035 section 4): the header and
// its four sections. QDCount/ANCount/NSCount/ARCount are derived from the
// section slice lengths on Encode rather than stored independently, so the
// "questions.len()==qdcount" invariant can never be violated by a stale
// header.
type Message struct {
	Header      Header
	Questions   []Question
	Answers     []RR
	Authorities []RR
	Additional  []RR
}

// encodeBudgets is the buffer-size ladder from section 4.A: try the
// smallest tier first, then progressively larger ones, finally the 64KiB
// TCP tier. Every tier past the first reserves 2 bytes for the TCP length
// prefix, which the caller adds, not Encode.
var encodeBudgets = []int{512, 8*1024 + 2, 16*1024 + 2, 64*1024 + 2}

// Encode serializes m to wire format and reports which budget tier (if
// any) it fits in by returning the bytes unchanged — callers that care
// about the tier (e.g. to decide UDP vs TCP) compare len(result) against
// their own threshold. Returns ErrBufferOverflow only if the message does
// not fit even the largest (64KiB+2) tier.
func (m Message) Encode() ([]byte, error) {
	h := m.Header
	h.QDCount = uint16(len(m.Questions))
	h.ANCount = uint16(len(m.Answers))
	h.NSCount = uint16(len(m.Authorities))
	h.ARCount = uint16(len(m.Additional))

	estimate := HeaderSize + len(m.Questions)*32 + (len(m.Answers)+len(m.Authorities)+len(m.Additional))*48
	buf := make([]byte, 0, estimate)
	buf = h.Encode(buf)

	offsets := nameOffsets{}
	for _, q := range m.Questions {
		buf = q.Encode(buf, offsets)
	}
	for _, section := range [][]RR{m.Answers, m.Authorities, m.Additional} {
		for _, rr := range section {
			var err error
			buf, err = EncodeRR(buf, rr, offsets)
			if err != nil {
				return nil, err
			}
		}
	}

	for i, budget := range encodeBudgets {
		if i > 0 {
			budget -= 2 // room for the TCP length prefix
		}
		if len(buf) <= budget {
			return buf, nil
		}
	}
	return nil, fmt.Errorf("%w: message is %d bytes", ErrBufferOverflow, len(buf))
}

// Decode parses a complete message from msg, reversing Encode: header, then
// qdcount questions, then ancount/nscount/arcount resource records.
func Decode(msg []byte) (Message, error) {
	off := 0
	h, err := DecodeHeader(msg, &off)
	if err != nil {
		return Message{}, err
	}

	m := Message{Header: h}

	qd := boundedCount(h.QDCount, MaxQuestions)
	m.Questions = make([]Question, 0, qd)
	for range h.QDCount {
		q, err := DecodeQuestion(msg, &off)
		if err != nil {
			return Message{}, fmt.Errorf("question: %w", err)
		}
		m.Questions = append(m.Questions, q)
	}

	m.Answers, err = decodeRRSection(msg, &off, h.ANCount)
	if err != nil {
		return Message{}, fmt.Errorf("answer: %w", err)
	}
	m.Authorities, err = decodeRRSection(msg, &off, h.NSCount)
	if err != nil {
		return Message{}, fmt.Errorf("authority: %w", err)
	}
	m.Additional, err = decodeRRSection(msg, &off, h.ARCount)
	if err != nil {
		return Message{}, fmt.Errorf("additional: %w", err)
	}
	return m, nil
}

func decodeRRSection(msg []byte, off *int, count uint16) ([]RR, error) {
	out := make([]RR, 0, boundedCount(count, MaxRRPerSection))
	for range count {
		rr, err := DecodeRR(msg, off)
		if err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, nil
}

func boundedCount(count uint16, limit int) int {
	if int(count) > limit {
		return limit
	}
	return int(count)
}

// IsResponse reports whether the QR bit is set.
func (m Message) IsResponse() bool { return m.Header.Flags&FlagQR != 0 }

// Truncated reports whether the TC bit is set.
func (m Message) Truncated() bool { return m.Header.Flags&FlagTC != 0 }

// RCode returns the message's response code.
func (m Message) RCode() RCode { return RCodeOf(m.Header.Flags) }
