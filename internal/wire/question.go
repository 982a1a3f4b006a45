package wire

import (
	"encoding/binary"
	"fmt"
)

// Question is a single entry of a message's question section (RFC 1035
// section 4.1.2): what the asker wants to know.
type Question struct {
	Name  Name
	Type  RecordType
	Class RecordClass
}

// Encode appends the wire form of q to dst, compressing its name against
// offsets.
func (q Question) Encode(dst []byte, offsets nameOffsets) []byte {
	dst = EncodeName(dst, q.Name, offsets)
	var b [4]byte
	binary.BigEndian.PutUint16(b[0:2], uint16(q.Type))
	binary.BigEndian.PutUint16(b[2:4], uint16(q.Class))
	return append(dst, b[:]...)
}

// DecodeQuestion parses a question from msg at *off, advancing *off past it.
func DecodeQuestion(msg []byte, off *int) (Question, error) {
	name, err := DecodeName(msg, off)
	if err != nil {
		return Question{}, err
	}
	if *off+4 > len(msg) {
		return Question{}, fmt.Errorf("%w: question needs 4 bytes after name", ErrBufferUnderflow)
	}
	q := Question{
		Name:  name,
		Type:  RecordType(binary.BigEndian.Uint16(msg[*off : *off+2])),
		Class: RecordClass(binary.BigEndian.Uint16(msg[*off+2 : *off+4])),
	}
	*off += 4
	return q, nil
}
