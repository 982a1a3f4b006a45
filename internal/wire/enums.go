package wire

// Header flag bits and masks (RFC 1035 section 4.1.1).
//
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	|QR|   Opcode  |AA|TC|RD|RA| Z|AD|CD|   RCODE   |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	 15 14 13 12 11 10  9  8  7  6  5  4  3  2  1  0
const (
	FlagQR     uint16 = 0x8000 // Query (0) / Response (1)
	FlagOpcode uint16 = 0x7800 // bits 14-11, shift right 11 to read
	FlagAA     uint16 = 0x0400 // Authoritative Answer
	FlagTC     uint16 = 0x0200 // Truncation
	FlagRD     uint16 = 0x0100 // Recursion Desired
	FlagRA     uint16 = 0x0080 // Recursion Available
	FlagZ      uint16 = 0x0040 // reserved, must be zero
	FlagAD     uint16 = 0x0020 // Authenticated Data
	FlagCD     uint16 = 0x0010 // Checking Disabled
	FlagRCode  uint16 = 0x000F // bits 3-0
)

// Opcode returns the 4-bit operation code carried in flags.
func Opcode(flags uint16) uint16 { return (flags & FlagOpcode) >> 11 }

// RCode represents a DNS response code (RFC 1035 section 4.1.1).
type RCode uint16

const (
	RCodeOK        RCode = 0
	RCodeFormErr   RCode = 1
	RCodeServFail  RCode = 2
	RCodeNXDomain  RCode = 3
	RCodeNotImp    RCode = 4
	RCodeRefused   RCode = 5
)

// RCodeOf extracts the response code from the header flags.
func RCodeOf(flags uint16) RCode { return RCode(flags & FlagRCode) }

// RecordType identifies a resource record's type (RFC 1035, RFC 3596).
type RecordType uint16

const (
	TypeA     RecordType = 1
	TypeNS    RecordType = 2
	TypeCNAME RecordType = 5
	TypeSOA   RecordType = 6
	TypePTR   RecordType = 12
	TypeMX    RecordType = 15
	TypeTXT   RecordType = 16
	TypeAAAA  RecordType = 28
)

// RecordClass identifies a resource record's class (RFC 1035 section 3.2.4).
type RecordClass uint16

const (
	ClassIN RecordClass = 1
)
