package wire

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strconv"
)

// RRHeader is the fixed-format prefix shared by every resource record:
// owner name, class, and TTL. Type is carried on the concrete record
// itself (RR.Type) rather than duplicated here.
type RRHeader struct {
	Name  Name
	Class RecordClass
	// TTL is the 32-bit wire field, kept signed per the data model ("32-bit
	// unsigned, treated as signed 32 for arithmetic") so cache TTL math
	// that subtracts elapsed time can go negative without wrapping.
	TTL int32
}

// RR is a resource record: a typed datum carried in a message's answer,
// authority, or additional section. Concrete types are plain value structs
// so an RR held in an interface is already an independent copy — WithHeader
// returns a new RR rather than mutating in place, which is what lets
// ChangeOwner satisfy the "identical except for owner name" invariant
// without aliasing.
type RR interface {
	Header() RRHeader
	Type() RecordType
	MarshalRData() ([]byte, error)
	WithHeader(RRHeader) RR
}

// ChangeOwner returns a copy of rr with its owner name replaced by n and
// everything else unchanged.
func ChangeOwner(rr RR, n Name) RR {
	h := rr.Header()
	h.Name = n
	return rr.WithHeader(h)
}

// EncodeRR appends the wire encoding of rr to dst (name, fixed fields,
// rdlength, rdata), compressing the owner name against offsets.
func EncodeRR(dst []byte, rr RR, offsets nameOffsets) ([]byte, error) {
	dst = EncodeName(dst, rr.Header().Name, offsets)

	rdata, err := rr.MarshalRData()
	if err != nil {
		return nil, err
	}

	var fixed [10]byte
	binary.BigEndian.PutUint16(fixed[0:2], uint16(rr.Type()))
	binary.BigEndian.PutUint16(fixed[2:4], uint16(rr.Header().Class))
	binary.BigEndian.PutUint32(fixed[4:8], uint32(rr.Header().TTL))
	binary.BigEndian.PutUint16(fixed[8:10], uint16(len(rdata)))
	dst = append(dst, fixed[:]...)
	dst = append(dst, rdata...)
	return dst, nil
}

// DecodeRR parses a resource record from msg at *off, advancing *off past
// it, and dispatches to a type-specific RDATA parser that must consume
// exactly rdlength bytes. Unrecognized types are retained verbatim as an
// OpaqueRecord.
func DecodeRR(msg []byte, off *int) (RR, error) {
	name, err := DecodeName(msg, off)
	if err != nil {
		return nil, err
	}
	if *off+10 > len(msg) {
		return nil, fmt.Errorf("%w: RR fixed fields need 10 bytes", ErrBufferUnderflow)
	}
	rtype := RecordType(binary.BigEndian.Uint16(msg[*off : *off+2]))
	class := RecordClass(binary.BigEndian.Uint16(msg[*off+2 : *off+4]))
	ttl := int32(binary.BigEndian.Uint32(msg[*off+4 : *off+8]))
	rdlen := int(binary.BigEndian.Uint16(msg[*off+8 : *off+10]))
	*off += 10

	start := *off
	if start+rdlen > len(msg) {
		return nil, fmt.Errorf("%w: RDATA needs %d bytes", ErrBufferUnderflow, rdlen)
	}
	h := RRHeader{Name: name, Class: class, TTL: ttl}

	rr, err := decodeRData(msg, off, start, rdlen, rtype)
	if err != nil {
		return nil, err
	}
	if *off != start+rdlen {
		return nil, fmt.Errorf("%w: %v RDATA length mismatch (declared %d, consumed %d)", ErrMalformed, rtype, rdlen, *off-start)
	}
	return rr.WithHeader(h), nil
}

func decodeRData(msg []byte, off *int, start, rdlen int, rtype RecordType) (RR, error) {
	switch rtype {
	case TypeA, TypeAAAA:
		return decodeIPRData(msg, off, rdlen, rtype)
	case TypeCNAME, TypeNS, TypePTR:
		target, err := DecodeName(msg, off)
		if err != nil {
			return nil, err
		}
		return NameRecord{T: rtype, Target: target}, nil
	case TypeMX:
		if *off+2 > len(msg) {
			return nil, fmt.Errorf("%w: MX preference needs 2 bytes", ErrBufferUnderflow)
		}
		pref := binary.BigEndian.Uint16(msg[*off : *off+2])
		*off += 2
		exch, err := DecodeName(msg, off)
		if err != nil {
			return nil, err
		}
		return MXRecord{Preference: pref, Exchange: exch}, nil
	case TypeTXT:
		return decodeTXTRData(msg, off, start, rdlen)
	case TypeSOA:
		return decodeSOARData(msg, off)
	default:
		raw := make([]byte, rdlen)
		copy(raw, msg[start:start+rdlen])
		*off = start + rdlen
		return OpaqueRecord{T: rtype, RData: raw}, nil
	}
}

// IPRecord is an A or AAAA record.
type IPRecord struct {
	H    RRHeader
	T    RecordType // TypeA or TypeAAAA
	Addr netip.Addr
}

// NewIPRecord builds an IPRecord, inferring A vs AAAA from the address.
func NewIPRecord(name Name, ttl int32, addr netip.Addr) IPRecord {
	t := TypeAAAA
	if addr.Is4() || addr.Is4In6() {
		t = TypeA
	}
	return IPRecord{H: RRHeader{Name: name, Class: ClassIN, TTL: ttl}, T: t, Addr: addr}
}

func (r IPRecord) Header() RRHeader       { return r.H }
func (r IPRecord) Type() RecordType       { return r.T }
func (r IPRecord) WithHeader(h RRHeader) RR { r.H = h; return r }

func (r IPRecord) MarshalRData() ([]byte, error) {
	if r.T == TypeA {
		if !r.Addr.Is4() && !r.Addr.Is4In6() {
			return nil, fmt.Errorf("%w: A record requires an IPv4 address", ErrMalformed)
		}
		b := r.Addr.As4()
		return b[:], nil
	}
	b := r.Addr.As16()
	return b[:], nil
}

func decodeIPRData(msg []byte, off *int, rdlen int, rtype RecordType) (RR, error) {
	want := 4
	if rtype == TypeAAAA {
		want = 16
	}
	if rdlen != want {
		return nil, fmt.Errorf("%w: %v record must be %d bytes, got %d", ErrMalformed, rtype, want, rdlen)
	}
	if *off+rdlen > len(msg) {
		return nil, fmt.Errorf("%w: IP record data", ErrBufferUnderflow)
	}
	var addr netip.Addr
	if want == 4 {
		addr = netip.AddrFrom4([4]byte(msg[*off : *off+4]))
	} else {
		addr = netip.AddrFrom16([16]byte(msg[*off : *off+16]))
	}
	*off += rdlen
	return IPRecord{T: rtype, Addr: addr}, nil
}

// NameRecord is a CNAME, NS, or PTR record — RDATA is a single domain name.
type NameRecord struct {
	H      RRHeader
	T      RecordType
	Target Name
}

func (r NameRecord) Header() RRHeader       { return r.H }
func (r NameRecord) Type() RecordType       { return r.T }
func (r NameRecord) WithHeader(h RRHeader) RR { r.H = h; return r }

func (r NameRecord) MarshalRData() ([]byte, error) {
	// Name compression is legal in RDATA in principle, but CNAME/NS/PTR
	// targets are encoded fully expanded here (a fresh, empty offset map) to keep the
	// record's own rdlength self-contained and independent of where it
	// lands in the message — matching the teacher's EncodeName behavior.
	return EncodeName(nil, r.Target, nameOffsets{}), nil
}

// MXRecord is a mail-exchange record.
type MXRecord struct {
	H          RRHeader
	Preference uint16
	Exchange   Name
}

func (r MXRecord) Header() RRHeader       { return r.H }
func (r MXRecord) Type() RecordType       { return TypeMX }
func (r MXRecord) WithHeader(h RRHeader) RR { r.H = h; return r }

func (r MXRecord) MarshalRData() ([]byte, error) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], r.Preference)
	out := append([]byte{}, b[:]...)
	return EncodeName(out, r.Exchange, nameOffsets{}), nil
}

// TXTRecord holds one or more character-strings (RFC 1035 section 3.3.14).
type TXTRecord struct {
	H       RRHeader
	Strings []string
}

func (r TXTRecord) Header() RRHeader       { return r.H }
func (r TXTRecord) Type() RecordType       { return TypeTXT }
func (r TXTRecord) WithHeader(h RRHeader) RR { r.H = h; return r }

func (r TXTRecord) MarshalRData() ([]byte, error) {
	strs := r.Strings
	if len(strs) == 0 {
		strs = []string{""}
	}
	var out []byte
	for _, s := range strs {
		b := []byte(s)
		for len(b) > 255 {
			out = append(out, 255)
			out = append(out, b[:255]...)
			b = b[255:]
		}
		out = append(out, byte(len(b)))
		out = append(out, b...)
	}
	return out, nil
}

func decodeTXTRData(msg []byte, off *int, start, rdlen int) (RR, error) {
	var strs []string
	end := start + rdlen
	for *off < end {
		ln := int(msg[*off])
		*off++
		if *off+ln > end {
			return nil, fmt.Errorf("%w: TXT character-string runs past RDATA", ErrMalformed)
		}
		strs = append(strs, string(msg[*off:*off+ln]))
		*off += ln
	}
	return TXTRecord{Strings: strs}, nil
}

// SOARecord is a start-of-authority record; Minimum drives negative-cache
// TTLs per RFC 2308.
type SOARecord struct {
	H       RRHeader
	MName   Name
	RName   Name
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

func (r SOARecord) Header() RRHeader       { return r.H }
func (r SOARecord) Type() RecordType       { return TypeSOA }
func (r SOARecord) WithHeader(h RRHeader) RR { r.H = h; return r }

func (r SOARecord) MarshalRData() ([]byte, error) {
	out := EncodeName(nil, r.MName, nameOffsets{})
	out = EncodeName(out, r.RName, nameOffsets{})
	var b [20]byte
	binary.BigEndian.PutUint32(b[0:4], r.Serial)
	binary.BigEndian.PutUint32(b[4:8], r.Refresh)
	binary.BigEndian.PutUint32(b[8:12], r.Retry)
	binary.BigEndian.PutUint32(b[12:16], r.Expire)
	binary.BigEndian.PutUint32(b[16:20], r.Minimum)
	return append(out, b[:]...), nil
}

func decodeSOARData(msg []byte, off *int) (RR, error) {
	mname, err := DecodeName(msg, off)
	if err != nil {
		return nil, err
	}
	rname, err := DecodeName(msg, off)
	if err != nil {
		return nil, err
	}
	if *off+20 > len(msg) {
		return nil, fmt.Errorf("%w: SOA numeric fields need 20 bytes", ErrBufferUnderflow)
	}
	b := msg[*off : *off+20]
	r := SOARecord{
		MName:   mname,
		RName:   rname,
		Serial:  binary.BigEndian.Uint32(b[0:4]),
		Refresh: binary.BigEndian.Uint32(b[4:8]),
		Retry:   binary.BigEndian.Uint32(b[8:12]),
		Expire:  binary.BigEndian.Uint32(b[12:16]),
		Minimum: binary.BigEndian.Uint32(b[16:20]),
	}
	*off += 20
	return r, nil
}

// OpaqueRecord carries the raw RDATA of a type this package does not parse
// structurally (the data model's "opaque UNKNOWN").
type OpaqueRecord struct {
	H     RRHeader
	T     RecordType
	RData []byte
}

func (r OpaqueRecord) Header() RRHeader       { return r.H }
func (r OpaqueRecord) Type() RecordType       { return r.T }
func (r OpaqueRecord) WithHeader(h RRHeader) RR { r.H = h; return r }

func (r OpaqueRecord) MarshalRData() ([]byte, error) {
	return r.RData, nil
}

// String renders a record in zone-file-ish form, useful for logging.
func (r IPRecord) String() string {
	return fmt.Sprintf("%s %d IN %v %s", r.H.Name, r.H.TTL, r.T, r.Addr)
}

func (t RecordType) String() string {
	switch t {
	case TypeA:
		return "A"
	case TypeNS:
		return "NS"
	case TypeCNAME:
		return "CNAME"
	case TypeSOA:
		return "SOA"
	case TypePTR:
		return "PTR"
	case TypeMX:
		return "MX"
	case TypeTXT:
		return "TXT"
	case TypeAAAA:
		return "AAAA"
	default:
		return "TYPE" + strconv.Itoa(int(t))
	}
}
