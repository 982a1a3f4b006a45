package wire

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustName(t *testing.T, s string) Name {
	t.Helper()
	n, err := NewName(s)
	require.NoError(t, err)
	return n
}

func roundTripRR(t *testing.T, rr RR) RR {
	t.Helper()
	buf, err := EncodeRR(nil, rr, nameOffsets{})
	require.NoError(t, err)
	off := 0
	got, err := DecodeRR(buf, &off)
	require.NoError(t, err)
	assert.Equal(t, len(buf), off)
	return got
}

func TestIPRecordRoundTripA(t *testing.T) {
	addr := netip.MustParseAddr("192.0.2.10")
	rr := NewIPRecord(mustName(t, "www.example.com"), 300, addr)
	got := roundTripRR(t, rr)

	ip, ok := got.(IPRecord)
	require.True(t, ok)
	assert.Equal(t, TypeA, ip.Type())
	assert.Equal(t, mustName(t, "www.example.com"), ip.Header().Name)
	assert.Equal(t, int32(300), ip.Header().TTL)
	assert.True(t, ip.Addr.Is4())
	assert.Equal(t, addr, ip.Addr)
}

func TestIPRecordRoundTripAAAA(t *testing.T) {
	addr := netip.MustParseAddr("2001:db8::1")
	rr := NewIPRecord(mustName(t, "www.example.com"), 300, addr)
	got := roundTripRR(t, rr)

	ip, ok := got.(IPRecord)
	require.True(t, ok)
	assert.Equal(t, TypeAAAA, ip.Type())
	assert.Equal(t, addr, ip.Addr)
}

func TestNameRecordRoundTrip(t *testing.T) {
	rr := NameRecord{
		H:      RRHeader{Name: mustName(t, "alias.example.com"), Class: ClassIN, TTL: 60},
		T:      TypeCNAME,
		Target: mustName(t, "canonical.example.com"),
	}
	got := roundTripRR(t, rr)
	nr, ok := got.(NameRecord)
	require.True(t, ok)
	assert.Equal(t, TypeCNAME, nr.Type())
	assert.Equal(t, mustName(t, "canonical.example.com"), nr.Target)
}

func TestMXRecordRoundTrip(t *testing.T) {
	rr := MXRecord{
		H:          RRHeader{Name: mustName(t, "example.com"), Class: ClassIN, TTL: 60},
		Preference: 10,
		Exchange:   mustName(t, "mail.example.com"),
	}
	got := roundTripRR(t, rr)
	mx, ok := got.(MXRecord)
	require.True(t, ok)
	assert.Equal(t, uint16(10), mx.Preference)
	assert.Equal(t, mustName(t, "mail.example.com"), mx.Exchange)
}

func TestTXTRecordRoundTrip(t *testing.T) {
	rr := TXTRecord{
		H:       RRHeader{Name: mustName(t, "example.com"), Class: ClassIN, TTL: 60},
		Strings: []string{"v=spf1 -all", ""},
	}
	got := roundTripRR(t, rr)
	txt, ok := got.(TXTRecord)
	require.True(t, ok)
	assert.Equal(t, []string{"v=spf1 -all", ""}, txt.Strings)
}

func TestTXTRecordLongString(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	rr := TXTRecord{
		H:       RRHeader{Name: mustName(t, "example.com"), Class: ClassIN, TTL: 60},
		Strings: []string{string(long)},
	}
	got := roundTripRR(t, rr)
	txt, ok := got.(TXTRecord)
	require.True(t, ok)
	// A character-string holds at most 255 bytes, so 300 bytes go out as
	// two strings of 255 and 45.
	require.Len(t, txt.Strings, 2)
	assert.Equal(t, string(long), txt.Strings[0]+txt.Strings[1])
}

func TestSOARecordRoundTrip(t *testing.T) {
	rr := SOARecord{
		H:       RRHeader{Name: mustName(t, "example.com"), Class: ClassIN, TTL: 3600},
		MName:   mustName(t, "ns1.example.com"),
		RName:   mustName(t, "hostmaster.example.com"),
		Serial:  2026073001,
		Refresh: 7200,
		Retry:   3600,
		Expire:  1209600,
		Minimum: 300,
	}
	got := roundTripRR(t, rr)
	soa, ok := got.(SOARecord)
	require.True(t, ok)
	assert.Equal(t, rr.Serial, soa.Serial)
	assert.Equal(t, rr.Minimum, soa.Minimum)
	assert.Equal(t, rr.MName, soa.MName)
	assert.Equal(t, rr.RName, soa.RName)
}

func TestOpaqueRecordRoundTrip(t *testing.T) {
	rr := OpaqueRecord{
		H:     RRHeader{Name: mustName(t, "example.com"), Class: ClassIN, TTL: 60},
		T:     RecordType(65535),
		RData: []byte{1, 2, 3, 4},
	}
	got := roundTripRR(t, rr)
	op, ok := got.(OpaqueRecord)
	require.True(t, ok)
	assert.Equal(t, rr.RData, op.RData)
	assert.Equal(t, "TYPE65535", op.Type().String())
}

func TestChangeOwnerProducesIndependentCopy(t *testing.T) {
	original := NewIPRecord(mustName(t, "old.example.com"), 300, netip.MustParseAddr("192.0.2.1"))
	renamed := ChangeOwner(original, mustName(t, "new.example.com"))

	assert.Equal(t, mustName(t, "old.example.com"), original.Header().Name)
	assert.Equal(t, mustName(t, "new.example.com"), renamed.Header().Name)

	ip := renamed.(IPRecord)
	assert.Equal(t, original.Addr, ip.Addr)
	assert.Equal(t, original.Header().TTL, renamed.Header().TTL)
}

func TestDecodeRRRejectsLengthMismatch(t *testing.T) {
	rr := NewIPRecord(mustName(t, "example.com"), 60, netip.MustParseAddr("192.0.2.1"))
	buf, err := EncodeRR(nil, rr, nameOffsets{})
	require.NoError(t, err)

	// Corrupt the rdlength field (bytes 8:10 of the fixed 10-byte block that
	// follow the name) to claim more data than is actually present.
	nameLen := len(buf) - 10 - 4
	buf[nameLen+8] = 0
	buf[nameLen+9] = 200

	off := 0
	_, err = DecodeRR(buf, &off)
	require.Error(t, err)
}
