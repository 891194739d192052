package mftp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodec_SeqRoundTrip(t *testing.T) {
	t.Parallel()

	var buf [MsgLen]byte
	encodeSeq(buf[:], 0xDEADBEEF)
	require.Equal(t, uint32(0xDEADBEEF), decodeSeq(buf[:]))
}

func TestCodec_TypeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, typ := range []PacketType{TypeData, TypeAck, TypeFin, TypeReset} {
		var buf [MsgLen]byte
		encodeType(buf[:], typ)
		require.Equal(t, typ, decodeType(buf[:]))
	}
}

func TestCodec_DecodeType_UnknownTag(t *testing.T) {
	t.Parallel()

	var buf [MsgLen]byte
	buf[6], buf[7] = 0x11, 0x22
	require.Equal(t, TypeUnknown, decodeType(buf[:]))
}

func TestCodec_ChecksumRoundTrip(t *testing.T) {
	t.Parallel()

	var buf [MsgLen]byte
	copy(buf[HeaderLen:], []byte("hello, mftp"))
	encodeChecksum(buf[:])
	require.True(t, verifyChecksum(buf[:]))
}

func TestCodec_ChecksumDetectsCorruption(t *testing.T) {
	t.Parallel()

	var buf [MsgLen]byte
	copy(buf[HeaderLen:], []byte("hello, mftp"))
	encodeChecksum(buf[:])

	buf[HeaderLen+3] ^= 0xFF
	require.False(t, verifyChecksum(buf[:]))
}

func TestCodec_ChecksumRequiresZeroedTail(t *testing.T) {
	t.Parallel()

	// Two senders using different (but unzeroed) trailing garbage beyond
	// their real payload would disagree on the checksum; this is why
	// encode/verify always span the full buffer and callers must zero it.
	var a, b [MsgLen]byte
	copy(a[HeaderLen:], []byte("same payload"))
	copy(b[HeaderLen:], []byte("same payload"))
	b[MsgLen-1] = 0x7F // garbage past the real payload, never cleared

	encodeChecksum(a[:])
	sumA := [2]byte{a[4], a[5]}

	// b's trailing garbage changes the checksum despite an identical payload.
	bSum := checksum(b[HeaderLen:])
	require.NotEqual(t, sumA, [2]byte{byte(bSum >> 8), byte(bSum)})
}

func TestCodec_EmptyPayloadChecksum(t *testing.T) {
	t.Parallel()

	var buf [HeaderLen]byte
	encodeChecksum(buf[:])
	require.True(t, verifyChecksum(buf[:]))
}
