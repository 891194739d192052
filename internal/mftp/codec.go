package mftp

import "encoding/binary"

// typeTags maps each packet type to its two-byte wire magic. Every byte is
// repeated for resilience against single-bit corruption flipping the tag
// into another valid one.
var typeTags = map[PacketType][2]byte{
	TypeData:  {0x55, 0x55},
	TypeAck:   {0xAA, 0xAA},
	TypeFin:   {0xA5, 0xA5},
	TypeReset: {0x5A, 0x5A},
}

var tagTypes = map[[2]byte]PacketType{
	{0x55, 0x55}: TypeData,
	{0xAA, 0xAA}: TypeAck,
	{0xA5, 0xA5}: TypeFin,
	{0x5A, 0x5A}: TypeReset,
}

// encodeSeq writes n into buf[0:4], little-endian.
func encodeSeq(buf []byte, n uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], n)
}

// decodeSeq reads the little-endian sequence number out of buf[0:4].
func decodeSeq(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf[0:4])
}

// encodeType writes t's two-byte magic into buf[6:8].
func encodeType(buf []byte, t PacketType) {
	tag := typeTags[t]
	buf[6], buf[7] = tag[0], tag[1]
}

// decodeType reads the two-byte magic at buf[6:8] and resolves it to a
// PacketType, or TypeUnknown if it matches none of the known tags.
func decodeType(buf []byte) PacketType {
	tag := [2]byte{buf[6], buf[7]}
	if t, ok := tagTypes[tag]; ok {
		return t
	}
	return TypeUnknown
}

// checksum computes the 16-bit one's-complement sum over buf, folding
// carries back in twice, then returns its one's complement (inverted).
func checksum(buf []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(buf); i += 2 {
		sum += uint32(buf[i])<<8 | uint32(buf[i+1])
	}
	if len(buf)%2 == 1 {
		sum += uint32(buf[len(buf)-1]) << 8
	}
	sum = (sum & 0xFFFF) + (sum >> 16)
	sum = (sum & 0xFFFF) + (sum >> 16)
	return ^uint16(sum)
}

// encodeChecksum computes the one's-complement checksum over buf[8:] and
// stores it big-endian at buf[4:6] (offset 4 = high byte, offset 5 = low
// byte). Callers MUST zero any unused trailing bytes of the payload region
// before calling this: the checksum spans the full buffer past the
// header, not just the occupied payload, so the receiver (which zeroes its
// MsgLen-sized buffer before every read and verifies over all of it)
// recomputes the same sum from a datagram of only HeaderLen+MSS bytes.
func encodeChecksum(buf []byte) {
	sum := checksum(buf[HeaderLen:])
	buf[4] = byte(sum >> 8)
	buf[5] = byte(sum)
}

// verifyChecksum recomputes the checksum over buf[8:] and compares it
// against the stored value at buf[4:6].
func verifyChecksum(buf []byte) bool {
	sum := checksum(buf[HeaderLen:])
	return buf[4] == byte(sum>>8) && buf[5] == byte(sum)
}
