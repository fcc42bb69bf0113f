package stego

import (
	"encoding/binary"
	"hash/crc32"

	domstego "gonomen/domain/stego"
)

// Frame layout in bytes: tag(2) | type<<4|len (1) | payload(11) | check(2).
// The position carrier bounds the frame: 128 bits over three fields is 43
// low mantissa bits each, a change of at most 2^-10 for values in [-1, 1].
const (
	FrameBytes = 3 + domstego.PayloadSize + 2
	FrameBits  = FrameBytes * 8

	checkAt = FrameBytes - 2
)

// packFrame serializes a validated message.
func packFrame(tag uint16, m domstego.Message) [FrameBytes]byte {
	var f [FrameBytes]byte
	binary.BigEndian.PutUint16(f[0:2], tag)
	f[2] = byte(m.Type)<<4 | byte(len(m.Payload))
	copy(f[3:3+domstego.PayloadSize], m.Payload)
	binary.BigEndian.PutUint16(f[checkAt:], checksum16(f[:checkAt]))
	return f
}

// unpackFrame returns false unless tag, checksum, type and length are valid.
func unpackFrame(tag uint16, f [FrameBytes]byte) (domstego.Message, bool) {
	if binary.BigEndian.Uint16(f[0:2]) != tag {
		return domstego.Message{}, false
	}
	if binary.BigEndian.Uint16(f[checkAt:]) != checksum16(f[:checkAt]) {
		return domstego.Message{}, false
	}
	t := domstego.MessageType(f[2] >> 4)
	n := int(f[2] & 0x0f)
	if !t.Valid() || n > domstego.PayloadSize {
		return domstego.Message{}, false
	}
	payload := make([]byte, n)
	copy(payload, f[3:3+n])
	return domstego.Message{Type: t, Payload: payload}, true
}

// checksum16 folds a CRC-32 into 16 bits.
func checksum16(b []byte) uint16 {
	c := crc32.ChecksumIEEE(b)
	return uint16(c>>16) ^ uint16(c)
}

func frameBits(f [FrameBytes]byte) []bool {
	bits := make([]bool, FrameBits)
	for i := range bits {
		bits[i] = f[i/8]&(0x80>>(i%8)) != 0
	}
	return bits
}

func bitsFrame(bits []bool) [FrameBytes]byte {
	var f [FrameBytes]byte
	for i := 0; i < FrameBits && i < len(bits); i++ {
		if bits[i] {
			f[i/8] |= 0x80 >> (i % 8)
		}
	}
	return f
}
