package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	//MaxPayloadSize caps a declared packet length before any allocation
	// happens. Work templates and signed submissions are well under this.
	MaxPayloadSize = 1 << 21

	headerLen = 5 // opcode + u32 big-endian length
)

var (
	//ErrInvalidCombination is returned when an opcode class and payload
	// presence do not go together
	ErrInvalidCombination = errors.New("protocol: invalid opcode/payload combination")
	//ErrTruncated is returned when a buffer ends before the declared payload
	ErrTruncated = errors.New("protocol: truncated packet")
	//ErrInvalidHeader is returned for a malformed or oversized header
	ErrInvalidHeader = errors.New("protocol: invalid packet header")
)

//Packet is the atomic wire unit
type Packet struct {
	Opcode  byte
	Payload []byte
}

//Valid reports whether the opcode class, payload presence combination may
// appear on the wire. OpLogin is the one data opcode allowed to be empty.
func (p Packet) Valid() bool {
	switch {
	case p.Opcode == OpLogin:
		return len(p.Payload) == 0
	case IsData(p.Opcode):
		return len(p.Payload) > 0
	case IsRequest(p.Opcode):
		return len(p.Payload) == 0
	default: // response class
		return true
	}
}

//Encode serializes the packet. Request opcodes emit exactly one byte and
// any payload is ignored. Data and response opcodes emit
// [opcode][length:4 BE][payload].
func Encode(op byte, payload []byte) ([]byte, error) {
	if IsRequest(op) {
		return []byte{op}, nil
	}
	if IsData(op) && op != OpLogin && len(payload) == 0 {
		return nil, ErrInvalidCombination
	}
	if op == OpLogin && len(payload) != 0 {
		return nil, ErrInvalidCombination
	}
	if len(payload) > MaxPayloadSize {
		return nil, ErrInvalidHeader
	}
	out := make([]byte, headerLen+len(payload))
	out[0] = op
	binary.BigEndian.PutUint32(out[1:5], uint32(len(payload)))
	copy(out[5:], payload)
	return out, nil
}

//Encode serializes p, see the package level Encode
func (p Packet) Encode() ([]byte, error) {
	return Encode(p.Opcode, p.Payload)
}

//Decode parses one complete packet from b. The opcode is read first and
// the length field is only consulted for data and response classes; a
// decoder reading the length unconditionally would misparse request
// packets.
func Decode(b []byte) (Packet, error) {
	if len(b) == 0 {
		return Packet{}, ErrTruncated
	}
	op := b[0]
	if IsRequest(op) {
		if len(b) != 1 {
			return Packet{}, ErrInvalidCombination
		}
		return Packet{Opcode: op}, nil
	}
	if len(b) < headerLen {
		return Packet{}, ErrTruncated
	}
	length := binary.BigEndian.Uint32(b[1:5])
	if length > MaxPayloadSize {
		return Packet{}, ErrInvalidHeader
	}
	if IsData(op) {
		if op == OpLogin && length != 0 {
			return Packet{}, ErrInvalidCombination
		}
		if op != OpLogin && length == 0 {
			return Packet{}, ErrInvalidCombination
		}
	}
	if uint32(len(b)-headerLen) < length {
		return Packet{}, ErrTruncated
	}
	if uint32(len(b)-headerLen) > length {
		return Packet{}, ErrInvalidHeader
	}
	payload := make([]byte, length)
	copy(payload, b[headerLen:])
	return Packet{Opcode: op, Payload: payload}, nil
}

//ReadPacket reads the next packet off r, blocking until one full packet
// arrived or r fails
func ReadPacket(r io.Reader) (Packet, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:1]); err != nil {
		return Packet{}, err
	}
	op := hdr[0]
	if IsRequest(op) {
		return Packet{Opcode: op}, nil
	}
	if _, err := io.ReadFull(r, hdr[1:]); err != nil {
		return Packet{}, errTruncatedIfEOF(err)
	}
	length := binary.BigEndian.Uint32(hdr[1:5])
	if length > MaxPayloadSize {
		return Packet{}, ErrInvalidHeader
	}
	if IsData(op) {
		if op == OpLogin && length != 0 {
			// Skip the declared payload so the stream stays at a packet
			// boundary; its bytes must never be read back as packets.
			if _, derr := io.CopyN(io.Discard, r, int64(length)); derr != nil {
				return Packet{}, errTruncatedIfEOF(derr)
			}
			return Packet{}, ErrInvalidCombination
		}
		if op != OpLogin && length == 0 {
			return Packet{}, ErrInvalidCombination
		}
	}
	if length == 0 {
		return Packet{Opcode: op}, nil
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Packet{}, errTruncatedIfEOF(err)
	}
	return Packet{Opcode: op, Payload: payload}, nil
}

//WritePacket encodes p and writes it to w in a single call
func WritePacket(w io.Writer, p Packet) error {
	b, err := p.Encode()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func errTruncatedIfEOF(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
