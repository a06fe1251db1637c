package protocol

import (
	"encoding/binary"
	"fmt"
)

// Two template header generations exist on the wire. The decoder picks the
// layout by payload size, so a newer node can be spoken to without a
// version negotiation round-trip.
//
//	full (152 bytes):    version(4 LE) prev_ref(64) merkle_root(64)
//	                     channel(4 LE) height(4 LE) bits(4 LE) nonce(8 BE)
//	compact (92 bytes):  version(4 LE) merkle_root(64) channel(4 LE)
//	                     height(4 LE) bits(4 LE) nonce(8 BE) timestamp(4 LE)
const (
	PrevRefSize = 64

	FullTemplateSize    = 4 + PrevRefSize + MerkleRootSize + 4 + 4 + 4 + 8
	CompactTemplateSize = 4 + MerkleRootSize + 4 + 4 + 4 + 8 + 4
)

//WireTemplate is a decoded work template header
type WireTemplate struct {
	Version    uint32
	Channel    uint32
	Height     uint32
	Bits       uint32
	PrevRef    []byte
	MerkleRoot []byte
	Nonce      uint64
	Timestamp  uint32
	Layout     string
}

type templateLayout struct {
	name   string
	decode func([]byte) WireTemplate
}

var templateLayouts = map[int]templateLayout{
	FullTemplateSize:    {name: "full", decode: decodeFullTemplate},
	CompactTemplateSize: {name: "compact", decode: decodeCompactTemplate},
}

//DecodeTemplate parses a work template payload, selecting the header
// layout by size. An unknown size is a decode error, never a guess.
func DecodeTemplate(payload []byte) (WireTemplate, error) {
	layout, ok := templateLayouts[len(payload)]
	if !ok {
		return WireTemplate{}, fmt.Errorf("protocol: unknown template layout, %d bytes", len(payload))
	}
	tmpl := layout.decode(payload)
	tmpl.Layout = layout.name
	return tmpl, nil
}

func decodeFullTemplate(p []byte) WireTemplate {
	var t WireTemplate
	t.Version = binary.LittleEndian.Uint32(p[0:4])
	t.PrevRef = append([]byte(nil), p[4:4+PrevRefSize]...)
	off := 4 + PrevRefSize
	t.MerkleRoot = append([]byte(nil), p[off:off+MerkleRootSize]...)
	off += MerkleRootSize
	t.Channel = binary.LittleEndian.Uint32(p[off : off+4])
	t.Height = binary.LittleEndian.Uint32(p[off+4 : off+8])
	t.Bits = binary.LittleEndian.Uint32(p[off+8 : off+12])
	t.Nonce = binary.BigEndian.Uint64(p[off+12 : off+20])
	return t
}

func decodeCompactTemplate(p []byte) WireTemplate {
	var t WireTemplate
	t.Version = binary.LittleEndian.Uint32(p[0:4])
	t.MerkleRoot = append([]byte(nil), p[4:4+MerkleRootSize]...)
	off := 4 + MerkleRootSize
	t.Channel = binary.LittleEndian.Uint32(p[off : off+4])
	t.Height = binary.LittleEndian.Uint32(p[off+4 : off+8])
	t.Bits = binary.LittleEndian.Uint32(p[off+8 : off+12])
	t.Nonce = binary.BigEndian.Uint64(p[off+12 : off+20])
	t.Timestamp = binary.LittleEndian.Uint32(p[off+20 : off+24])
	return t
}

//EncodeFullTemplate builds a full-layout template payload
func EncodeFullTemplate(t WireTemplate) ([]byte, error) {
	if len(t.MerkleRoot) != MerkleRootSize {
		return nil, ErrBadMerkleRoot
	}
	if len(t.PrevRef) != PrevRefSize {
		return nil, fmt.Errorf("protocol: prev ref must be %d bytes", PrevRefSize)
	}
	p := make([]byte, FullTemplateSize)
	binary.LittleEndian.PutUint32(p[0:4], t.Version)
	copy(p[4:], t.PrevRef)
	off := 4 + PrevRefSize
	copy(p[off:], t.MerkleRoot)
	off += MerkleRootSize
	binary.LittleEndian.PutUint32(p[off:off+4], t.Channel)
	binary.LittleEndian.PutUint32(p[off+4:off+8], t.Height)
	binary.LittleEndian.PutUint32(p[off+8:off+12], t.Bits)
	binary.BigEndian.PutUint64(p[off+12:off+20], t.Nonce)
	return p, nil
}

//EncodeCompactTemplate builds a compact-layout template payload
func EncodeCompactTemplate(t WireTemplate) ([]byte, error) {
	if len(t.MerkleRoot) != MerkleRootSize {
		return nil, ErrBadMerkleRoot
	}
	p := make([]byte, CompactTemplateSize)
	binary.LittleEndian.PutUint32(p[0:4], t.Version)
	copy(p[4:], t.MerkleRoot)
	off := 4 + MerkleRootSize
	binary.LittleEndian.PutUint32(p[off:off+4], t.Channel)
	binary.LittleEndian.PutUint32(p[off+4:off+8], t.Height)
	binary.LittleEndian.PutUint32(p[off+8:off+12], t.Bits)
	binary.BigEndian.PutUint64(p[off+12:off+20], t.Nonce)
	binary.LittleEndian.PutUint32(p[off+20:off+24], t.Timestamp)
	return p, nil
}
