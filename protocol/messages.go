package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Field endianness is per-field, not per-protocol. The table below is the
// authoritative list; every encoder and decoder in this package follows it
// and nothing else may assume a global byte order.
//
//	outer packet length          u32  big-endian
//	auth pubkey_len, sig_len     u16  big-endian
//	auth timestamp               u64  big-endian
//	auth session_id              u32  big-endian
//	block nonce                  u64  big-endian
//	template version             u32  little-endian (older format)
//	template channel             u32  little-endian (older format)
//	template height              u32  little-endian (older format)
//	template difficulty bits     u32  little-endian (older format)
//	template timestamp           u32  little-endian (older format)
//	height broadcast             u32  little-endian (older format)
//	channel select               u8

const (
	//MerkleRootSize is the fixed merkle root width in bytes
	MerkleRootSize = 64
	//NonceSize is the width of an encoded nonce
	NonceSize = 8
	//BlockDataSize is merkle root plus nonce, the only part of a
	// submission the node retains
	BlockDataSize = MerkleRootSize + NonceSize
	//MaxSignatureSize is the capacity of the 16-bit signature length field
	MaxSignatureSize = 0xFFFF
	//AuthResultSize is [status:1][session_id:4]
	AuthResultSize = 5
)

// Authentication result status values.
const (
	AuthStatusFailure byte = 0x00
	AuthStatusSuccess byte = 0x01
)

var (
	//ErrBadMerkleRoot is returned for a merkle root of the wrong size
	ErrBadMerkleRoot = errors.New("protocol: merkle root must be 64 bytes")
	//ErrSignatureTooLarge is returned before a signature length is cast
	// into the 16-bit field
	ErrSignatureTooLarge = errors.New("protocol: signature exceeds 16-bit length field")
	//ErrShortPayload is returned when a payload ends before its fixed layout
	ErrShortPayload = errors.New("protocol: payload too short for message")
)

//EncodeChannelSelect builds the channel selection message
func EncodeChannelSelect(channel byte) Packet {
	return Packet{Opcode: OpSetChannel, Payload: []byte{channel}}
}

//DecodeChannelAck parses the node's channel acknowledgement
func DecodeChannelAck(payload []byte) (byte, error) {
	if len(payload) < 1 {
		return 0, ErrShortPayload
	}
	return payload[0], nil
}

//AuthMessage builds the byte string the operator signs: the address
// string followed by a fixed-width 8-byte big-endian timestamp.
func AuthMessage(address string, timestamp uint64) []byte {
	msg := make([]byte, len(address)+8)
	copy(msg, address)
	binary.BigEndian.PutUint64(msg[len(address):], timestamp)
	return msg
}

//EncodeAuthCredential builds the direct authentication message
// [pubkey_len:2][pubkey][sig_len:2][signature]. There is no prior
// server-issued challenge in this design.
func EncodeAuthCredential(pubkey, signature []byte) (Packet, error) {
	if len(pubkey) == 0 || len(pubkey) > MaxSignatureSize {
		return Packet{}, fmt.Errorf("protocol: bad public key length %d", len(pubkey))
	}
	if len(signature) == 0 {
		return Packet{}, errors.New("protocol: empty signature")
	}
	if len(signature) > MaxSignatureSize {
		return Packet{}, ErrSignatureTooLarge
	}
	payload := make([]byte, 2+len(pubkey)+2+len(signature))
	binary.BigEndian.PutUint16(payload[0:2], uint16(len(pubkey)))
	copy(payload[2:], pubkey)
	off := 2 + len(pubkey)
	binary.BigEndian.PutUint16(payload[off:off+2], uint16(len(signature)))
	copy(payload[off+2:], signature)
	return Packet{Opcode: OpAuth, Payload: payload}, nil
}

//DecodeAuthCredential parses a credential payload back into its key and
// signature parts. A zero-length key or signature is malformed.
func DecodeAuthCredential(payload []byte) (pubkey, signature []byte, err error) {
	if len(payload) < 2 {
		return nil, nil, ErrShortPayload
	}
	keyLen := int(binary.BigEndian.Uint16(payload[0:2]))
	if keyLen == 0 || len(payload) < 2+keyLen+2 {
		return nil, nil, ErrShortPayload
	}
	pubkey = payload[2 : 2+keyLen]
	off := 2 + keyLen
	sigLen := int(binary.BigEndian.Uint16(payload[off : off+2]))
	if sigLen == 0 || len(payload) != off+2+sigLen {
		return nil, nil, ErrShortPayload
	}
	signature = payload[off+2 : off+2+sigLen]
	return pubkey, signature, nil
}

//EncodeAuthResult builds the node's [status:1][session_id:4] verdict
func EncodeAuthResult(status byte, sessionID uint32) Packet {
	payload := make([]byte, AuthResultSize)
	payload[0] = status
	binary.BigEndian.PutUint32(payload[1:5], sessionID)
	return Packet{Opcode: OpAuthResult, Payload: payload}
}

//DecodeAuthResult parses the node's verdict
func DecodeAuthResult(payload []byte) (status byte, sessionID uint32, err error) {
	if len(payload) < AuthResultSize {
		return 0, 0, ErrShortPayload
	}
	return payload[0], binary.BigEndian.Uint32(payload[1:5]), nil
}

//BlockData builds the fixed 72-byte submission unit, merkle root followed
// by the big-endian nonce
func BlockData(merkleRoot []byte, nonce uint64) ([]byte, error) {
	if len(merkleRoot) != MerkleRootSize {
		return nil, ErrBadMerkleRoot
	}
	data := make([]byte, BlockDataSize)
	copy(data, merkleRoot)
	binary.BigEndian.PutUint64(data[MerkleRootSize:], nonce)
	return data, nil
}

//EncodeLegacySubmit builds the unsigned 72-byte submission
func EncodeLegacySubmit(merkleRoot []byte, nonce uint64) (Packet, error) {
	data, err := BlockData(merkleRoot, nonce)
	if err != nil {
		return Packet{}, err
	}
	return Packet{Opcode: OpSubmitBlock, Payload: data}, nil
}

//EncodeSignedSubmit builds the signature envelope
// [merkle_root:64][nonce:8][sig_len:2][signature]. The signature length is
// validated against the 16-bit field before any cast so an oversized
// signature can never silently truncate.
func EncodeSignedSubmit(merkleRoot []byte, nonce uint64, signature []byte) (Packet, error) {
	if len(signature) == 0 {
		return Packet{}, errors.New("protocol: empty signature")
	}
	if len(signature) > MaxSignatureSize {
		return Packet{}, ErrSignatureTooLarge
	}
	data, err := BlockData(merkleRoot, nonce)
	if err != nil {
		return Packet{}, err
	}
	payload := make([]byte, BlockDataSize+2+len(signature))
	copy(payload, data)
	binary.BigEndian.PutUint16(payload[BlockDataSize:BlockDataSize+2], uint16(len(signature)))
	copy(payload[BlockDataSize+2:], signature)
	return Packet{Opcode: OpSignedSubmit, Payload: payload}, nil
}

//DecodeSignedSubmit splits an envelope back into block data and signature
func DecodeSignedSubmit(payload []byte) (blockData, signature []byte, err error) {
	if len(payload) < BlockDataSize+2 {
		return nil, nil, ErrShortPayload
	}
	sigLen := int(binary.BigEndian.Uint16(payload[BlockDataSize : BlockDataSize+2]))
	if sigLen == 0 || len(payload) != BlockDataSize+2+sigLen {
		return nil, nil, ErrShortPayload
	}
	return payload[:BlockDataSize], payload[BlockDataSize+2:], nil
}

//DecodeLegacySubmit parses an unsigned submission payload
func DecodeLegacySubmit(payload []byte) (merkleRoot []byte, nonce uint64, err error) {
	if len(payload) != BlockDataSize {
		return nil, 0, ErrShortPayload
	}
	return payload[:MerkleRootSize], binary.BigEndian.Uint64(payload[MerkleRootSize:]), nil
}

//EncodeBlockHeight builds a height broadcast, little-endian per the table
func EncodeBlockHeight(height uint32) Packet {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, height)
	return Packet{Opcode: OpBlockHeight, Payload: payload}
}

//DecodeBlockHeight parses a height broadcast
func DecodeBlockHeight(payload []byte) (uint32, error) {
	if len(payload) < 4 {
		return 0, ErrShortPayload
	}
	return binary.LittleEndian.Uint32(payload), nil
}

//IsZeroMerkleRoot reports whether root is all zero bytes
func IsZeroMerkleRoot(root []byte) bool {
	return len(root) == MerkleRootSize && bytes.Equal(root, make([]byte, MerkleRootSize))
}
