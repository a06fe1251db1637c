//Package hashchannel implements the proof search for the hashing channel.
// A candidate wins when the double sha256 digest of the serialized header,
// read as a big-endian integer, does not exceed the difficulty target.
package hashchannel

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"github.com/NamecoinGithub/NexusMiner-sub000/clients"
)

//SerializeHeader lays out the fields a proof digest covers. Multi byte
// integers use the same byte order they carry on the wire: little endian
// for the template integers, big endian for the nonce.
func SerializeHeader(tmpl *clients.Template, nonce uint64) (header []byte) {
	header = make([]byte, 0, 16+len(tmpl.PrevRef)+len(tmpl.MerkleRoot)+8+4)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], tmpl.Version)
	header = append(header, u32[:]...)
	header = append(header, tmpl.PrevRef...)
	header = append(header, tmpl.MerkleRoot...)
	binary.LittleEndian.PutUint32(u32[:], tmpl.Channel)
	header = append(header, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], tmpl.Height)
	header = append(header, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], tmpl.Bits)
	header = append(header, u32[:]...)
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], nonce)
	header = append(header, u64[:]...)
	return
}

//Digest computes the proof digest for one nonce
func Digest(tmpl *clients.Template, nonce uint64) []byte {
	first := sha256.Sum256(SerializeHeader(tmpl, nonce))
	second := sha256.Sum256(first[:])
	return second[:]
}

//Search scans count nonces from start and returns the first winner
func Search(tmpl *clients.Template, target []byte, start, count uint64) (nonce uint64, found bool) {
	goal := new(big.Int).SetBytes(target)
	candidate := new(big.Int)
	for i := uint64(0); i < count; i++ {
		nonce = start + i
		candidate.SetBytes(Digest(tmpl, nonce))
		if candidate.Cmp(goal) <= 0 {
			return nonce, true
		}
	}
	return 0, false
}
