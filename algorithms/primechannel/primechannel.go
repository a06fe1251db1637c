//Package primechannel implements the proof search for the prime channel.
// The merkle root seeds a large odd origin; a nonce wins when origin+nonce
// starts a dense cluster of probable primes at gaps of two. The required
// cluster length comes from the upper byte of the difficulty bits.
package primechannel

import (
	"math/big"

	"github.com/NamecoinGithub/NexusMiner-sub000/clients"
)

const (
	// Miller Rabin rounds. math/big treats this many rounds as
	// cryptographically negligible error for inputs this size.
	primalityRounds = 16

	maxClusterLength = 12
)

//ClusterLength derives the required prime cluster length from the
// compact difficulty bits
func ClusterLength(bits uint32) int {
	n := int(bits >> 24)
	if n < 1 {
		return 1
	}
	if n > maxClusterLength {
		return maxClusterLength
	}
	return n
}

//Origin derives the search origin from a template. It is always odd so
// that even nonces keep candidates odd.
func Origin(tmpl *clients.Template) *big.Int {
	origin := new(big.Int).SetBytes(tmpl.MerkleRoot)
	origin.SetBit(origin, 0, 1)
	return origin
}

//IsPrimeCluster reports whether candidate starts a run of length probable
// primes spaced two apart
func IsPrimeCluster(candidate *big.Int, length int) bool {
	n := new(big.Int).Set(candidate)
	two := big.NewInt(2)
	for i := 0; i < length; i++ {
		if !n.ProbablyPrime(primalityRounds) {
			return false
		}
		n.Add(n, two)
	}
	return true
}

//Search scans count nonces from start and returns the first nonce whose
// candidate starts a qualifying cluster. Odd nonces are skipped since they
// produce even candidates.
func Search(tmpl *clients.Template, target []byte, start, count uint64) (nonce uint64, found bool) {
	length := ClusterLength(tmpl.Bits)
	origin := Origin(tmpl)
	candidate := new(big.Int)
	for i := uint64(0); i < count; i++ {
		nonce = start + i
		if nonce&1 == 1 {
			continue
		}
		candidate.SetUint64(nonce)
		candidate.Add(candidate, origin)
		if IsPrimeCluster(candidate, length) {
			return nonce, true
		}
	}
	return 0, false
}
