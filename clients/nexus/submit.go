package nexus

import (
	"go.uber.org/zap"

	"github.com/NamecoinGithub/NexusMiner-sub000/keys"
	"github.com/NamecoinGithub/NexusMiner-sub000/protocol"
	"github.com/NamecoinGithub/NexusMiner-sub000/statistics"
)

//submitter turns a worker's (template, nonce) result into an outbound
// packet. When the session is authenticated it wraps the block data in a
// signature envelope; on any failure along that path it degrades to the
// legacy unsigned form without surfacing the failure to the worker.
type submitter struct {
	session  *authSession
	signer   keys.Signer
	counters *statistics.Counters
	logger   *zap.Logger
}

func newSubmitter(session *authSession, signer keys.Signer, counters *statistics.Counters, logger *zap.Logger) *submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &submitter{session: session, signer: signer, counters: counters, logger: logger}
}

//buildSubmission encodes the outbound submission packet. The returned
// packet is always valid when err is nil; err is only set for inputs no
// fallback can fix (a malformed merkle root).
func (sb *submitter) buildSubmission(merkleRoot []byte, nonce uint64) (protocol.Packet, error) {
	blockData, err := protocol.BlockData(merkleRoot, nonce)
	if err != nil {
		return protocol.Packet{}, err
	}

	if sb.session.authenticated() && sb.signer != nil {
		pkt, err := sb.signedSubmission(merkleRoot, nonce, blockData)
		if err == nil {
			sb.counters.Signed.Inc()
			return pkt, nil
		}
		// The envelope is best effort: log the specific cause and degrade.
		// Mining continues on the legacy path either way.
		sb.logger.Warn("signed submission failed, using legacy format", zap.Error(err))
		sb.counters.LegacyFallbacks.Inc()
	}

	return protocol.EncodeLegacySubmit(merkleRoot, nonce)
}

func (sb *submitter) signedSubmission(merkleRoot []byte, nonce uint64, blockData []byte) (protocol.Packet, error) {
	// The node verifies the signature against the session's public key and
	// discards it; only the 72 block data bytes are retained.
	sig, err := sb.signer.Sign(blockData)
	if err != nil {
		return protocol.Packet{}, err
	}
	return protocol.EncodeSignedSubmit(merkleRoot, nonce, sig)
}
