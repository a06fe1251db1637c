package nexus

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NamecoinGithub/NexusMiner-sub000/protocol"
	"github.com/NamecoinGithub/NexusMiner-sub000/statistics"
	"github.com/NamecoinGithub/NexusMiner-sub000/types"
)

func authenticatedSession() *authSession {
	s := testSession(newTestSigner(), nil)
	s.state = types.Authenticated
	s.sessionID = 1234
	return s
}

func TestSubmitWithoutKeysAlwaysLegacy(t *testing.T) {
	session := testSession(nil, nil)
	session.state = types.LegacyFallback
	sb := newSubmitter(session, nil, &statistics.Counters{}, zap.NewNop())

	for nonce := uint64(0); nonce < 5; nonce++ {
		pkt, err := sb.buildSubmission(nonZeroMerkle(), nonce)
		require.NoError(t, err)
		assert.Equal(t, protocol.OpSubmitBlock, pkt.Opcode)
		assert.Len(t, pkt.Payload, 72)
	}
	assert.Zero(t, sb.counters.Signed.Load())
}

func TestSubmitSignedEnvelopeSize(t *testing.T) {
	signer := newTestSigner() // 690-byte signature
	session := authenticatedSession()
	sb := newSubmitter(session, signer, &statistics.Counters{}, zap.NewNop())

	pkt, err := sb.buildSubmission(nonZeroMerkle(), 7)
	require.NoError(t, err)
	assert.Equal(t, protocol.OpSignedSubmit, pkt.Opcode)
	assert.Len(t, pkt.Payload, 64+8+2+690)

	// The first 72 bytes reproduce the block data exactly.
	want, err := protocol.BlockData(nonZeroMerkle(), 7)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(pkt.Payload[:72], want))
	assert.Equal(t, uint64(1), sb.counters.Signed.Load())
}

func TestSubmitOversizedSignatureFallsBack(t *testing.T) {
	signer := newTestSigner()
	signer.sig = make([]byte, 70000)
	sb := newSubmitter(authenticatedSession(), signer, &statistics.Counters{}, zap.NewNop())

	pkt, err := sb.buildSubmission(nonZeroMerkle(), 7)
	require.NoError(t, err)
	// No truncated length field is ever emitted; the legacy form goes out.
	assert.Equal(t, protocol.OpSubmitBlock, pkt.Opcode)
	assert.Len(t, pkt.Payload, 72)
	assert.Equal(t, uint64(1), sb.counters.LegacyFallbacks.Load())
	assert.Zero(t, sb.counters.Signed.Load())
}

func TestSubmitSigningErrorFallsBack(t *testing.T) {
	signer := newTestSigner()
	signer.err = assert.AnError
	sb := newSubmitter(authenticatedSession(), signer, &statistics.Counters{}, zap.NewNop())

	pkt, err := sb.buildSubmission(nonZeroMerkle(), 7)
	require.NoError(t, err)
	assert.Equal(t, protocol.OpSubmitBlock, pkt.Opcode)
	assert.Equal(t, uint64(1), sb.counters.LegacyFallbacks.Load())
}

func TestSubmitUnauthenticatedSessionLegacy(t *testing.T) {
	// A signer is configured but the handshake fell back: never sign.
	sb := newSubmitter(testSession(newTestSigner(), nil), newTestSigner(), &statistics.Counters{}, zap.NewNop())
	sb.session.state = types.LegacyFallback

	pkt, err := sb.buildSubmission(nonZeroMerkle(), 7)
	require.NoError(t, err)
	assert.Equal(t, protocol.OpSubmitBlock, pkt.Opcode)
	assert.Zero(t, sb.counters.Signed.Load())
}

func TestSubmitBadMerkleRoot(t *testing.T) {
	sb := newSubmitter(authenticatedSession(), newTestSigner(), &statistics.Counters{}, zap.NewNop())
	_, err := sb.buildSubmission(make([]byte, 32), 7)
	assert.ErrorIs(t, err, protocol.ErrBadMerkleRoot)
}
