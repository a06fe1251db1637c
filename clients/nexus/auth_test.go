package nexus

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NamecoinGithub/NexusMiner-sub000/protocol"
	"github.com/NamecoinGithub/NexusMiner-sub000/statistics"
	"github.com/NamecoinGithub/NexusMiner-sub000/types"
)

type mockSigner struct {
	pub []byte
	sig []byte
	err error
}

func (m *mockSigner) PublicKey() []byte { return m.pub }
func (m *mockSigner) Sign(msg []byte) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sig, nil
}

func newTestSigner() *mockSigner {
	return &mockSigner{
		pub: bytes.Repeat([]byte{0xA5}, 897),
		sig: bytes.Repeat([]byte{0x5A}, 690),
	}
}

// testSession returns a session whose sleeps are recorded instead of slept.
func testSession(signer *mockSigner, delays *[]time.Duration) *authSession {
	var s *authSession
	if signer == nil {
		s = newAuthSession(nil, "2SGkQ", 3, 5*time.Second, &statistics.Counters{}, zap.NewNop())
	} else {
		s = newAuthSession(signer, "2SGkQ", 3, 5*time.Second, &statistics.Counters{}, zap.NewNop())
	}
	s.sleep = func(d time.Duration) {
		if delays != nil {
			*delays = append(*delays, d)
		}
	}
	return s
}

// fakeAuthNode answers each credential with the scripted statuses.
func fakeAuthNode(t *testing.T, conn net.Conn, statuses []byte, sessionID uint32) {
	t.Helper()
	go func() {
		tr := NewTransport(conn)
		for _, status := range statuses {
			pkt, err := protocol.ReadPacket(tr)
			if err != nil {
				return
			}
			if pkt.Opcode != protocol.OpAuth {
				return
			}
			protocol.WritePacket(tr, protocol.EncodeAuthResult(status, sessionID))
		}
	}()
}

func TestAuthenticateNoKeysFallsBackImmediately(t *testing.T) {
	var delays []time.Duration
	s := testSession(nil, &delays)

	require.NoError(t, s.authenticate(nil))
	assert.Equal(t, types.LegacyFallback, s.state)
	assert.Empty(t, delays)
	assert.Zero(t, s.retryCount)
}

func TestAuthenticateSuccess(t *testing.T) {
	client, node := net.Pipe()
	defer client.Close()
	defer node.Close()
	fakeAuthNode(t, node, []byte{protocol.AuthStatusSuccess}, 0xC0FFEE)

	s := testSession(newTestSigner(), nil)
	require.NoError(t, s.authenticate(NewTransport(client)))
	assert.Equal(t, types.Authenticated, s.state)
	assert.Equal(t, uint32(0xC0FFEE), s.sessionID)
	assert.True(t, s.authenticated())
}

func TestAuthenticateBackoffSchedule(t *testing.T) {
	client, node := net.Pipe()
	defer client.Close()
	defer node.Close()
	fakeAuthNode(t, node, []byte{
		protocol.AuthStatusFailure,
		protocol.AuthStatusFailure,
		protocol.AuthStatusFailure,
	}, 0)

	var delays []time.Duration
	s := testSession(newTestSigner(), &delays)
	require.NoError(t, s.authenticate(NewTransport(client)))

	// Exact doubling schedule, then permanent legacy fallback. The session
	// never ends the handshake stuck in AwaitingResult.
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}, delays)
	assert.Equal(t, types.LegacyFallback, s.state)
	assert.NotEqual(t, types.AwaitingResult, s.state)
	assert.Equal(t, 3, s.retryCount)
	assert.Equal(t, uint64(3), s.counters.AuthRetries.Load())
}

func TestAuthenticateMalformedResultRetries(t *testing.T) {
	client, node := net.Pipe()
	defer client.Close()
	defer node.Close()

	go func() {
		tr := NewTransport(node)
		// First reply is truncated garbage, second is a proper success.
		if _, err := protocol.ReadPacket(tr); err != nil {
			return
		}
		protocol.WritePacket(tr, protocol.Packet{Opcode: protocol.OpAuthResult, Payload: []byte{1, 2}})
		if _, err := protocol.ReadPacket(tr); err != nil {
			return
		}
		protocol.WritePacket(tr, protocol.EncodeAuthResult(protocol.AuthStatusSuccess, 99))
	}()

	var delays []time.Duration
	s := testSession(newTestSigner(), &delays)
	require.NoError(t, s.authenticate(NewTransport(client)))
	assert.Equal(t, types.Authenticated, s.state)
	assert.Equal(t, uint32(99), s.sessionID)
	assert.Equal(t, []time.Duration{5 * time.Second}, delays)
}

func TestAuthenticateSigningFailureIsRetryNotFatal(t *testing.T) {
	signer := newTestSigner()
	signer.err = assert.AnError

	var delays []time.Duration
	s := testSession(signer, &delays)
	require.NoError(t, s.authenticate(nil))
	assert.Equal(t, types.LegacyFallback, s.state)
	assert.Len(t, delays, 3)
}

func TestBackoffCap(t *testing.T) {
	s := testSession(newTestSigner(), nil)
	s.baseDelay = 45 * time.Second
	assert.Equal(t, 45*time.Second, s.backoffDelay(1))
	assert.Equal(t, maxAuthBackoff, s.backoffDelay(2))
	assert.Equal(t, maxAuthBackoff, s.backoffDelay(20))
}
