package nexus

import (
	"time"

	"go.uber.org/zap"

	"github.com/NamecoinGithub/NexusMiner-sub000/keys"
	"github.com/NamecoinGithub/NexusMiner-sub000/protocol"
	"github.com/NamecoinGithub/NexusMiner-sub000/statistics"
	"github.com/NamecoinGithub/NexusMiner-sub000/types"
)

const (
	defaultAuthRetries   = 3
	defaultAuthBaseDelay = 5 * time.Second
	maxAuthBackoff       = 60 * time.Second
)

//authSession is the ephemeral per-connection authentication state. A fresh
// one is created on every dial and abandoned on disconnect; it reaches
// Authenticated or LegacyFallback exactly once per connection attempt.
type authSession struct {
	state       types.SessionStates
	signer      keys.Signer
	address     string
	sessionID   uint32
	retryCount  int
	lastAttempt time.Time

	maxAttempts int
	baseDelay   time.Duration

	counters *statistics.Counters
	logger   *zap.Logger

	// injectable for tests
	now   func() time.Time
	sleep func(time.Duration)
}

func newAuthSession(signer keys.Signer, address string, retries int, baseDelay time.Duration, counters *statistics.Counters, logger *zap.Logger) *authSession {
	if retries <= 0 {
		retries = defaultAuthRetries
	}
	if baseDelay <= 0 {
		baseDelay = defaultAuthBaseDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &authSession{
		signer:      signer,
		address:     address,
		maxAttempts: retries,
		baseDelay:   baseDelay,
		counters:    counters,
		logger:      logger,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

//backoffDelay returns the delay before the given 1-based attempt,
// base * 2^(attempt-1), capped at one minute
func (s *authSession) backoffDelay(attempt int) time.Duration {
	delay := s.baseDelay << uint(attempt-1)
	if delay > maxAuthBackoff || delay <= 0 {
		delay = maxAuthBackoff
	}
	return delay
}

//credentialPacket signs address||timestamp and wraps key and signature in
// the direct authentication message
func (s *authSession) credentialPacket() (protocol.Packet, error) {
	msg := protocol.AuthMessage(s.address, uint64(s.now().Unix()))
	sig, err := s.signer.Sign(msg)
	if err != nil {
		return protocol.Packet{}, err
	}
	return protocol.EncodeAuthCredential(s.signer.PublicKey(), sig)
}

//authenticate drives the handshake on conn until the session reaches a
// terminal state. The caller owns the socket exclusively for the duration;
// the read pump is only started afterwards so ordering against channel
// selection holds. Returns an error only on transport loss.
func (s *authSession) authenticate(conn Transport) error {
	if s.signer == nil {
		s.state = types.LegacyFallback
		s.logger.Info("no key material configured, mining in legacy mode")
		return nil
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		s.lastAttempt = s.now()

		pkt, err := s.credentialPacket()
		if err != nil {
			// Signing failures count as a failed attempt, never as fatal.
			s.logger.Warn("building credential failed", zap.Error(err))
			s.fail(attempt)
			continue
		}

		s.state = types.AwaitingResult
		if err := protocol.WritePacket(conn, pkt); err != nil {
			s.state = types.Unauthenticated
			return err
		}

		reply, err := protocol.ReadPacket(conn)
		if err != nil {
			s.state = types.Unauthenticated
			return err
		}
		if reply.Opcode != protocol.OpAuthResult {
			s.logger.Warn("unexpected packet during authentication",
				zap.String("opcode", protocol.OpcodeName(reply.Opcode)))
			s.fail(attempt)
			continue
		}
		status, sessionID, err := protocol.DecodeAuthResult(reply.Payload)
		if err != nil {
			s.logger.Warn("malformed authentication result", zap.Error(err))
			s.fail(attempt)
			continue
		}
		if status == protocol.AuthStatusSuccess {
			s.sessionID = sessionID
			s.state = types.Authenticated
			s.logger.Info("operator authenticated", zap.Uint32("session", sessionID))
			return nil
		}
		s.logger.Warn("authentication refused by node", zap.Int("attempt", attempt))
		s.fail(attempt)
	}

	// Exhausted retries: legacy mode for the lifetime of this connection.
	s.state = types.LegacyFallback
	s.logger.Warn("authentication retries exhausted, falling back to legacy submissions")
	return nil
}

//fail records a failed attempt and sleeps the attempt's backoff delay
func (s *authSession) fail(attempt int) {
	s.state = types.Unauthenticated
	s.retryCount++
	if s.counters != nil {
		s.counters.AuthRetries.Inc()
	}
	delay := s.backoffDelay(attempt)
	s.logger.Info("authentication backoff", zap.Int("attempt", attempt), zap.Duration("delay", delay))
	s.sleep(delay)
}

//authenticated reports whether signed submissions may be built
func (s *authSession) authenticated() bool {
	return s != nil && s.state == types.Authenticated
}
