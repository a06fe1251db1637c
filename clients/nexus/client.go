//Package nexus implements the client side of the LLP mining protocol: the
// authentication handshake, the work template lifecycle and the block
// submission path towards a coordinator node.
package nexus

import (
	"errors"
	"sync"
	"time"

	uatomic "go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/NamecoinGithub/NexusMiner-sub000/clients"
	"github.com/NamecoinGithub/NexusMiner-sub000/keys"
	"github.com/NamecoinGithub/NexusMiner-sub000/protocol"
	"github.com/NamecoinGithub/NexusMiner-sub000/statistics"
	"github.com/NamecoinGithub/NexusMiner-sub000/types"
)

const dialTimeout = 10 * time.Second

var channelNames = map[uint32]string{1: "prime", 2: "hash"}

//ErrNoCurrentTemplate is returned when a submission references no usable template
var ErrNoCurrentTemplate = errors.New("nexus: solution does not reference the current template")

// NewClient creates a new Client for the given node configuration
func NewClient(node *types.Node, logger *zap.Logger) clients.Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("nexus")

	c := &Client{
		connectionstring: node.URL,
		address:          node.Address,
		channel:          node.Channel,
		authRetries:      node.AuthRetries,
		authBaseDelay:    node.AuthBaseDelay,
		counters:         &statistics.Counters{},
		logger:           logger,
		dial: func(addr string) (Transport, error) {
			return DialTCP(addr, dialTimeout)
		},
	}
	c.store = newTemplateStore(node.Channel, c.counters, logger)

	if node.PublicKey != "" || node.PrivateKey != "" {
		kp, err := keys.LoadKeyPair(node.PublicKey, node.PrivateKey)
		if err != nil {
			// Bad key material degrades to legacy mode instead of refusing
			// to mine.
			logger.Warn("ignoring configured key material", zap.Error(err))
		} else {
			c.signer = kp
		}
	}
	return c
}

//Client talks the LLP mining protocol to one coordinator node
type Client struct {
	clients.BaseClient

	connectionstring string
	address          string
	channel          uint32
	authRetries      int
	authBaseDelay    time.Duration

	signer   keys.Signer
	counters *statistics.Counters
	store    *templateStore
	logger   *zap.Logger

	dial func(addr string) (Transport, error)

	mutex      sync.Mutex // protects conn, session, submit across reconnects
	conn       Transport
	session    *authSession
	submit     *submitter
	emptyRetry bool

	connState  uatomic.Int32
	lastAccept uatomic.Int64
	stopSig    chan bool
}

func (c *Client) ChannelName() string {
	if name, ok := channelNames[c.channel]; ok {
		return name
	}
	return "unknown"
}

func (c *Client) NodeConnectionStates() types.NodeConnectionStates {
	state := types.NodeConnectionStates(c.connState.Load())
	if state == 0 {
		return types.NotReady
	}
	return state
}

func (c *Client) GetNodeStats() (info types.NodeStates) {
	snap := c.counters.Snapshot()
	info.Status = c.NodeConnectionStates()
	info.Address = c.address
	info.NodeAddr = c.connectionstring
	info.Channel = c.channel
	info.Accept, info.Reject, info.Stale = snap.Accepted, snap.Rejected, snap.StaleBlocks
	info.Height = c.store.lastHeight.Load()
	info.LastAccepted = c.lastAccept.Load()
	c.mutex.Lock()
	if c.session != nil {
		info.Session = c.session.state.String()
		info.SessionID = c.session.sessionID
	} else {
		info.Session = types.Unauthenticated.String()
	}
	c.mutex.Unlock()
	return
}

//Counters exposes the shared submission and diagnostic tallies
func (c *Client) Counters() *statistics.Counters {
	return c.counters
}

//Start connects to the node and keeps the connection healthy until Stop
func (c *Client) Start() {
	c.stopSig = make(chan bool)
	if err := c.startConn(); err != nil {
		c.logger.Error("initial connection failed", zap.Error(err))
		c.connState.Store(int32(types.Dead))
	}
	for {
		select {
		case <-time.After(5 * time.Second):
			switch c.NodeConnectionStates() {
			case types.Alive:
				c.sendPacket(protocol.Packet{Opcode: protocol.OpPing})
			case types.Sick, types.Dead:
				c.logger.Info("reconnecting to node")
				c.closeConn()
				if err := c.startConn(); err != nil {
					c.logger.Error("reconnect failed", zap.Error(err))
					c.connState.Store(int32(types.Dead))
				}
			}
		case <-c.stopSig:
			return
		}
	}
}

//Stop tears the connection down
func (c *Client) Stop() {
	if c.stopSig != nil {
		c.stopSig <- true
	}
	c.closeConn()
}

func (c *Client) closeConn() {
	c.mutex.Lock()
	conn := c.conn
	c.conn = nil
	c.session = nil
	c.submit = nil
	c.mutex.Unlock()
	if conn != nil {
		conn.Close()
	}
}

//startConn dials the node and runs the connection preamble: authentication
// first, then channel selection, then the first work request. The read
// pump only starts after the preamble so the ordering holds.
func (c *Client) startConn() error {
	c.DeprecateOutstandingTemplates("reconnect")
	c.connState.Store(int32(types.NotReady))

	conn, err := c.dial(c.connectionstring)
	if err != nil {
		return err
	}
	c.logger.Info("connected",
		zap.String("local", conn.LocalEndpoint().String()),
		zap.String("node", conn.RemoteEndpoint().String()))

	// In-flight state from a previous connection never survives: a fresh
	// session per attempt.
	session := newAuthSession(c.signer, c.address, c.authRetries, c.authBaseDelay, c.counters, c.logger)

	if c.signer != nil {
		// Session-open marker; the node treats it as a no-op.
		if err := protocol.WritePacket(conn, protocol.Packet{Opcode: protocol.OpLogin}); err != nil {
			conn.Close()
			return err
		}
	}
	if err := session.authenticate(conn); err != nil {
		conn.Close()
		return err
	}

	// Channel selection is only sent once authentication reached a
	// terminal state; in legacy mode it is the sole preamble message.
	if err := protocol.WritePacket(conn, protocol.EncodeChannelSelect(byte(c.channel))); err != nil {
		conn.Close()
		return err
	}
	ack, err := protocol.ReadPacket(conn)
	if err != nil {
		conn.Close()
		return err
	}
	if ack.Opcode != protocol.OpSetChannel {
		conn.Close()
		return errors.New("nexus: node did not acknowledge channel selection")
	}
	if ch, err := protocol.DecodeChannelAck(ack.Payload); err != nil || uint32(ch) != c.channel {
		conn.Close()
		return errors.New("nexus: node acknowledged a different channel")
	}

	c.mutex.Lock()
	c.conn = conn
	c.session = session
	c.submit = newSubmitter(session, c.signer, c.counters, c.logger)
	c.emptyRetry = false
	c.mutex.Unlock()
	c.connState.Store(int32(types.Alive))

	c.requestWork()
	go c.readPump(conn, session)
	return nil
}

//requestWork asks the node for a fresh template
func (c *Client) requestWork() {
	c.store.markPending()
	c.sendPacket(protocol.Packet{Opcode: protocol.OpGetBlock})
}

func (c *Client) sendPacket(p protocol.Packet) error {
	c.mutex.Lock()
	conn := c.conn
	c.mutex.Unlock()
	if conn == nil {
		return errors.New("nexus: not connected")
	}
	if err := protocol.WritePacket(conn, p); err != nil {
		c.connState.Store(int32(types.Sick))
		return err
	}
	return nil
}

//readPump is the single inbound processing path: each packet is fully
// handled before the next one is read. Blocking here never blocks workers.
func (c *Client) readPump(conn Transport, session *authSession) {
	for {
		pkt, err := protocol.ReadPacket(conn)
		if err != nil {
			if errors.Is(err, protocol.ErrInvalidCombination) {
				// The codec consumed the offending packet whole, so the
				// stream is still at a packet boundary.
				c.logger.Warn("dropping malformed packet", zap.Error(err))
				continue
			}
			if errors.Is(err, protocol.ErrInvalidHeader) {
				// The length field cannot be trusted, and neither can any
				// byte after it. Resynchronizing is impossible.
				c.logger.Warn("unrecoverable framing violation, dropping connection", zap.Error(err))
				conn.Close()
				c.connState.Store(int32(types.Dead))
				return
			}
			c.logger.Warn("connection lost", zap.Error(err))
			c.connState.Store(int32(types.Dead))
			return
		}
		c.handlePacket(pkt, session)
	}
}

func (c *Client) handlePacket(pkt protocol.Packet, session *authSession) {
	switch pkt.Opcode {
	case protocol.OpBlock:
		if len(pkt.Payload) == 0 {
			c.handleEmptyWorkResponse()
			return
		}
		c.handleTemplate(pkt.Payload, session)

	case protocol.OpBlockData:
		// Unsolicited push uses the data-class opcode; same lifecycle.
		c.handleTemplate(pkt.Payload, session)

	case protocol.OpBlockHeight:
		height, err := protocol.DecodeBlockHeight(pkt.Payload)
		if err != nil {
			c.logger.Warn("malformed height broadcast", zap.Error(err))
			return
		}
		if c.store.observeHeight(height) {
			c.DeprecateOutstandingTemplates("height advanced")
			c.requestWork()
		}

	case protocol.OpNewBlock:
		c.store.markStale("node announced new block")
		c.DeprecateOutstandingTemplates("new block")
		c.requestWork()

	case protocol.OpAccept:
		c.counters.Accepted.Inc()
		c.lastAccept.Store(time.Now().Unix())
		c.logger.Info("block accepted", zap.Uint64("total", c.counters.Accepted.Load()))
		c.requestWork()

	case protocol.OpReject:
		c.counters.Rejected.Inc()
		c.logger.Warn("block rejected")
		c.requestWork()

	case protocol.OpStale:
		c.counters.StaleBlocks.Inc()
		c.store.markStale("node flagged submission stale")
		c.requestWork()

	case protocol.OpPing:
		c.sendPacket(protocol.Packet{Opcode: protocol.OpPing})

	case protocol.OpClose:
		c.logger.Info("node requested close")
		c.closeConn()
		c.connState.Store(int32(types.Dead))

	default:
		c.logger.Warn("unhandled packet",
			zap.String("opcode", protocol.OpcodeName(pkt.Opcode)),
			zap.Int("length", len(pkt.Payload)))
	}
}

//handleEmptyWorkResponse retries a work request exactly once; a second
// empty reply in a row is a critical condition but mining goes on with a
// fresh request.
func (c *Client) handleEmptyWorkResponse() {
	c.mutex.Lock()
	retried := c.emptyRetry
	c.emptyRetry = true
	c.mutex.Unlock()
	c.counters.EmptyResponses.Inc()

	if !retried {
		c.logger.Warn("empty work response, retrying once")
		c.requestWork()
		return
	}
	c.logger.Error("repeated empty work responses from node")
	c.mutex.Lock()
	c.emptyRetry = false
	c.mutex.Unlock()
	c.requestWork()
}

func (c *Client) handleTemplate(payload []byte, session *authSession) {
	c.mutex.Lock()
	c.emptyRetry = false
	c.mutex.Unlock()

	if err := c.store.ingest(payload, session.sessionID); err != nil {
		// Never retry the same bytes; ask for fresh work instead.
		c.logger.Warn("discarding template", zap.Error(err))
		c.requestWork()
		return
	}
	c.AddTemplateToDeprecate(keyOfCurrent(c.store))
	c.store.feed()
}

func keyOfCurrent(ts *templateStore) string {
	if tmpl, ok := ts.currentTemplate(); ok {
		return tmpl.Key()
	}
	return ""
}

//GetCurrentTemplate returns the template workers should search, if any
func (c *Client) GetCurrentTemplate() (*clients.Template, bool) {
	return c.store.currentTemplate()
}

//OnTemplateReady registers the handler invoked whenever a validated
// template is fed
func (c *Client) OnTemplateReady(handler clients.TemplateHandler) {
	c.store.onTemplateReady(handler)
}

//FeedCurrentTemplate re-dispatches the current template to the registered
// handler, returning false when no valid template exists
func (c *Client) FeedCurrentTemplate() bool {
	return c.store.feed()
}

//SubmitBlock reports a solved block. Workers may call this at any time,
// including while the read pump is installing newer work.
func (c *Client) SubmitBlock(merkleRoot []byte, nonce uint64) error {
	if !c.store.verifyBlockCreation(merkleRoot) {
		c.counters.StaleBlocks.Inc()
		return ErrNoCurrentTemplate
	}

	c.mutex.Lock()
	submit := c.submit
	c.mutex.Unlock()
	if submit == nil {
		return errors.New("nexus: not connected")
	}

	pkt, err := submit.buildSubmission(merkleRoot, nonce)
	if err != nil {
		return err
	}
	if err := c.sendPacket(pkt); err != nil {
		return err
	}
	c.store.markSubmitted()
	c.logger.Info("block submitted",
		zap.Uint64("nonce", nonce),
		zap.String("format", protocol.OpcodeName(pkt.Opcode)))
	return nil
}
