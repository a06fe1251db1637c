//Package clients provides some utilities and common code for specific client implementations
package clients

import (
	"math/big"
	"sync"

	"github.com/NamecoinGithub/NexusMiner-sub000/types"
)

//Template is one immutable unit of work handed to workers. Workers must
// treat it as read-only; the client swaps in a fresh value when new work
// arrives.
type Template struct {
	Version       uint32
	Channel       uint32
	Height        uint32
	Bits          uint32
	PrevRef       []byte
	MerkleRoot    []byte
	StartingNonce uint64
	Timestamp     uint32
}

//Key identifies the template for staleness bookkeeping
func (t *Template) Key() string {
	if t == nil || len(t.MerkleRoot) < 8 {
		return ""
	}
	return string(t.MerkleRoot[:8])
}

//Target expands the compact difficulty bits into a comparison target.
// A candidate digest interpreted as a big-endian integer must not exceed it.
func (t *Template) Target() []byte {
	mantissa := int64(t.Bits & 0x00FFFFFF)
	exponent := uint(t.Bits >> 24)
	target := big.NewInt(mantissa)
	if exponent > 3 {
		target.Lsh(target, 8*(exponent-3))
	} else {
		target.Rsh(target, 8*(3-exponent))
	}
	out := make([]byte, len(t.MerkleRoot))
	b := target.Bytes()
	if len(b) > len(out) {
		copy(out, b[len(b)-len(out):])
		return out
	}
	copy(out[len(out)-len(b):], b)
	return out
}

//TemplateHandler is invoked when a validated template is fed to workers
type TemplateHandler func(tmpl *Template, target []byte)

//SolutionReporter defines the required method a node client should implement
// for workers to be able to report solved blocks
type SolutionReporter interface {
	//SubmitBlock reports a solved block by its merkle root and winning nonce
	SubmitBlock(merkleRoot []byte, nonce uint64) (err error)
}

//TemplateProvider supplies work templates for workers to mine on
type TemplateProvider interface {
	//GetCurrentTemplate returns the template workers should search, if any
	GetCurrentTemplate() (tmpl *Template, ok bool)
	//OnTemplateReady registers the handler invoked on every feed
	OnTemplateReady(handler TemplateHandler)
}

//StaleTemplateCall is a function that can be registered on a client to be
// executed when outstanding work templates should be abandoned
type StaleTemplateCall func(reason string)

// Client defines the interface for a client towards a work provider
type Client interface {
	TemplateProvider
	SolutionReporter
	Start()
	Stop()
	ChannelName() (channel string)
	NodeConnectionStates() (stats types.NodeConnectionStates)
	GetNodeStats() (stats types.NodeStates)
	SetStaleTemplateCall(call StaleTemplateCall)
}

//BaseClient implements some common properties and functionality. Its
// methods are safe to call from the inbound path and the connection
// supervisor concurrently.
type BaseClient struct {
	mu                  sync.Mutex
	deprecationChannels map[string]chan bool

	staleTemplateCall StaleTemplateCall
}

//DeprecateOutstandingTemplates closes all deprecationChannels and removes
// them from the list
func (sc *BaseClient) DeprecateOutstandingTemplates(reason string) {
	sc.mu.Lock()
	if sc.deprecationChannels == nil {
		sc.deprecationChannels = make(map[string]chan bool)
	}

	call := sc.staleTemplateCall

	for key, deprecated := range sc.deprecationChannels {
		close(deprecated)
		delete(sc.deprecationChannels, key)
	}
	sc.mu.Unlock()
	if call != nil {
		go call(reason)
	}
}

// AddTemplateToDeprecate adds the template key to the list of work that
// should be deprecated when the time comes
func (sc *BaseClient) AddTemplateToDeprecate(key string) {
	sc.mu.Lock()
	if sc.deprecationChannels == nil {
		sc.deprecationChannels = make(map[string]chan bool)
	}
	sc.deprecationChannels[key] = make(chan bool)
	sc.mu.Unlock()
}

// GetDeprecationChannel returns the channel that will be closed when the
// template gets deprecated
func (sc *BaseClient) GetDeprecationChannel(key string) chan bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.deprecationChannels[key]
}

//SetStaleTemplateCall sets the function to be called when outstanding
// templates should be abandoned
func (sc *BaseClient) SetStaleTemplateCall(call StaleTemplateCall) {
	sc.mu.Lock()
	sc.staleTemplateCall = call
	sc.mu.Unlock()
}
