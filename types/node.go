package types

import "time"

// Node describes one mining coordinator endpoint and the operator
// credentials used against it.
type Node struct {
	URL     string `json:"url"`
	Address string `json:"address"`
	Channel uint32 `json:"channel"`

	// Hex encoded Falcon key material. Both empty means the client runs
	// in legacy (unauthenticated) mode.
	PublicKey  string `json:"pubkey,omitempty"`
	PrivateKey string `json:"privkey,omitempty"`

	AuthRetries   int           `json:"authretries,omitempty"`
	AuthBaseDelay time.Duration `json:"authbasedelay,omitempty"`

	Active bool `json:"active,omitempty"`
}

type NodeConnectionStates int

const (
	NotReady NodeConnectionStates = iota + 1
	Alive
	Sick
	Dead
)

// SessionStates track the operator authentication handshake. The zero
// value is Unauthenticated so a freshly created session needs no setup.
type SessionStates int

const (
	Unauthenticated SessionStates = iota
	AwaitingResult
	Authenticated
	LegacyFallback
)

func (s SessionStates) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AwaitingResult:
		return "awaitingresult"
	case Authenticated:
		return "authenticated"
	case LegacyFallback:
		return "legacyfallback"
	}
	return "unknown"
}

// TemplateStates is the work template lifecycle.
type TemplateStates int

const (
	TemplateEmpty TemplateStates = iota
	TemplatePending
	TemplateReceived
	TemplateValidated
	TemplateActive
	TemplateStale
	TemplateSubmitted
)

func (s TemplateStates) String() string {
	switch s {
	case TemplateEmpty:
		return "empty"
	case TemplatePending:
		return "pending"
	case TemplateReceived:
		return "received"
	case TemplateValidated:
		return "validated"
	case TemplateActive:
		return "active"
	case TemplateStale:
		return "stale"
	case TemplateSubmitted:
		return "submitted"
	}
	return "unknown"
}

type NodeStates struct {
	Status       NodeConnectionStates `json:"status"`
	Address      string               `json:"address"`
	NodeAddr     string               `json:"nodeaddr"`
	Channel      uint32               `json:"channel"`
	Session      string               `json:"session"`
	SessionID    uint32               `json:"sessionid"`
	Accept       uint64               `json:"accept"`
	Reject       uint64               `json:"reject"`
	Stale        uint64               `json:"stale"`
	Height       uint32               `json:"height"`
	LastAccepted int64                `json:"lastaccepted"`
	Active       bool                 `json:"active"`
}

type WorkerStats int

const (
	Starting WorkerStats = iota + 1
	Running
	Idle
	Stopped
)

type PoolStates struct {
	PoolName     string          `json:"name"`
	Status       WorkerStats     `json:"status"`
	NonceNum     [3]float64      `json:"noncenum"`
	Hashrate     [3]float64      `json:"hashrate"`
	WorkerStats  *map[int]uint64 `json:"workerstats"`
	Channel      string          `json:"channel"`
	SearchRounds uint64          `json:"searchrounds"`
}

type MinerStatus struct {
	Workers   *PoolStates   `json:"workers"`
	MinerDown bool          `json:"minerDown"`
	MinerUp   bool          `json:"minerUp"`
	Nodes     []*NodeStates `json:"nodes"`
	Time      int64         `json:"time"`
}

type StatusReply struct {
	Status *MinerStatus `json:"status"`
}
