package nexus

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jinzhu/copier"
	uatomic "go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/NamecoinGithub/NexusMiner-sub000/clients"
	"github.com/NamecoinGithub/NexusMiner-sub000/protocol"
	"github.com/NamecoinGithub/NexusMiner-sub000/statistics"
	"github.com/NamecoinGithub/NexusMiner-sub000/types"
)

//templateSnapshot is one immutable template plus its lifecycle state.
// The store swaps whole snapshots so workers always observe a complete,
// consistent template without taking a lock on the hot path.
type templateSnapshot struct {
	tmpl         clients.Template
	state        types.TemplateStates
	boundSession uint32
	receivedAt   time.Time
	staleReason  string
}

func (s *templateSnapshot) usable() bool {
	return s != nil && (s.state == types.TemplateValidated || s.state == types.TemplateActive)
}

//templateStore owns the work template lifecycle
type templateStore struct {
	current    atomic.Pointer[templateSnapshot]
	lastHeight uatomic.Uint32
	pending    uatomic.Bool

	channel  uint32
	counters *statistics.Counters
	logger   *zap.Logger

	handlerMu sync.RWMutex
	handler   clients.TemplateHandler
}

func newTemplateStore(channel uint32, counters *statistics.Counters, logger *zap.Logger) *templateStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &templateStore{channel: channel, counters: counters, logger: logger}
}

//onTemplateReady registers the worker-facing feed handler
func (ts *templateStore) onTemplateReady(handler clients.TemplateHandler) {
	ts.handlerMu.Lock()
	ts.handler = handler
	ts.handlerMu.Unlock()
}

//markPending records that a work request is outstanding
func (ts *templateStore) markPending() {
	ts.pending.Store(true)
}

//ingest validates a received wire template and, when it passes, installs it
// as the current Validated snapshot. A failure leaves the previous snapshot
// in place and is reported so the caller can request new work.
func (ts *templateStore) ingest(payload []byte, sessionID uint32) error {
	ts.pending.Store(false)
	wire, err := protocol.DecodeTemplate(payload)
	if err != nil {
		ts.counters.ValidationFailures.Inc()
		return err
	}
	ts.counters.TemplatesReceived.Inc()

	if wire.Channel != ts.channel {
		ts.counters.ValidationFailures.Inc()
		return fmt.Errorf("nexus: template for channel %d, mining channel %d", wire.Channel, ts.channel)
	}
	if last := ts.lastHeight.Load(); wire.Height < last {
		ts.counters.ValidationFailures.Inc()
		return fmt.Errorf("nexus: stale template height %d, best known %d", wire.Height, last)
	}
	if wire.Bits == 0 {
		ts.counters.ValidationFailures.Inc()
		return fmt.Errorf("nexus: template with zero difficulty bits")
	}
	if protocol.IsZeroMerkleRoot(wire.MerkleRoot) {
		ts.counters.ValidationFailures.Inc()
		return fmt.Errorf("nexus: template with all-zero merkle root")
	}

	snap := &templateSnapshot{
		tmpl: clients.Template{
			Version:       wire.Version,
			Channel:       wire.Channel,
			Height:        wire.Height,
			Bits:          wire.Bits,
			PrevRef:       wire.PrevRef,
			MerkleRoot:    wire.MerkleRoot,
			StartingNonce: wire.Nonce,
			Timestamp:     wire.Timestamp,
		},
		state:        types.TemplateValidated,
		boundSession: sessionID,
		receivedAt:   time.Now(),
	}
	prev := ts.current.Swap(snap)
	ts.lastHeight.Store(wire.Height)
	if prev.usable() {
		// The old template was replaced before consumption.
		ts.counters.StaleTemplates.Inc()
	}
	ts.logger.Debug("template validated",
		zap.Uint32("height", wire.Height),
		zap.Uint32("bits", wire.Bits),
		zap.String("layout", wire.Layout))
	return nil
}

//feed dispatches the current template to the registered handler. Requires a
// Validated or Active snapshot; the snapshot becomes Active. Returns false
// when no usable template exists or no handler is registered.
func (ts *templateStore) feed() bool {
	snap := ts.current.Load()
	if !snap.usable() {
		return false
	}
	ts.handlerMu.RLock()
	handler := ts.handler
	ts.handlerMu.RUnlock()
	if handler == nil {
		return false
	}

	if snap.state == types.TemplateValidated {
		active := *snap
		active.state = types.TemplateActive
		// Another path may have swapped in newer work meanwhile; keep that.
		ts.current.CompareAndSwap(snap, &active)
		snap = &active
	}

	// Workers get their own copy, same as currentTemplate: the snapshot's
	// buffers never leave the store.
	var tmpl clients.Template
	if err := copier.CopyWithOption(&tmpl, &snap.tmpl, copier.Option{DeepCopy: true}); err != nil {
		return false
	}
	handler(&tmpl, tmpl.Target())
	return true
}

//markStale transitions the current Active or Validated snapshot to Stale.
// A submission already in flight for it is not retroactively invalidated.
func (ts *templateStore) markStale(reason string) {
	for {
		snap := ts.current.Load()
		if !snap.usable() {
			return
		}
		stale := *snap
		stale.state = types.TemplateStale
		stale.staleReason = reason
		if ts.current.CompareAndSwap(snap, &stale) {
			ts.counters.StaleTemplates.Inc()
			ts.logger.Debug("template marked stale", zap.String("reason", reason))
			return
		}
	}
}

//markSubmitted records that a solution derived from the current template
// was sent
func (ts *templateStore) markSubmitted() {
	for {
		snap := ts.current.Load()
		if snap == nil || snap.state == types.TemplateSubmitted {
			return
		}
		done := *snap
		done.state = types.TemplateSubmitted
		if ts.current.CompareAndSwap(snap, &done) {
			return
		}
	}
}

//observeHeight folds a height broadcast into the staleness bookkeeping and
// reports whether outstanding work became stale
func (ts *templateStore) observeHeight(height uint32) bool {
	last := ts.lastHeight.Load()
	if height <= last {
		return false
	}
	ts.lastHeight.Store(height)
	ts.markStale(fmt.Sprintf("height advanced to %d", height))
	return true
}

//currentTemplate returns a deep copy of the template workers should
// search, if any. Copying keeps the live snapshot immutable even against a
// misbehaving worker.
func (ts *templateStore) currentTemplate() (*clients.Template, bool) {
	snap := ts.current.Load()
	if !snap.usable() {
		return nil, false
	}
	var tmpl clients.Template
	if err := copier.CopyWithOption(&tmpl, &snap.tmpl, copier.Option{DeepCopy: true}); err != nil {
		return nil, false
	}
	return &tmpl, true
}

//verifyBlockCreation is the local sanity gate before a submission is built:
// the proposed solution must reference the currently usable template.
func (ts *templateStore) verifyBlockCreation(merkleRoot []byte) bool {
	if len(merkleRoot) != protocol.MerkleRootSize {
		return false
	}
	snap := ts.current.Load()
	if !snap.usable() {
		return false
	}
	return bytes.Equal(merkleRoot, snap.tmpl.MerkleRoot)
}

//state returns the current lifecycle state for diagnostics
func (ts *templateStore) state() types.TemplateStates {
	snap := ts.current.Load()
	if snap == nil {
		if ts.pending.Load() {
			return types.TemplatePending
		}
		return types.TemplateEmpty
	}
	return snap.state
}
