package statistics

import "go.uber.org/atomic"

//Counters are the submission and diagnostic tallies shared between the
// inbound connection path and worker callbacks. Everything is atomic since
// workers bump them concurrently with the read loop.
type Counters struct {
	TemplatesReceived  atomic.Uint64
	ValidationFailures atomic.Uint64
	StaleTemplates     atomic.Uint64

	Accepted    atomic.Uint64
	Rejected    atomic.Uint64
	StaleBlocks atomic.Uint64

	Signed          atomic.Uint64
	LegacyFallbacks atomic.Uint64
	AuthRetries     atomic.Uint64

	EmptyResponses atomic.Uint64
}

//CountersSnapshot is a point-in-time copy safe to serialize
type CountersSnapshot struct {
	TemplatesReceived  uint64 `json:"templates"`
	ValidationFailures uint64 `json:"validationfailures"`
	StaleTemplates     uint64 `json:"staletemplates"`
	Accepted           uint64 `json:"accepted"`
	Rejected           uint64 `json:"rejected"`
	StaleBlocks        uint64 `json:"staleblocks"`
	Signed             uint64 `json:"signed"`
	LegacyFallbacks    uint64 `json:"legacyfallbacks"`
	AuthRetries        uint64 `json:"authretries"`
	EmptyResponses     uint64 `json:"emptyresponses"`
}

//Snapshot copies the current counter values
func (c *Counters) Snapshot() (snap CountersSnapshot) {
	snap.TemplatesReceived = c.TemplatesReceived.Load()
	snap.ValidationFailures = c.ValidationFailures.Load()
	snap.StaleTemplates = c.StaleTemplates.Load()
	snap.Accepted = c.Accepted.Load()
	snap.Rejected = c.Rejected.Load()
	snap.StaleBlocks = c.StaleBlocks.Load()
	snap.Signed = c.Signed.Load()
	snap.LegacyFallbacks = c.LegacyFallbacks.Load()
	snap.AuthRetries = c.AuthRetries.Load()
	snap.EmptyResponses = c.EmptyResponses.Load()
	return
}
