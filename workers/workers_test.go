package workers

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NamecoinGithub/NexusMiner-sub000/clients"
	"github.com/NamecoinGithub/NexusMiner-sub000/mining"
	"github.com/NamecoinGithub/NexusMiner-sub000/types"
)

type fakeClient struct {
	mu        sync.Mutex
	tmpl      *clients.Template
	handler   clients.TemplateHandler
	submitted []uint64
	submitErr error
}

func (f *fakeClient) GetCurrentTemplate() (tmpl *clients.Template, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tmpl == nil {
		return nil, false
	}
	return f.tmpl, true
}

func (f *fakeClient) OnTemplateReady(handler clients.TemplateHandler) {
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
}

func (f *fakeClient) SubmitBlock(merkleRoot []byte, nonce uint64) (err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, nonce)
	return f.submitErr
}

func (f *fakeClient) Start()                                              {}
func (f *fakeClient) Stop()                                               {}
func (f *fakeClient) ChannelName() (channel string)                       { return "hash" }
func (f *fakeClient) NodeConnectionStates() types.NodeConnectionStates    { return types.Alive }
func (f *fakeClient) GetNodeStats() (stats types.NodeStates)              { return }
func (f *fakeClient) SetStaleTemplateCall(call clients.StaleTemplateCall) {}

func (f *fakeClient) feed(tmpl *clients.Template) {
	f.mu.Lock()
	f.tmpl = tmpl
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(tmpl, tmpl.Target())
	}
}

func (f *fakeClient) submissions() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint64, len(f.submitted))
	copy(out, f.submitted)
	return out
}

func testTemplate(height uint32) *clients.Template {
	merkle := make([]byte, 64)
	for i := range merkle {
		merkle[i] = byte(i)
	}
	return &clients.Template{
		Version:       8,
		Channel:       2,
		Height:        height,
		Bits:          0x1d00ffff,
		MerkleRoot:    merkle,
		StartingNonce: 1000,
	}
}

func newTestPool(client clients.Client) *Pool {
	return NewPool(mining.MinerArgs{
		Client:    client,
		Workers:   1,
		ChunkSize: 64,
		PollDelay: 10 * time.Millisecond,
		Logger:    zap.NewNop(),
	})
}

func TestPoolFindsAndSubmits(t *testing.T) {
	client := &fakeClient{}
	pool := newTestPool(client)
	pool.RegisterSearchFunc("hash", func(tmpl *clients.Template, target []byte, start, count uint64) (uint64, bool) {
		// Pretend the very first nonce of each chunk wins.
		return start, true
	})

	pool.Start()
	defer pool.Halt()

	client.feed(testTemplate(100))

	require.Eventually(t, func() bool {
		return len(client.submissions()) > 0
	}, 2*time.Second, 5*time.Millisecond)

	subs := client.submissions()
	assert.Equal(t, uint64(1000), subs[0], "first submission starts at the template's starting nonce")
}

func TestPoolChunksAdvance(t *testing.T) {
	client := &fakeClient{}
	pool := newTestPool(client)

	var mu sync.Mutex
	var starts []uint64
	pool.RegisterSearchFunc("hash", func(tmpl *clients.Template, target []byte, start, count uint64) (uint64, bool) {
		mu.Lock()
		starts = append(starts, start)
		mu.Unlock()
		return 0, false
	})

	pool.Start()
	defer pool.Halt()

	client.feed(testTemplate(100))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(starts) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, uint64(1000), starts[0])
	for i := 1; i < len(starts); i++ {
		assert.Equal(t, starts[i-1]+64, starts[i], "chunks must not overlap")
	}
}

func TestPoolIgnoresUnknownChannel(t *testing.T) {
	client := &fakeClient{}
	pool := newTestPool(client)
	// No search func registered for "hash".

	pool.Start()
	client.feed(testTemplate(100))
	time.Sleep(50 * time.Millisecond)
	pool.Halt()

	assert.Empty(t, client.submissions())
	assert.Equal(t, uint64(0), pool.searchRounds.Load())
}

func TestPoolStats(t *testing.T) {
	client := &fakeClient{}
	pool := newTestPool(client)
	pool.RegisterSearchFunc("hash", func(tmpl *clients.Template, target []byte, start, count uint64) (uint64, bool) {
		return 0, false
	})

	pool.Start()
	client.feed(testTemplate(100))

	require.Eventually(t, func() bool {
		return pool.searchRounds.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
	pool.Halt()

	stats := pool.GetPoolStats()
	assert.Equal(t, "cpu", stats.PoolName)
	assert.Equal(t, types.Stopped, stats.Status)
	assert.Equal(t, "hash", stats.Channel)
	assert.True(t, stats.SearchRounds >= 2)
	assert.True(t, stats.NonceNum[0] > 0, "recent nonce count should reflect searched chunks")
	require.NotNil(t, stats.WorkerStats)
	assert.NotEmpty(t, *stats.WorkerStats)
}

func TestPoolHaltStopsWorkers(t *testing.T) {
	client := &fakeClient{}
	pool := newTestPool(client)
	pool.RegisterSearchFunc("hash", func(tmpl *clients.Template, target []byte, start, count uint64) (uint64, bool) {
		return 0, false
	})

	pool.Start()
	client.feed(testTemplate(100))
	require.Eventually(t, func() bool {
		return pool.searchRounds.Load() > 0
	}, 2*time.Second, 5*time.Millisecond)

	pool.Halt()
	rounds := pool.searchRounds.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, rounds, pool.searchRounds.Load(), "no searching after Halt")
}
