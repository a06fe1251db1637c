//Package workers runs the compute side of the client: a pool of goroutines
// that search the current work template for a winning nonce and report
// solutions back through the client's submission path.
package workers

import (
	"sync"
	"time"

	uatomic "go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/NamecoinGithub/NexusMiner-sub000/clients"
	"github.com/NamecoinGithub/NexusMiner-sub000/mining"
	"github.com/NamecoinGithub/NexusMiner-sub000/statistics"
	"github.com/NamecoinGithub/NexusMiner-sub000/types"
)

const (
	defaultWorkers   = 2
	defaultChunkSize = 1 << 16
	defaultPollDelay = 500 * time.Millisecond
)

//SearchFunc scans count nonces starting at start and returns the first
// nonce whose digest satisfies target. The template is read-only.
type SearchFunc func(tmpl *clients.Template, target []byte, start, count uint64) (nonce uint64, found bool)

//Pool is a CPU worker pool consuming fed templates
type Pool struct {
	client    clients.Client
	searches  map[string]SearchFunc
	workers   int
	chunkSize uint64
	pollDelay time.Duration
	logger    *zap.Logger

	workChan chan *work
	quit     chan struct{}
	wg       sync.WaitGroup

	searchRounds uatomic.Uint64
	foundBlocks  uatomic.Uint64
	nextNonce    uatomic.Uint64

	statsMu     sync.Mutex
	hr          *statistics.HashRate
	workerStats map[int]uint64
	status      types.WorkerStats
}

type work struct {
	tmpl   *clients.Template
	target []byte
}

//NewPool builds a pool from the given args
func NewPool(args mining.MinerArgs) *Pool {
	p := &Pool{}
	p.Init(args)
	return p
}

//Init applies args and prepares the pool for Start
func (p *Pool) Init(args mining.MinerArgs) {
	p.client = args.Client
	p.workers = args.Workers
	if p.workers <= 0 {
		p.workers = defaultWorkers
	}
	p.chunkSize = args.ChunkSize
	if p.chunkSize == 0 {
		p.chunkSize = defaultChunkSize
	}
	p.pollDelay = args.PollDelay
	if p.pollDelay <= 0 {
		p.pollDelay = defaultPollDelay
	}
	p.logger = args.Logger
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	p.logger = p.logger.Named("workers")
	p.hr = &statistics.HashRate{}
	p.workerStats = make(map[int]uint64)
	p.status = types.Starting
}

//RegisterSearchFunc installs the search implementation for a channel name
func (p *Pool) RegisterSearchFunc(channel string, fn SearchFunc) {
	if p.searches == nil {
		p.searches = make(map[string]SearchFunc)
	}
	p.searches[channel] = fn
}

//Start subscribes to template feeds and launches the workers
func (p *Pool) Start() {
	p.quit = make(chan struct{})
	p.workChan = make(chan *work, p.workers)

	p.client.OnTemplateReady(func(tmpl *clients.Template, target []byte) {
		p.nextNonce.Store(tmpl.StartingNonce)
		w := &work{tmpl: tmpl, target: target}
		// Replace whatever is queued; workers only ever want the newest.
		for {
			select {
			case p.workChan <- w:
				return
			default:
				select {
				case <-p.workChan:
				default:
				}
			}
		}
	})
	p.client.SetStaleTemplateCall(func(reason string) {
		p.logger.Debug("abandoning outstanding work", zap.String("reason", reason))
	})

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.setStatus(types.Running)
	p.logger.Info("worker pool started", zap.Int("workers", p.workers))
}

//Halt stops all workers
func (p *Pool) Halt() {
	if p.quit == nil {
		return
	}
	close(p.quit)
	p.wg.Wait()
	p.quit = nil
	p.setStatus(types.Stopped)
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	var current *work

	search := func() {
		if current == nil {
			return
		}
		fn, ok := p.searches[p.client.ChannelName()]
		if !ok {
			return
		}
		start := p.nextNonce.Add(p.chunkSize) - p.chunkSize
		nonce, found := fn(current.tmpl, current.target, start, p.chunkSize)
		p.searchRounds.Inc()
		p.recordRound(id)
		if !found {
			return
		}
		p.foundBlocks.Inc()
		p.logger.Info("candidate found", zap.Int("worker", id), zap.Uint64("nonce", nonce))
		if err := p.client.SubmitBlock(current.tmpl.MerkleRoot, nonce); err != nil {
			// Stale work or a dropped connection; fresh work will arrive.
			p.logger.Warn("submission not sent", zap.Error(err))
			current = nil
		}
	}

	for {
		select {
		case <-p.quit:
			return
		case w := <-p.workChan:
			current = w
		case <-time.After(p.pollDelay):
			// Fall back to pulling in case this worker missed the feed.
			if current == nil {
				if tmpl, ok := p.client.GetCurrentTemplate(); ok {
					current = &work{tmpl: tmpl, target: tmpl.Target()}
				}
			}
		}
		search()

		// Drop finished or superseded work.
		if tmpl, ok := p.client.GetCurrentTemplate(); !ok {
			current = nil
		} else if current != nil && tmpl.Height != current.tmpl.Height {
			current = nil
		}
	}
}

func (p *Pool) setStatus(s types.WorkerStats) {
	p.statsMu.Lock()
	p.status = s
	p.statsMu.Unlock()
}

func (p *Pool) recordRound(id int) {
	p.statsMu.Lock()
	p.workerStats[id]++
	p.hr.Add(float64(p.chunkSize))
	p.statsMu.Unlock()
}

//GetPoolStats reports the pool's search statistics
func (p *Pool) GetPoolStats() (stats types.PoolStates) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	stats.PoolName = "cpu"
	stats.Status = p.status
	oneMin := p.hr.RecentNSum(60)
	fiveMin := p.hr.RecentNSum(300)
	oneHour := p.hr.RecentNSum(3600)
	stats.NonceNum[0], stats.NonceNum[1], stats.NonceNum[2] = oneMin, fiveMin, oneHour
	stats.Hashrate[0], stats.Hashrate[1], stats.Hashrate[2] = oneMin/60, fiveMin/300, oneHour/3600
	workerStats := make(map[int]uint64, len(p.workerStats))
	for k, v := range p.workerStats {
		workerStats[k] = v
	}
	stats.WorkerStats = &workerStats
	stats.Channel = p.client.ChannelName()
	stats.SearchRounds = p.searchRounds.Load()
	return
}
