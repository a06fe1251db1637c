package mining

import (
	"time"

	"github.com/NamecoinGithub/NexusMiner-sub000/clients"

	"go.uber.org/zap"
)

//HashRateReport is sent from the worker routines for giving combined information as output
type HashRateReport struct {
	WorkerID     int
	HashRate     [3]float64
	BlockCounter uint64
	FoundCounter uint64
	Difficulty   float64
	WorkerStats  map[int]uint64
}

//MinerArgs carries everything a worker pool needs to start
type MinerArgs struct {
	Client    clients.Client
	Workers   int
	PollDelay time.Duration
	ChunkSize uint64
	Logger    *zap.Logger
}

//Miner declares the common lifecycle for a worker pool
type Miner interface {
	Init(MinerArgs)
	Start()
	Halt()
}
