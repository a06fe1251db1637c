package miner

import (
	j "encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/NamecoinGithub/NexusMiner-sub000/algorithms/hashchannel"
	"github.com/NamecoinGithub/NexusMiner-sub000/algorithms/primechannel"
	"github.com/NamecoinGithub/NexusMiner-sub000/clients"
	"github.com/NamecoinGithub/NexusMiner-sub000/clients/nexus"
	"github.com/NamecoinGithub/NexusMiner-sub000/mining"
	"github.com/NamecoinGithub/NexusMiner-sub000/types"
	"github.com/NamecoinGithub/NexusMiner-sub000/workers"

	"github.com/gorilla/mux"
	"github.com/gorilla/rpc"
	"github.com/gorilla/rpc/json"

	"go.uber.org/zap/zapcore"

	"os"

	"go.uber.org/zap"
)

var atom = zap.NewAtomicLevel()
var logger *zap.Logger

func selectZapLevel(loglevel string) zapcore.Level {
	var level zapcore.Level
	switch loglevel {
	case "debug":
		level = zap.DebugLevel
	case "info":
		level = zap.InfoLevel
	case "error":
		level = zap.ErrorLevel
	default:
		level = zap.InfoLevel
	}
	return level
}
func initLogger(loglevel string) *zap.Logger {
	level := selectZapLevel(loglevel)
	encoderCfg := zap.NewProductionEncoderConfig()
	logger = zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		atom,
	))
	defer logger.Sync()
	atom.SetLevel(level)
	return logger
}

//Miner do everything
type Miner struct {
	Nodes []types.Node

	Workers   int
	ChunkSize uint64
	PollDelay int64

	WebEnable bool
	WebListen string

	LogLevel string

	pool      *workers.Pool
	clients   []clients.Client
	activeIdx int
}

func (m *Miner) workerArgs(client clients.Client) mining.MinerArgs {
	args := mining.MinerArgs{}
	args.Client = client
	args.Workers = m.Workers
	args.ChunkSize = m.ChunkSize
	args.PollDelay = time.Duration(m.PollDelay) * time.Millisecond
	args.Logger = logger
	return args
}

//Reload the main miner
func (m *Miner) Reload() {
	if m.pool != nil {
		m.pool.Halt()
	}
	log.Print("Reloading miner")
	loglvl := selectZapLevel(m.LogLevel)
	atom.SetLevel(loglvl)
	for _, cli := range m.clients {
		log.Print("Stopping node:", cli.GetNodeStats().NodeAddr)
		cli.Stop()
	}
	m.clients = make([]clients.Client, len(m.Nodes))

	for i := range m.Nodes {
		node := &m.Nodes[i]
		client := nexus.NewClient(node, logger)
		if node.Active {
			m.activeIdx = i
		}
		go client.Start()
		m.clients[i] = client
	}

	m.pool = workers.NewPool(m.workerArgs(m.clients[m.activeIdx]))
	m.pool.RegisterSearchFunc("hash", hashchannel.Search)
	m.pool.RegisterSearchFunc("prime", primechannel.Search)
	m.pool.Start()
}

//MinerMain starts the miner
func (m *Miner) MinerMain() {
	log.SetOutput(os.Stdout)

	logger := initLogger(m.LogLevel)

	m.clients = make([]clients.Client, len(m.Nodes))

	for i := range m.Nodes {
		node := &m.Nodes[i]
		client := nexus.NewClient(node, logger)
		if node.Active {
			m.activeIdx = i
		}
		go client.Start()
		m.clients[i] = client
	}

	m.pool = workers.NewPool(m.workerArgs(m.clients[m.activeIdx]))
	m.pool.RegisterSearchFunc("hash", hashchannel.Search)
	m.pool.RegisterSearchFunc("prime", primechannel.Search)
	m.pool.Start()

	if !m.WebEnable {
		select {}
	}

	s := rpc.NewServer()
	s.RegisterCodec(json.NewCodec(), "application/json")
	s.RegisterCodec(json.NewCodec(), "application/json;charset=UTF-8")
	s.RegisterService(m, "miner")
	r := mux.NewRouter()
	r.Handle("/rpc", s)

	r.HandleFunc("/nexusminer/f_status", m.GetMinerStatus)
	r.HandleFunc("/nexusminer/f_miner", m.MinerCtrl)
	listen := m.WebListen
	if listen == "" {
		listen = ":1234"
	}
	http.ListenAndServe(listen, r)
}

type MinerRPCArgs struct {
	Who string
}

type MinerRPCReply struct {
	NodesInfo string
	Activated int
}

func (m *Miner) GetNodesStats(r *http.Request, args *MinerRPCArgs, reply *MinerRPCReply) error {
	var nodesInfo []*types.NodeStates
	for _, client := range m.clients {
		nodeInfo := client.GetNodeStats()
		nodesInfo = append(nodesInfo, &nodeInfo)
	}
	res, _ := j.Marshal(nodesInfo)
	reply.NodesInfo = string(res)
	reply.Activated = m.activeIdx
	return nil
}

type WorkersRPCReply struct {
	WorkersInfo string
}

func (m *Miner) GetWorkersStats(r *http.Request, args *MinerRPCArgs, reply *WorkersRPCReply) error {
	poolStats := m.pool.GetPoolStats()
	res, _ := j.Marshal(poolStats)
	reply.WorkersInfo = string(res)
	return nil
}

func (m *Miner) GetMinerStatus(w http.ResponseWriter, r *http.Request) {
	var nodesInfo []*types.NodeStates
	for i, client := range m.clients {
		nodeInfo := client.GetNodeStats()
		nodeInfo.Active = i == m.activeIdx
		nodesInfo = append(nodesInfo, &nodeInfo)
	}

	poolStats := m.pool.GetPoolStats()

	data := &types.StatusReply{
		Status: &types.MinerStatus{
			Workers:   &poolStats,
			Nodes:     nodesInfo,
			MinerUp:   true,
			MinerDown: false,
			Time:      time.Now().Unix(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	j.NewEncoder(w).Encode(data)
	return
}

func (m *Miner) MinerCtrl(w http.ResponseWriter, r *http.Request) {
	cmds, ok := r.URL.Query()["command"]

	if !ok || len(cmds[0]) < 1 {
		log.Println("Url Param 'cmd' is missing")
		return
	}

	log.Print(cmds)
	cmd := cmds[0]
	switch cmd {
	case "reload":
		m.Reload()
	case "halt":
		m.pool.Halt()
	}
}
