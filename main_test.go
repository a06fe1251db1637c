package main

import (
	"testing"
	"time"

	"github.com/NamecoinGithub/NexusMiner-sub000/miner"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/viper"
)

func TestReadConfig(t *testing.T) {
	viper.SetDefault("workers", "2")
	viper.SetDefault("chunksize", "65536")
	viper.SetDefault("polldelay", "500")
	viper.SetDefault("webenable", "true")
	viper.SetDefault("weblisten", "0.0.0.0:8000")
	viper.SetDefault("debug", "error")

	viper.SetConfigName("nexusminer")          // name of config file (without extension)
	viper.AddConfigPath("/opt/nexusminer/etc") // path to look for the config file in
	viper.AddConfigPath(".")                   // more path to look for the config files

	err := viper.ReadInConfig()
	if err != nil {
		println("No config file found. Using built-in defaults.")
	}

	var mainminer = &miner.Miner{}
	applyConfig(mainminer)
	spew.Dump(mainminer)

	if mainminer.Workers != 2 {
		t.Fatal("default workers not applied")
	}
	if mainminer.ChunkSize != 65536 {
		t.Fatal("default chunksize not applied")
	}
}

func TestNodeConfigDecode(t *testing.T) {
	v := viper.New()
	v.Set("nodes", []map[string]interface{}{
		{
			"url":           "node.example.org:9323",
			"address":       "2SGuyyZGNDEtKyZYNQieDLgkrsBJvTTyTDqvhWspRJWBCKMcEbd",
			"channel":       2,
			"authretries":   3,
			"authbasedelay": "5s",
			"active":        true,
		},
	})

	var nodes []struct {
		URL           string
		Address       string
		Channel       uint32
		AuthBaseDelay time.Duration
		Active        bool
	}
	if err := v.UnmarshalKey("nodes", &nodes, nodeDecodeHook()); err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 1 {
		t.Fatal("expected one node")
	}
	spew.Dump(nodes)
	if nodes[0].AuthBaseDelay != 5*time.Second {
		t.Fatal("duration string not decoded")
	}
	if nodes[0].Channel != 2 {
		t.Fatal("channel not decoded")
	}
}
