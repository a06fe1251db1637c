////////////////////////////////////////////////////////////////////////////
// Program start

package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/NamecoinGithub/NexusMiner-sub000/miner"
	"github.com/NamecoinGithub/NexusMiner-sub000/types"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const version = "0.2.0"

// The main command describes the service and defaults to printing the
// help message.
var mainCmd = &cobra.Command{
	Use:   "nexusminer",
	Short: "Nexusminer mines against coordinator nodes",
	Long:  `Nexusminer mines against coordinator nodes`,
	Run: func(cmd *cobra.Command, args []string) {
		mine()
	},
}

// The version command prints this service.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version.",
	Long:  "The version of the miner.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

var mainminer = &miner.Miner{}

func nodeDecodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))
}

func loadNodes() []types.Node {
	var nodes []types.Node
	if err := viper.UnmarshalKey("nodes", &nodes, nodeDecodeHook()); err != nil {
		log.Print("Bad nodes config: ", err)
	}
	return nodes
}

func applyConfig(m *miner.Miner) {
	m.Nodes = loadNodes()

	m.Workers = viper.GetInt("workers")
	m.ChunkSize = viper.GetUint64("chunksize")
	m.PollDelay = viper.GetInt64("polldelay")

	m.WebEnable = viper.GetBool("webenable")
	m.WebListen = viper.GetString("weblisten")

	m.LogLevel = viper.GetString("debug")
}

// Go special automatically executed init function
func init() {
	mainCmd.AddCommand(versionCmd)

	viper.SetDefault("workers", "2")
	viper.SetDefault("chunksize", "65536")
	viper.SetDefault("polldelay", "500")
	viper.SetDefault("webenable", true)
	viper.SetDefault("weblisten", ":1234")
	viper.SetDefault("debug", "error")

	// Viper supports reading from yaml, toml and/or json files. Viper can
	// search multiple paths. Paths will be searched in the order they are
	// provided. Searches stopped once Config File found.
	pflag.String("cfg", "nexusminer.json", "config file path")
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	fullcfgname := viper.GetString("cfg")

	log.Print("Config file: ", fullcfgname)
	cfgname := strings.TrimSuffix(fullcfgname, filepath.Ext(fullcfgname))
	if fullcfgname != "nexusminer.json" {
		viper.SetConfigFile(fullcfgname)
	} else {
		viper.SetConfigName(cfgname)               // name of config file (without extension)
		viper.AddConfigPath(".")                   // more path to look for the config files
		viper.AddConfigPath("/opt/nexusminer/etc") // path to look for the config file in
	}

	err := viper.ReadInConfig()
	if err != nil {
		println("No config file found. Using built-in defaults.")
	}

	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)
		applyConfig(mainminer)
		mainminer.Reload()
	})
}

func main() {
	mainCmd.Execute()
}

func mine() {
	applyConfig(mainminer)
	mainminer.MinerMain()
}
