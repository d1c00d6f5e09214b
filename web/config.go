package web

import (
	"go.bug.st/serial.v1"

	"github.com/smithj208/BuildBotStatusLight/buildbot"
	"github.com/smithj208/BuildBotStatusLight/irtoy"
)

var DefaultConfig = Config{
	ButtonsFile: "buttons.json",
	Web:         DefaultServerConfig,
	BuildBot:    buildbot.DefaultConfig,
	Serial:      *irtoy.DefaultSerialConfig,
}

type Config struct {
	Device      string // serial port path, empty for auto-detection
	ButtonsFile string
	Web         ServerConfig
	BuildBot    buildbot.Config
	Serial      serial.Mode
}
