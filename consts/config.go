package consts

import (
	"fmt"

	"github.com/mitchellh/go-homedir"
)

// 配置项
const (
	ConfigReactorQueueCapacity = "reactor.queue_capacity"
	ConfigReactorEventBuffer   = "reactor.event_buffer"
	ConfigReactorTokenCapacity = "reactor.token_capacity"
	ConfigServerHost           = "server.host"
	ConfigServerPort           = "server.port"
	ConfigServerBacklog        = "server.backlog"
	ConfigServerWorkers        = "server.workers"
	ConfigServerHandler        = "server.handler"
	ConfigMetricsPushURL       = "metrics.push_url"
	ConfigMetricsPushInterval  = "metrics.push_interval"
)

func init() {
	home, _ := homedir.Dir()
	BaseDir = fmt.Sprintf("%s/eggie_net", home)
	DefaultConfigPath = fmt.Sprintf("%s/config", BaseDir)
}

var (
	BaseDir           string
	DefaultConfigPath string
	TmpDir            = "/tmp/eggie_net"
)
