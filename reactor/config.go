//go:build linux

package reactor

import (
	"github.com/Trinoooo/eggie_net/consts"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	// QueueCapacity readiness queue 容量，满了生产者阻塞
	QueueCapacity int
	// Registerer 接收 poller 的指标，为 nil 时不注册
	Registerer prometheus.Registerer
}

func DefaultConfig() *Config {
	return &Config{
		QueueCapacity: consts.DefaultQueueCapacity,
	}
}
