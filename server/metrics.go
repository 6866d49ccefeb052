//go:build linux

package server

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

type MetricsHelper struct {
	Registry *prometheus.Registry

	ConnectionAcceptCounter prometheus.Counter // 已接受的连接
	ConnectionRejectCounter prometheus.Counter // token 耗尽被直接关闭的连接
	LiveConnections         prometheus.Gauge
	RequestCounter          prometheus.Counter
	BytesRead               prometheus.Counter
	BytesWritten            prometheus.Counter

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewMetricsHelper 创建服务端 registry，pushURL 非空时每隔 interval 推送到 pushgateway，直到 Stop
func NewMetricsHelper(pushURL string, interval time.Duration) *MetricsHelper {
	mh := &MetricsHelper{
		Registry: prometheus.NewRegistry(),
		ConnectionAcceptCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eggie_net_connection_accept_total",
		}),
		ConnectionRejectCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eggie_net_connection_reject_total",
		}),
		LiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eggie_net_connection_live",
		}),
		RequestCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eggie_net_request_total",
		}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eggie_net_read_bytes_total",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eggie_net_written_bytes_total",
		}),
		stop: make(chan struct{}),
	}
	mh.Registry.MustRegister(
		mh.ConnectionAcceptCounter,
		mh.ConnectionRejectCounter,
		mh.LiveConnections,
		mh.RequestCounter,
		mh.BytesRead,
		mh.BytesWritten,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if pushURL != "" {
		pusher := push.New(pushURL, "eggie_net").Gatherer(mh.Registry)
		mh.wg.Add(1)
		go mh.push(pusher, interval)
	}
	return mh
}

func (mh *MetricsHelper) push(pusher *push.Pusher, interval time.Duration) {
	defer mh.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-mh.stop:
			return
		case <-ticker.C:
			if err := pusher.Add(); err != nil {
				serverLogger.Warn("prometheus pusher push failed", zap.Error(err))
			}
		}
	}
}

// Stop 结束推送循环，可重复调用
func (mh *MetricsHelper) Stop() {
	select {
	case <-mh.stop:
	default:
		close(mh.stop)
	}
	mh.wg.Wait()
}
