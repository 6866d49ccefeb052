//go:build linux

package reactor

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

var pollerSeq = atomic.NewUint64(0)

// Metrics poller 的观测指标
type Metrics struct {
	Polls        prometheus.Counter // 返回的 epoll_wait 次数
	NativeEvents prometheus.Counter // epoll_wait 解出的事件数，含唤醒事件
	Wakeups      prometheus.Counter // 调用方 drain 的次数
	UserEvents   prometheus.Counter // 从 readiness queue 取出的用户事件数
	PollErrors   prometheus.Counter
	QueueDepth   prometheus.GaugeFunc
}

func newMetrics(rq *ReadinessQueue) *Metrics {
	return &Metrics{
		Polls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eggie_net_reactor_polls_total",
			Help: "epoll_wait calls that returned.",
		}),
		NativeEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eggie_net_reactor_native_events_total",
			Help: "events reported by epoll_wait.",
		}),
		Wakeups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eggie_net_reactor_wakeups_total",
			Help: "readiness queue drains.",
		}),
		UserEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eggie_net_reactor_user_events_total",
			Help: "synthetic events drained from the readiness queue.",
		}),
		PollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eggie_net_reactor_poll_errors_total",
			Help: "epoll_wait failures other than EINTR.",
		}),
		QueueDepth: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "eggie_net_reactor_queue_depth",
			Help: "synthetic events waiting in the readiness queue.",
		}, func() float64 {
			return float64(rq.Len())
		}),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Polls, m.NativeEvents, m.Wakeups, m.UserEvents, m.PollErrors, m.QueueDepth}
}

// register 给每个指标打上进程内唯一的 poller 标签，多个 poller 可共用一个 registry
func (m *Metrics) register(reg prometheus.Registerer) error {
	id := strconv.FormatUint(pollerSeq.Inc(), 10)
	wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"poller": id}, reg)
	collectors := m.Collectors()
	for i, c := range collectors {
		if err := wrapped.Register(c); err != nil {
			// 撤销已注册的部分，失败的 poller 不能在调用方的 registry 里留下指标
			for _, done := range collectors[:i] {
				wrapped.Unregister(done)
			}
			return err
		}
	}
	return nil
}
