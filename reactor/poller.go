//go:build linux

package reactor

import (
	"errors"
	"time"

	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/errs"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// NoTimeout Poll 一直阻塞到有事件
const NoTimeout time.Duration = -1

// Poller 用一个 epoll 实例复用所有注册源的就绪状态
// Register/Reregister/Deregister 可以在任意协程调用，
// Poll 和 DrainUserEvents 只归一个 reactor 协程
type Poller struct {
	epfd    int
	waker   *PolledFd // 以 WakeupToken 注册的 eventfd
	rq      *ReadinessQueue
	closed  *atomic.Bool
	metrics *Metrics
}

// NewPoller 创建 epoll 实例和唤醒用的 eventfd，失败时已创建的资源全部释放
func NewPoller(cfg *Config) (*Poller, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		e := errs.NewCreatePollerErr().WithOp("epoll_create1").WithErr(err)
		reactorLogger.Error(e.Error())
		return nil, e
	}

	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		e := errs.NewCreatePollerErr().WithOp("eventfd").WithErr(err)
		reactorLogger.Error(e.Error())
		return nil, e
	}

	p := &Poller{
		epfd:   epfd,
		waker:  NewPolledFd(efd),
		closed: atomic.NewBool(false),
	}

	p.rq, err = NewReadinessQueue(cfg.QueueCapacity, efd)
	if err != nil {
		return nil, p.abort(errs.NewCreatePollerErr().WithOp("readiness queue").WithErr(err))
	}

	// 边沿触发：一批 put 只唤醒一次，而不是每次 poll 都报
	if err = p.waker.Register(p, WakeupToken, Readable(), Edge()); err != nil {
		return nil, p.abort(errs.NewCreatePollerErr().WithOp("register wakeup").WithErr(err))
	}

	p.metrics = newMetrics(p.rq)
	if cfg.Registerer != nil {
		if err = p.metrics.register(cfg.Registerer); err != nil {
			return nil, p.abort(errs.NewCreatePollerErr().WithOp("register metrics").WithErr(err))
		}
	}

	reactorLogger.Debug("poller created", zap.Int(consts.LogFieldFd, epfd), zap.Int("wakeup_fd", efd), zap.Int("queue_capacity", cfg.QueueCapacity))
	return p, nil
}

func (p *Poller) abort(cause *errs.NetErr) error {
	if err := p.release(); err != nil {
		reactorLogger.Error(pkgerrors.Wrap(err, cause.Error()).Error())
	} else {
		reactorLogger.Error(cause.Error())
	}
	return cause
}

func (p *Poller) Register(src Pollable, tok Token, interest Ready, opts PollOpt) error {
	if err := p.checkToken(tok); err != nil {
		return err
	}
	return src.Register(p, tok, interest, opts)
}

func (p *Poller) Reregister(src Pollable, tok Token, interest Ready, opts PollOpt) error {
	if err := p.checkToken(tok); err != nil {
		return err
	}
	return src.Reregister(p, tok, interest, opts)
}

func (p *Poller) Deregister(src Pollable) error {
	if p.closed.Load() {
		return errs.NewPollerClosedErr()
	}
	return src.Deregister(p)
}

func (p *Poller) checkToken(tok Token) error {
	if p.closed.Load() {
		return errs.NewPollerClosedErr()
	}
	if tok == WakeupToken {
		e := errs.NewInvalidParamErr()
		reactorLogger.Error(e.Error(), zap.String(consts.LogFieldParams, "token"), zap.Uint64(consts.LogFieldValue, uint64(tok)))
		return e
	}
	return nil
}

// Poll 最多等待 timeout，把至多 len(events) 个事件写进 events 并返回个数
// timeout 为负时一直阻塞；EINTR 用剩余时间重试
//
// IsWakeup 为 true 的事件只表示 readiness queue 有数据，调用方需接着调用 DrainUserEvents
func (p *Poller) Poll(events []Event, timeout time.Duration) (int, error) {
	if p.closed.Load() {
		return 0, errs.NewPollerClosedErr()
	}
	if len(events) == 0 {
		e := errs.NewInvalidParamErr()
		reactorLogger.Error(e.Error(), zap.String(consts.LogFieldParams, "events"), zap.Int(consts.LogFieldValue, 0))
		return 0, e
	}

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	msec := durationToMillis(timeout)
	native := nativeEvents(events)

	for {
		n, err := unix.EpollWait(p.epfd, native, msec)
		if err == nil {
			p.metrics.Polls.Inc()
			p.metrics.NativeEvents.Add(float64(n))
			return n, nil
		}
		if !errors.Is(err, unix.EINTR) {
			p.metrics.PollErrors.Inc()
			e := errs.NewPollFailedErr().WithOp("epoll_wait").WithErr(err)
			reactorLogger.Error(e.Error())
			return 0, e
		}
		if timeout >= 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return 0, nil
			}
			msec = durationToMillis(remaining)
		}
	}
}

// DrainUserEvents 消费掉唤醒计数，把队列里所有用户事件追加到 dst
// 不会阻塞；可能一个都取不到，合并后的唤醒可能晚于上一次 drain 已经取走的事件
func (p *Poller) DrainUserEvents(dst []Event) ([]Event, error) {
	if p.closed.Load() {
		return dst, errs.NewPollerClosedErr()
	}

	// 先清计数再取队列，与之并发的 put 会留下新的边沿
	if err := p.consumeWakeup(); err != nil {
		return dst, err
	}

	before := len(dst)
	dst = p.rq.Drain(dst)
	p.metrics.Wakeups.Inc()
	p.metrics.UserEvents.Add(float64(len(dst) - before))
	return dst, nil
}

// Wakeup 让阻塞中的 Poll 返回一个唤醒事件，不入队任何事件
func (p *Poller) Wakeup() error {
	if p.closed.Load() {
		return errs.NewPollerClosedErr()
	}
	return p.rq.Wake()
}

func (p *Poller) consumeWakeup() error {
	buf := make([]byte, 8)
	for {
		_, err := unix.Read(p.waker.Descriptor(), buf)
		switch {
		case err == nil, errors.Is(err, unix.EAGAIN):
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		default:
			return errs.NewWakeupErr().WithOp("read eventfd").WithErr(err)
		}
	}
}

func (p *Poller) Metrics() *Metrics {
	return p.metrics
}

// Close 释放 epoll 实例和唤醒 fd，阻塞在 readiness queue 上的生产者返回 QueueClosed
func (p *Poller) Close() error {
	if !p.closed.CAS(false, true) {
		return nil
	}
	reactorLogger.Debug("poller closing", zap.Int(consts.LogFieldFd, p.epfd))
	return p.release()
}

func (p *Poller) release() error {
	p.closed.Store(true)
	if p.rq != nil {
		p.rq.Close()
	}

	var result error
	if err := p.waker.Close(); err != nil {
		result = err
	}
	if err := unix.Close(p.epfd); err != nil {
		e := errs.NewCloseFdErr().WithOp("close epoll").WithErr(err)
		if result != nil {
			return pkgerrors.Wrap(result, e.Error())
		}
		result = e
	}
	return result
}

// durationToMillis 不足 1ms 的正超时向上取整，避免退化成忙轮询
func durationToMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	const maxMillis = 1<<31 - 1
	if ms > maxMillis {
		return maxMillis
	}
	return int(ms)
}
