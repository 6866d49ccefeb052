//go:build linux

package reactor

import (
	"sync"

	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/errs"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Pollable 可以注册到 Poller 上的事件源
//
// 只有两类：持有真实 fd 的（*PolledFd 及内嵌它的 socket 类型），
// 和走 readiness queue 的用户事件源（*Registration）
type Pollable interface {
	Register(p *Poller, tok Token, interest Ready, opts PollOpt) error
	Reregister(p *Poller, tok Token, interest Ready, opts PollOpt) error
	Deregister(p *Poller) error
	// Descriptor 返回底层 fd，没有时返回 -1
	Descriptor() int
}

var (
	_ Pollable = (*PolledFd)(nil)
	_ Pollable = (*Registration)(nil)
)

// PolledFd 独占一个 fd 的 Pollable，Close 时关闭
type PolledFd struct {
	mu sync.Mutex
	fd int
}

func NewPolledFd(fd int) *PolledFd {
	return &PolledFd{fd: fd}
}

func (pf *PolledFd) Register(p *Poller, tok Token, interest Ready, opts PollOpt) error {
	return pf.ctl(p, unix.EPOLL_CTL_ADD, tok, interest, opts)
}

func (pf *PolledFd) Reregister(p *Poller, tok Token, interest Ready, opts PollOpt) error {
	return pf.ctl(p, unix.EPOLL_CTL_MOD, tok, interest, opts)
}

func (pf *PolledFd) Deregister(p *Poller) error {
	return pf.ctl(p, unix.EPOLL_CTL_DEL, 0, EmptyReady(), EmptyOpt())
}

func (pf *PolledFd) Descriptor() int {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.fd
}

// Close 只关闭一次，之后的调用什么都不做
func (pf *PolledFd) Close() error {
	pf.mu.Lock()
	fd := pf.fd
	pf.fd = -1
	pf.mu.Unlock()

	if fd < 0 {
		return nil
	}
	if err := unix.Close(fd); err != nil {
		return errs.NewCloseFdErr().WithErr(err)
	}
	return nil
}

func (pf *PolledFd) ctl(p *Poller, op int, tok Token, interest Ready, opts PollOpt) error {
	if p.closed.Load() {
		return errs.NewPollerClosedErr()
	}
	fd := pf.Descriptor()
	if fd < 0 {
		return errs.NewDescriptorOpErr(ctlName(op)).WithErr(unix.EBADF)
	}

	var ev *unix.EpollEvent
	if op != unix.EPOLL_CTL_DEL {
		native := NewEvent(EmptyReady(), tok).Native()
		native.Events = interestToNative(interest) | opts.native()
		ev = &native
	}

	if err := unix.EpollCtl(p.epfd, op, fd, ev); err != nil {
		e := errs.NewDescriptorOpErr(ctlName(op)).WithErr(err)
		reactorLogger.Warn(e.Error(), zap.Int(consts.LogFieldFd, fd), zap.Uint64(consts.LogFieldToken, uint64(tok)))
		return e
	}
	return nil
}

// interestToNative 关注可读时顺带关注 EPOLLRDHUP，流式 socket 才能报出 HangUp
func interestToNative(interest Ready) uint32 {
	mask := interest.native()
	if interest.IsReadable() {
		mask |= unix.EPOLLRDHUP
	}
	return mask
}

func ctlName(op int) string {
	switch op {
	case unix.EPOLL_CTL_ADD:
		return "epoll_ctl(ADD)"
	case unix.EPOLL_CTL_MOD:
		return "epoll_ctl(MOD)"
	case unix.EPOLL_CTL_DEL:
		return "epoll_ctl(DEL)"
	default:
		return "epoll_ctl"
	}
}
