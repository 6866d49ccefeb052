//go:build linux

package reactor

import (
	"sync"

	"github.com/Trinoooo/eggie_net/errs"
	"go.uber.org/atomic"
)

// registrationNode 由 Registration 和它的所有 SetReadiness 共享
// 未注册、Deregister 之后、oneshot 投递之后 queue 均为 nil
type registrationNode struct {
	mu       sync.Mutex
	queue    *ReadinessQueue
	token    Token
	interest Ready
	opts     PollOpt
	last     Ready

	delivered *atomic.Uint64
}

// Registration 没有 fd 的 Pollable，任意协程通过 SetReadiness 注入就绪状态，
// 经 readiness queue 到达 poller
type Registration struct {
	node *registrationNode
}

// SetReadiness 向所属 Registration 推送就绪状态，并发安全，可随意 Clone
type SetReadiness struct {
	node *registrationNode
}

func NewRegistration() (*Registration, *SetReadiness) {
	node := &registrationNode{delivered: atomic.NewUint64(0)}
	return &Registration{node: node}, &SetReadiness{node: node}
}

func (r *Registration) NewSetReadiness() *SetReadiness {
	return &SetReadiness{node: r.node}
}

// Register 记录 token、关注集和选项，借用 poller 的唤醒通路，不碰 epoll
func (r *Registration) Register(p *Poller, tok Token, interest Ready, opts PollOpt) error {
	return r.arm(p, tok, interest, opts)
}

func (r *Registration) Reregister(p *Poller, tok Token, interest Ready, opts PollOpt) error {
	return r.arm(p, tok, interest, opts)
}

func (r *Registration) Deregister(p *Poller) error {
	n := r.node
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.queue != nil && n.queue != p.rq {
		e := errs.NewInvalidParamErr()
		reactorLogger.Error(e.Error() + ": registration belongs to another poller")
		return e
	}
	n.queue = nil
	return nil
}

func (r *Registration) Descriptor() int {
	return -1
}

func (r *Registration) arm(p *Poller, tok Token, interest Ready, opts PollOpt) error {
	if p.closed.Load() {
		return errs.NewPollerClosedErr()
	}

	n := r.node
	n.mu.Lock()
	n.queue = p.rq
	n.token = tok
	n.interest = interest
	n.opts = opts
	n.mu.Unlock()
	return nil
}

// SetReadiness ready 与关注集有交集时投递给 poller，事件携带原样的 ready
// oneshot 注册投递一次后失效，直到重新注册
func (s *SetReadiness) SetReadiness(ready Ready) error {
	n := s.node
	n.mu.Lock()
	n.last = ready
	rq := n.queue
	if rq == nil || !ready.Intersects(n.interest) {
		n.mu.Unlock()
		return nil
	}
	ev := NewEvent(ready, n.token)
	if n.opts.IsOneshot() {
		n.queue = nil
	}
	n.mu.Unlock()

	// 队列满时 Put 会阻塞，此处不持有 node 锁
	if err := rq.Put(ev); err != nil {
		return err
	}
	n.delivered.Inc()
	return nil
}

// Readiness 最近一次设置的值，不论是否投递
func (s *SetReadiness) Readiness() Ready {
	s.node.mu.Lock()
	defer s.node.mu.Unlock()
	return s.node.last
}

// Delivered 该事件源推入 readiness queue 的事件数
func (s *SetReadiness) Delivered() uint64 {
	return s.node.delivered.Load()
}

func (s *SetReadiness) Clone() *SetReadiness {
	return &SetReadiness{node: s.node}
}
