//go:build linux

package reactor

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/errs"
	"github.com/eapache/queue"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

var wakeBytes = func() []byte {
	b := make([]byte, 8)
	binary.NativeEndian.PutUint64(b, 1)
	return b
}()

// ReadinessQueue 有界的用户事件 FIFO，多个生产者，一个 poller 协程消费
// 每次入队都会写一次唤醒 fd，多次写可能只表现为一次唤醒，所以消费方一次取完
//
// 队列满时生产者阻塞
type ReadinessQueue struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	q        *queue.Queue
	capacity int
	notifyFd int
	closed   bool
}

// NewReadinessQueue 通过 notifyFd 通知，该 eventfd 不归队列所有
func NewReadinessQueue(capacity int, notifyFd int) (*ReadinessQueue, error) {
	if capacity <= 0 {
		e := errs.NewInvalidParamErr()
		reactorLogger.Error(e.Error(), zap.String(consts.LogFieldParams, "capacity"), zap.Int(consts.LogFieldValue, capacity))
		return nil, e
	}
	if notifyFd < 0 {
		e := errs.NewInvalidParamErr()
		reactorLogger.Error(e.Error(), zap.String(consts.LogFieldParams, "notifyFd"), zap.Int(consts.LogFieldValue, notifyFd))
		return nil, e
	}

	rq := &ReadinessQueue{
		q:        queue.New(),
		capacity: capacity,
		notifyFd: notifyFd,
	}
	rq.notFull = sync.NewCond(&rq.mu)
	return rq, nil
}

func (rq *ReadinessQueue) Put(ev Event) error {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	for !rq.closed && rq.q.Length() >= rq.capacity {
		rq.notFull.Wait()
	}
	if rq.closed {
		return errs.NewQueueClosedErr()
	}

	rq.q.Add(ev)
	// 持锁通知，Close 之后不会再写即将被 poller 释放的 fd
	return rq.notify()
}

// Emplace 原地构造事件，opts 位放在原生掩码里，Readiness 会忽略它们
func (rq *ReadinessQueue) Emplace(r Ready, opts PollOpt, tok Token) error {
	ev := NewEvent(r, tok)
	ev.raw.Events |= opts.native()
	return rq.Put(ev)
}

// Drain 按 FIFO 顺序把所有事件追加到 dst，不阻塞
func (rq *ReadinessQueue) Drain(dst []Event) []Event {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	n := rq.q.Length()
	for i := 0; i < n; i++ {
		dst = append(dst, rq.q.Remove().(Event))
	}
	if n > 0 {
		rq.notFull.Broadcast()
	}
	return dst
}

func (rq *ReadinessQueue) Len() int {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	return rq.q.Length()
}

func (rq *ReadinessQueue) Cap() int {
	return rq.capacity
}

// Close 之后阻塞中和后续的 Put 都返回 QueueClosed，已入队的事件仍可取出
func (rq *ReadinessQueue) Close() {
	rq.mu.Lock()
	rq.closed = true
	rq.mu.Unlock()
	rq.notFull.Broadcast()
}

// Wake 只写唤醒 fd，不入队
func (rq *ReadinessQueue) Wake() error {
	rq.mu.Lock()
	defer rq.mu.Unlock()

	if rq.closed {
		return errs.NewQueueClosedErr()
	}
	return rq.notify()
}

func (rq *ReadinessQueue) notify() error {
	for {
		_, err := unix.Write(rq.notifyFd, wakeBytes)
		switch {
		case err == nil, errors.Is(err, unix.EAGAIN):
			// EAGAIN 表示计数已满，poller 反正会被唤醒
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		default:
			return errs.NewWakeupErr().WithErr(err)
		}
	}
}
