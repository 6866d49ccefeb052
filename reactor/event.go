//go:build linux

package reactor

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Token 把 Event 关联回注册时的事件源
type Token uint64

// WakeupToken 保留给 poller 自己的 readiness queue 通知
const WakeupToken Token = 0

// Event 即 (readiness, token)，内存布局与内核 epoll_event 完全一致，
// []Event 可以直接交给 epoll_wait
type Event struct {
	raw unix.EpollEvent
}

// 两者大小不一致时下面任一行编译失败
var (
	_ [unsafe.Sizeof(Event{}) - unsafe.Sizeof(unix.EpollEvent{})]struct{}
	_ [unsafe.Sizeof(unix.EpollEvent{}) - unsafe.Sizeof(Event{})]struct{}
)

func NewEvent(r Ready, tok Token) Event {
	var e Event
	e.raw.Events = r.native()
	e.setToken(tok)
	return e
}

// EventFromNative 解码一条原始 epoll 记录
func EventFromNative(ev unix.EpollEvent) Event {
	return Event{raw: ev}
}

// Native 编码成原始 epoll 记录
func (e Event) Native() unix.EpollEvent {
	return e.raw
}

func (e Event) Readiness() Ready {
	return readyFromNative(e.raw.Events)
}

// Token 读 64 位的 data 联合体，各个 linux 架构上它都从 Fd 字段开始
func (e Event) Token() Token {
	return Token(*(*uint64)(unsafe.Pointer(&e.raw.Fd)))
}

func (e *Event) setToken(tok Token) {
	*(*uint64)(unsafe.Pointer(&e.raw.Fd)) = uint64(tok)
}

// IsWakeup 为 true 时只表示 readiness queue 里有事件待取
func (e Event) IsWakeup() bool {
	return e.Token() == WakeupToken
}

func (e Event) String() string {
	return fmt.Sprintf("Event{token: %d, readiness: %s}", e.Token(), e.Readiness())
}

// nativeEvents 原地重解释，不拷贝
func nativeEvents(events []Event) []unix.EpollEvent {
	if len(events) == 0 {
		return nil
	}
	return unsafe.Slice((*unix.EpollEvent)(unsafe.Pointer(&events[0])), len(events))
}
