//go:build linux

package reactor

import (
	"strings"

	"golang.org/x/sys/unix"
)

const (
	readyRead  = unix.EPOLLIN
	readyWrite = unix.EPOLLOUT
	readyError = unix.EPOLLERR
	readyHup   = unix.EPOLLHUP

	readyMask = readyRead | readyWrite | readyError | readyHup
)

// Ready 事件源已就绪的操作集合；作为关注集时表示注册方想收到的集合
// 只能通过具名构造函数和组合方法得到
type Ready struct {
	v uint32
}

func EmptyReady() Ready { return Ready{} }
func Readable() Ready   { return Ready{readyRead} }
func Writable() Ready   { return Ready{readyWrite} }
func ErrorReady() Ready { return Ready{readyError} }
func HangUp() Ready     { return Ready{readyHup} }

// readyFromNative 从 epoll 事件掩码解码，EPOLLRDHUP 并入 HangUp，未知位丢弃
func readyFromNative(events uint32) Ready {
	r := Ready{events & readyMask}
	if events&unix.EPOLLRDHUP != 0 {
		r.v |= readyHup
	}
	return r
}

func (r Ready) Union(o Ready) Ready      { return Ready{r.v | o.v} }
func (r Ready) Difference(o Ready) Ready { return Ready{r.v &^ o.v} }
func (r Ready) Intersect(o Ready) Ready  { return Ready{r.v & o.v} }

// Contains o 的每一位都在 r 中
func (r Ready) Contains(o Ready) bool { return r.v&o.v == o.v }

// Intersects r 与 o 至少有一位相同
func (r Ready) Intersects(o Ready) bool { return r.v&o.v != 0 }

func (r Ready) IsEmpty() bool    { return r.v == 0 }
func (r Ready) IsReadable() bool { return r.Contains(Readable()) }
func (r Ready) IsWritable() bool { return r.Contains(Writable()) }
func (r Ready) IsError() bool    { return r.Contains(ErrorReady()) }
func (r Ready) IsHangUp() bool   { return r.Contains(HangUp()) }

func (r Ready) native() uint32 { return r.v }

func (r Ready) String() string {
	if r.IsEmpty() {
		return "Ready{}"
	}
	parts := make([]string, 0, 4)
	if r.IsReadable() {
		parts = append(parts, "Readable")
	}
	if r.IsWritable() {
		parts = append(parts, "Writable")
	}
	if r.IsError() {
		parts = append(parts, "Error")
	}
	if r.IsHangUp() {
		parts = append(parts, "HangUp")
	}
	return "Ready{" + strings.Join(parts, "|") + "}"
}

const (
	optEdge uint8 = 1 << iota
	optLevel
	optOneshot
)

// PollOpt 注册的通知方式，未指定 Edge 时默认 Level，Oneshot 与二者正交
type PollOpt struct {
	v uint8
}

func EmptyOpt() PollOpt { return PollOpt{} }
func Edge() PollOpt     { return PollOpt{optEdge} }
func Level() PollOpt    { return PollOpt{optLevel} }
func Oneshot() PollOpt  { return PollOpt{optOneshot} }

func (o PollOpt) Union(x PollOpt) PollOpt      { return PollOpt{o.v | x.v} }
func (o PollOpt) Difference(x PollOpt) PollOpt { return PollOpt{o.v &^ x.v} }
func (o PollOpt) Intersect(x PollOpt) PollOpt  { return PollOpt{o.v & x.v} }
func (o PollOpt) Contains(x PollOpt) bool      { return o.v&x.v == x.v }

func (o PollOpt) IsEmpty() bool   { return o.v == 0 }
func (o PollOpt) IsEdge() bool    { return o.v&optEdge != 0 }
func (o PollOpt) IsLevel() bool   { return !o.IsEdge() }
func (o PollOpt) IsOneshot() bool { return o.v&optOneshot != 0 }

// native 映射成 epoll 标志位，Level 没有对应的位
func (o PollOpt) native() uint32 {
	var flags uint32
	if o.IsEdge() {
		flags |= unix.EPOLLET
	}
	if o.IsOneshot() {
		flags |= unix.EPOLLONESHOT
	}
	return flags
}

func (o PollOpt) String() string {
	parts := make([]string, 0, 3)
	if o.IsEdge() {
		parts = append(parts, "Edge")
	} else {
		parts = append(parts, "Level")
	}
	if o.IsOneshot() {
		parts = append(parts, "Oneshot")
	}
	return "PollOpt{" + strings.Join(parts, "|") + "}"
}
