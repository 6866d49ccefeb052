package buffer

import (
	"bytes"
	"io"

	"github.com/Trinoooo/eggie_net/consts"
	"github.com/bytedance/gopkg/lang/mcache"
)

// Buffer 环形缓冲区，可读数据从 begin 开始共 size 字节，空间不足时自动扩容
// Buffer 不是并发安全的
type Buffer struct {
	data  []byte
	begin int
	size  int
}

func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = consts.DefaultBufferSize
	}
	return &Buffer{data: mcache.Malloc(capacity)}
}

func (b *Buffer) Len() int {
	return b.size
}

func (b *Buffer) Cap() int {
	return len(b.data)
}

// Available 不扩容的前提下还能写入的字节数
func (b *Buffer) Available() int {
	return len(b.data) - b.size
}

func (b *Buffer) Reset() {
	b.begin, b.size = 0, 0
}

// Release 归还底层内存，之后不可再使用
func (b *Buffer) Release() {
	if b.data != nil {
		mcache.Free(b.data)
		b.data = nil
	}
	b.Reset()
}

func (b *Buffer) Put(p []byte) {
	if len(p) > b.Available() {
		b.grow(b.size + len(p))
	}
	b.write(p)
}

func (b *Buffer) PutString(s string) {
	if len(s) > b.Available() {
		b.grow(b.size + len(s))
	}
	tail := b.tail()
	n := copy(b.data[tail:], s)
	copy(b.data, s[n:])
	b.size += len(s)
}

// Read 实现 io.Reader，缓冲区为空时返回 io.EOF
func (b *Buffer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if b.size == 0 {
		return 0, io.EOF
	}
	n := b.peek(p)
	b.Discard(n)
	return n, nil
}

// Peek 返回前 n 个可读字节的拷贝，不移动读指针
func (b *Buffer) Peek(n int) []byte {
	if n > b.size {
		n = b.size
	}
	out := make([]byte, n)
	b.peek(out)
	return out
}

// Discard 丢弃至多 n 个字节，返回实际丢弃的数量
func (b *Buffer) Discard(n int) int {
	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return 0
	}
	b.begin = (b.begin + n) % len(b.data)
	b.size -= n
	if b.size == 0 {
		b.begin = 0
	}
	return n
}

// Find 返回 c 在可读数据中第一次出现的下标，不存在时返回 -1
func (b *Buffer) Find(c byte) int {
	first, second := b.readable()
	if i := bytes.IndexByte(first, c); i >= 0 {
		return i
	}
	if i := bytes.IndexByte(second, c); i >= 0 {
		return len(first) + i
	}
	return -1
}

// TakeString 读出至多 n 个字节并转成字符串
func (b *Buffer) TakeString(n int) string {
	s := string(b.Peek(n))
	b.Discard(len(s))
	return s
}

func (b *Buffer) tail() int {
	if len(b.data) == 0 {
		return 0
	}
	return (b.begin + b.size) % len(b.data)
}

// readable 可读数据最多分成两段
func (b *Buffer) readable() ([]byte, []byte) {
	if b.size == 0 {
		return nil, nil
	}
	end := b.begin + b.size
	if end <= len(b.data) {
		return b.data[b.begin:end], nil
	}
	return b.data[b.begin:], b.data[:end-len(b.data)]
}

// writable 空闲空间最多分成两段
func (b *Buffer) writable() ([]byte, []byte) {
	if b.Available() == 0 {
		return nil, nil
	}
	tail := b.tail()
	if tail >= b.begin && !(tail == b.begin && b.size > 0) {
		return b.data[tail:], b.data[:b.begin]
	}
	return b.data[tail:b.begin], nil
}

func (b *Buffer) peek(p []byte) int {
	first, second := b.readable()
	n := copy(p, first)
	n += copy(p[n:], second)
	return n
}

// write 调用方保证空间足够
func (b *Buffer) write(p []byte) {
	tail := b.tail()
	n := copy(b.data[tail:], p)
	copy(b.data, p[n:])
	b.size += len(p)
}

// grow 容量至少翻倍，并把可读数据整理到新内存的开头
func (b *Buffer) grow(need int) {
	capacity := len(b.data) * 2
	if capacity < need {
		capacity = need
	}
	if capacity < consts.DefaultBufferSize {
		capacity = consts.DefaultBufferSize
	}

	data := mcache.Malloc(capacity)
	n := b.peek(data)
	if b.data != nil {
		mcache.Free(b.data)
	}
	b.data, b.begin, b.size = data, 0, n
}
