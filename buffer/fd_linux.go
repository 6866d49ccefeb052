package buffer

import (
	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/errs"
	"github.com/bytedance/gopkg/lang/mcache"
	"golang.org/x/sys/unix"
)

// spillSize 单次 readv 额外挂载的临时空间，读到的数据超出空闲空间时先落在这里
const spillSize = 32 * consts.KB

// ReadFd 用 readv 把 fd 中可读的数据读进空闲空间，返回读到的字节数
// 返回 0 且 err 为 nil 表示对端已关闭写端
// 非阻塞 fd 暂无数据时 errors.Is(err, unix.EAGAIN) 成立
func (b *Buffer) ReadFd(fd int) (int, error) {
	if b.Available() == 0 {
		b.grow(len(b.data) + 1)
	}

	spill := mcache.Malloc(spillSize)
	defer mcache.Free(spill)

	first, second := b.writable()
	iovs := make([][]byte, 0, 3)
	iovs = append(iovs, first)
	if len(second) > 0 {
		iovs = append(iovs, second)
	}
	iovs = append(iovs, spill)

	n, err := readv(fd, iovs)
	if err != nil {
		return 0, errs.NewReadSocketErr().WithErr(err)
	}

	free := len(first) + len(second)
	if n <= free {
		b.size += n
		return n, nil
	}
	b.size += free
	b.Put(spill[:n-free])
	return n, nil
}

// WriteFd 用 writev 把可读数据写入 fd，返回写出的字节数，并丢弃已写出的部分
func (b *Buffer) WriteFd(fd int) (int, error) {
	first, second := b.readable()
	if len(first) == 0 {
		return 0, nil
	}
	iovs := [][]byte{first}
	if len(second) > 0 {
		iovs = append(iovs, second)
	}

	n, err := writev(fd, iovs)
	if err != nil {
		return 0, errs.NewWriteSocketErr().WithErr(err)
	}
	b.Discard(n)
	return n, nil
}

func readv(fd int, iovs [][]byte) (int, error) {
	for {
		n, err := unix.Readv(fd, iovs)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func writev(fd int, iovs [][]byte) (int, error) {
	for {
		n, err := unix.Writev(fd, iovs)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}
