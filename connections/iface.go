//go:build linux

package connections

import (
	"errors"
	"io"

	"github.com/Trinoooo/eggie_net/buffer"
	"github.com/Trinoooo/eggie_net/reactor"
	"golang.org/x/sys/unix"
)

type IListener interface {
	reactor.Pollable
	Accept() (*TcpStream, *Addr, error)
	LocalAddr() (*Addr, error)
	io.Closer
}

type IConnection interface {
	reactor.Pollable
	io.ReadWriteCloser
	ReadBuffer(buf *buffer.Buffer) (int, error)
	WriteBuffer(buf *buffer.Buffer) (int, error)
	PeerAddr() (*Addr, error)
	LocalAddr() (*Addr, error)
}

var (
	_ IListener   = (*TcpListener)(nil)
	_ IConnection = (*TcpStream)(nil)
)

// IsWouldBlock err 只表示 socket 暂未就绪
func IsWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}
