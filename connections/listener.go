//go:build linux

package connections

import (
	"errors"

	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/errs"
	"github.com/Trinoooo/eggie_net/reactor"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// TcpListener 非阻塞监听 socket，以可读注册，就绪后循环 Accept 直到 would-block
type TcpListener struct {
	*reactor.PolledFd
}

func Bind(addr *Addr, backlog int) (*TcpListener, error) {
	if backlog <= 0 {
		backlog = consts.DefaultBacklog
	}

	fd, err := unix.Socket(addr.family(), unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		e := errs.NewListenErr().WithOp("socket").WithErr(err)
		connLogger.Error(e.Error(), zap.String(consts.LogFieldLocal, addr.String()))
		return nil, e
	}

	fail := func(e *errs.NetErr) (*TcpListener, error) {
		var err error = e
		if ce := unix.Close(fd); ce != nil {
			err = pkgerrors.Wrap(e, ce.Error())
		}
		connLogger.Error(err.Error(), zap.String(consts.LogFieldLocal, addr.String()))
		return nil, err
	}

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail(errs.NewTcpOpErr("setsockopt(SO_REUSEADDR)").WithErr(err))
	}
	if err = unix.Bind(fd, addr.Sockaddr()); err != nil {
		return fail(errs.NewBindErr().WithErr(err))
	}
	if err = unix.Listen(fd, backlog); err != nil {
		return fail(errs.NewListenErr().WithOp("listen").WithErr(err))
	}

	connLogger.Info("listening", zap.String(consts.LogFieldLocal, addr.String()), zap.Int(consts.LogFieldFd, fd))
	return &TcpListener{PolledFd: reactor.NewPolledFd(fd)}, nil
}

// Accept 取一个待处理连接，返回的 stream 是非阻塞的
// 没有待处理连接时返回的错误满足 IsWouldBlock
func (l *TcpListener) Accept() (*TcpStream, *Addr, error) {
	for {
		nfd, sa, err := unix.Accept4(l.Descriptor(), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			// 对端在 accept 之前已放弃
			if errors.Is(err, unix.EINTR) || errors.Is(err, unix.ECONNABORTED) {
				continue
			}
			return nil, nil, errs.NewAcceptErr().WithErr(err)
		}

		peer, err := addrFromSockaddr(sa)
		if err != nil {
			_ = unix.Close(nfd)
			return nil, nil, err
		}
		return NewTcpStream(nfd), peer, nil
	}
}

func (l *TcpListener) LocalAddr() (*Addr, error) {
	return localAddr(l.Descriptor())
}

func localAddr(fd int) (*Addr, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, errs.NewTcpOpErr("getsockname").WithErr(err)
	}
	return addrFromSockaddr(sa)
}
