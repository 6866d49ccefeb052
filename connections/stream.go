//go:build linux

package connections

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/Trinoooo/eggie_net/buffer"
	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/errs"
	"github.com/Trinoooo/eggie_net/reactor"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

type Shutdown int

const (
	ShutdownRead  Shutdown = unix.SHUT_RD
	ShutdownWrite Shutdown = unix.SHUT_WR
	ShutdownBoth  Shutdown = unix.SHUT_RDWR
)

// TcpStream 已连接的非阻塞 TCP socket
type TcpStream struct {
	*reactor.PolledFd
}

// NewTcpStream 接管一个已连接的 socket
func NewTcpStream(fd int) *TcpStream {
	return &TcpStream{PolledFd: reactor.NewPolledFd(fd)}
}

// Connect 创建非阻塞 socket，最多等待 timeout 完成握手，timeout 为负时一直等
func Connect(addr *Addr, timeout time.Duration) (*TcpStream, error) {
	fd, err := unix.Socket(addr.family(), unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, errs.NewConnectErr().WithOp("socket").WithErr(err)
	}

	if err = connectNonblock(fd, addr.Sockaddr(), timeout); err != nil {
		if ce := unix.Close(fd); ce != nil {
			err = pkgerrors.Wrap(err, ce.Error())
		}
		connLogger.Warn(err.Error(), zap.String(consts.LogFieldRemote, addr.String()))
		return nil, err
	}

	connLogger.Debug("connected", zap.String(consts.LogFieldRemote, addr.String()), zap.Int(consts.LogFieldFd, fd))
	return NewTcpStream(fd), nil
}

// Dial 解析 host 与 service，依次尝试直到连上，timeout 限制每次尝试
func Dial(host, service string, timeout time.Duration) (*TcpStream, error) {
	ctx := context.Background()
	if timeout >= 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	port, err := net.DefaultResolver.LookupPort(ctx, "tcp", service)
	if err != nil {
		return nil, errs.NewInvalidAddressErr().WithOp("lookup port").WithErr(err)
	}
	ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, errs.NewInvalidAddressErr().WithOp("lookup host").WithErr(err)
	}

	var last error = errs.NewConnectErr().WithOp("no valid address")
	for _, ip := range ips {
		stream, err := Connect(AddrFrom(ip, uint16(port)), timeout)
		if err == nil {
			return stream, nil
		}
		last = err
	}
	return nil, last
}

func connectNonblock(fd int, sa unix.Sockaddr, timeout time.Duration) error {
	err := unix.Connect(fd, sa)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EINPROGRESS) && !errors.Is(err, unix.EINTR) {
		return errs.NewConnectErr().WithOp("connect").WithErr(err)
	}

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		msec := -1
		if timeout >= 0 {
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			msec = int((remaining + time.Millisecond - 1) / time.Millisecond)
		}

		pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		n, err := unix.Poll(pfd, msec)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return errs.NewConnectErr().WithOp("poll").WithErr(err)
		}
		if n == 0 {
			return errs.NewConnectErr().WithOp("poll").WithErr(unix.ETIMEDOUT)
		}
		break
	}

	soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return errs.NewConnectErr().WithOp("getsockopt(SO_ERROR)").WithErr(err)
	}
	if soErr != 0 {
		return errs.NewConnectErr().WithOp("connect").WithErr(unix.Errno(soErr))
	}
	return nil
}

// Read 对端关闭写端后返回 io.EOF
func (s *TcpStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Read(s.Descriptor(), p)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, errs.NewReadSocketErr().WithErr(err)
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

func (s *TcpStream) Write(p []byte) (int, error) {
	for {
		n, err := unix.Write(s.Descriptor(), p)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, errs.NewWriteSocketErr().WithErr(err)
		}
		return n, nil
	}
}

// ReadBuffer 把 socket 中的数据读进 buf，返回 0 且 err 为 nil 表示对端已关闭
func (s *TcpStream) ReadBuffer(buf *buffer.Buffer) (int, error) {
	return buf.ReadFd(s.Descriptor())
}

func (s *TcpStream) WriteBuffer(buf *buffer.Buffer) (int, error) {
	return buf.WriteFd(s.Descriptor())
}

func (s *TcpStream) PeerAddr() (*Addr, error) {
	sa, err := unix.Getpeername(s.Descriptor())
	if err != nil {
		return nil, errs.NewTcpOpErr("getpeername").WithErr(err)
	}
	return addrFromSockaddr(sa)
}

func (s *TcpStream) LocalAddr() (*Addr, error) {
	return localAddr(s.Descriptor())
}

func (s *TcpStream) Shutdown(how Shutdown) error {
	if err := unix.Shutdown(s.Descriptor(), int(how)); err != nil {
		return errs.NewTcpOpErr("shutdown").WithErr(err)
	}
	return nil
}

func (s *TcpStream) SetNoDelay(on bool) error {
	if err := unix.SetsockoptInt(s.Descriptor(), unix.IPPROTO_TCP, unix.TCP_NODELAY, boolToInt(on)); err != nil {
		return errs.NewTcpOpErr("setsockopt(TCP_NODELAY)").WithErr(err)
	}
	return nil
}

func (s *TcpStream) NoDelay() (bool, error) {
	v, err := unix.GetsockoptInt(s.Descriptor(), unix.IPPROTO_TCP, unix.TCP_NODELAY)
	if err != nil {
		return false, errs.NewTcpOpErr("getsockopt(TCP_NODELAY)").WithErr(err)
	}
	return v != 0, nil
}

// SetKeepAlive 开关 SO_KEEPALIVE，idle/interval 截断到秒；on 为 false 时不修改 idle、interval、count
func (s *TcpStream) SetKeepAlive(on bool, idle, interval time.Duration, count int) error {
	fd := s.Descriptor()
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolToInt(on)); err != nil {
		return errs.NewTcpOpErr("setsockopt(SO_KEEPALIVE)").WithErr(err)
	}
	if !on {
		return nil
	}

	opts := []struct {
		name  string
		opt   int
		value int
	}{
		{"setsockopt(TCP_KEEPIDLE)", unix.TCP_KEEPIDLE, int(idle / time.Second)},
		{"setsockopt(TCP_KEEPINTVL)", unix.TCP_KEEPINTVL, int(interval / time.Second)},
		{"setsockopt(TCP_KEEPCNT)", unix.TCP_KEEPCNT, count},
	}
	for _, o := range opts {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, o.opt, o.value); err != nil {
			return errs.NewTcpOpErr(o.name).WithErr(err)
		}
	}
	return nil
}

// KeepAlive 返回 keepalive 设置，关闭时时长与 count 均为 0
func (s *TcpStream) KeepAlive() (on bool, idle, interval time.Duration, count int, err error) {
	fd := s.Descriptor()
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE)
	if err != nil {
		return false, 0, 0, 0, errs.NewTcpOpErr("getsockopt(SO_KEEPALIVE)").WithErr(err)
	}
	if v == 0 {
		return false, 0, 0, 0, nil
	}

	secs, err := unix.GetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE)
	if err != nil {
		return false, 0, 0, 0, errs.NewTcpOpErr("getsockopt(TCP_KEEPIDLE)").WithErr(err)
	}
	idle = time.Duration(secs) * time.Second

	if secs, err = unix.GetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL); err != nil {
		return false, 0, 0, 0, errs.NewTcpOpErr("getsockopt(TCP_KEEPINTVL)").WithErr(err)
	}
	interval = time.Duration(secs) * time.Second

	if count, err = unix.GetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT); err != nil {
		return false, 0, 0, 0, errs.NewTcpOpErr("getsockopt(TCP_KEEPCNT)").WithErr(err)
	}
	return true, idle, interval, count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
