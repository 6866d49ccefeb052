//go:build linux

package handle

import (
	"net"
	"strconv"
	"time"

	"github.com/Trinoooo/eggie_net/buffer"
	"github.com/Trinoooo/eggie_net/connections"
	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/errs"
	"github.com/Trinoooo/eggie_net/logs"
	"github.com/Trinoooo/eggie_net/reactor"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

const streamToken reactor.Token = 1

var clientLogger = logs.NewComponent(consts.ComponentClient)

// ClientWrapper 一条连接配一个 poller，请求一问一答
type ClientWrapper struct {
	stream  *connections.TcpStream
	poller  *reactor.Poller
	in      *buffer.Buffer
	out     *buffer.Buffer
	events  []reactor.Event
	timeout time.Duration
}

func Dial(host string, port int, timeout time.Duration) (*ClientWrapper, error) {
	stream, err := connections.Dial(host, strconv.Itoa(port), timeout)
	if err != nil {
		clientLogger.Error(err.Error(), zap.String(consts.LogFieldRemote, net.JoinHostPort(host, strconv.Itoa(port))))
		return nil, err
	}

	poller, err := reactor.NewPoller(nil)
	if err != nil {
		if e := stream.Close(); e != nil {
			err = pkgerrors.Wrap(err, e.Error())
		}
		return nil, err
	}
	if err = poller.Register(stream, streamToken, reactor.Readable(), reactor.Level()); err != nil {
		if e := stream.Close(); e != nil {
			err = pkgerrors.Wrap(err, e.Error())
		}
		if e := poller.Close(); e != nil {
			err = pkgerrors.Wrap(err, e.Error())
		}
		return nil, err
	}

	return &ClientWrapper{
		stream:  stream,
		poller:  poller,
		in:      buffer.New(consts.DefaultBufferSize),
		out:     buffer.New(consts.DefaultBufferSize),
		events:  make([]reactor.Event, 4),
		timeout: timeout,
	}, nil
}

// HandleInput 发送一行，等待并返回一行响应（不含换行）
func (cw *ClientWrapper) HandleInput(line string) (string, error) {
	cw.out.PutString(line)
	cw.out.Put([]byte{'\n'})
	if err := cw.flush(); err != nil {
		return "", err
	}

	deadline := time.Now().Add(cw.timeout)
	for {
		if idx := cw.in.Find('\n'); idx >= 0 {
			resp := cw.in.TakeString(idx)
			cw.in.Discard(1)
			return resp, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", errs.NewReadSocketErr().WithOp("wait response").WithErr(errTimeout)
		}
		if _, err := cw.wait(remaining); err != nil {
			return "", err
		}

		n, err := cw.stream.ReadBuffer(cw.in)
		if err != nil {
			if connections.IsWouldBlock(err) {
				continue
			}
			return "", err
		}
		if n == 0 {
			return "", errs.NewReadSocketErr().WithOp("wait response").WithErr(errPeerClosed)
		}
	}
}

// flush 写不完时临时关注可写事件，写完恢复只关注可读
func (cw *ClientWrapper) flush() error {
	for cw.out.Len() > 0 {
		_, err := cw.stream.WriteBuffer(cw.out)
		if err == nil {
			continue
		}
		if !connections.IsWouldBlock(err) {
			return err
		}

		if err = cw.poller.Reregister(cw.stream, streamToken, reactor.Readable().Union(reactor.Writable()), reactor.Level()); err != nil {
			return err
		}
		if _, err = cw.wait(cw.timeout); err != nil {
			return err
		}
		if err = cw.poller.Reregister(cw.stream, streamToken, reactor.Readable(), reactor.Level()); err != nil {
			return err
		}
	}
	return nil
}

func (cw *ClientWrapper) wait(timeout time.Duration) (reactor.Ready, error) {
	n, err := cw.poller.Poll(cw.events, timeout)
	if err != nil {
		return reactor.EmptyReady(), err
	}
	ready := reactor.EmptyReady()
	for _, ev := range cw.events[:n] {
		if ev.Token() == streamToken {
			ready = ready.Union(ev.Readiness())
		}
	}
	return ready, nil
}

func (cw *ClientWrapper) Close() error {
	var result error
	if err := cw.poller.Deregister(cw.stream); err != nil {
		result = err
	}
	if err := cw.stream.Close(); err != nil {
		result = wrap(result, err)
	}
	if err := cw.poller.Close(); err != nil {
		result = wrap(result, err)
	}
	cw.in.Release()
	cw.out.Release()
	return result
}

func wrap(result, err error) error {
	if result == nil {
		return err
	}
	return pkgerrors.Wrap(result, err.Error())
}

var (
	errTimeout    = pkgerrors.New("timeout")
	errPeerClosed = pkgerrors.New("peer closed")
)
