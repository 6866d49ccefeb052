//go:build linux

package server

import (
	"sync"

	"github.com/Trinoooo/eggie_net/buffer"
	"github.com/Trinoooo/eggie_net/config"
	"github.com/Trinoooo/eggie_net/connections"
	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/errs"
	"github.com/Trinoooo/eggie_net/reactor"
	"github.com/Trinoooo/eggie_net/utils"
	"github.com/bytedance/gopkg/util/gopool"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ReactorServer 基于单个 reactor.Poller 的按行协议 TCP 服务
//
// 监听 fd、连接和 token 池只由 Serve 所在协程访问
// 处理器跑在 gopool 上，通过 completion Registration 把响应交回 reactor；
// Close 通过 stop Registration 通知 reactor，连接状态因此不需要加锁
type ReactorServer struct {
	cfg      *config.Config
	poller   *reactor.Poller
	tokens   *reactor.TokenPool
	listener *connections.TcpListener
	addr     *connections.Addr
	handler  HandleFunc
	pool     gopool.Pool

	conns   map[reactor.Token]*connection
	nextGen uint64

	listenerToken reactor.Token
	stopToken     reactor.Token
	doneToken     reactor.Token
	stopReg       *reactor.Registration
	stop          *reactor.SetReadiness
	doneReg       *reactor.Registration
	done          *reactor.SetReadiness

	// 工作协程写入、reactor 取走的 completion
	mailboxMu sync.Mutex
	mailbox   []completion
	signalled *atomic.Bool

	workers       sync.WaitGroup
	state         *atomic.Int32 // stateIdle -> stateServing | stateReleased，由一次 CAS 决定
	closed        *atomic.Bool
	exited        chan struct{}
	metricsHelper *MetricsHelper
}

type connection struct {
	token  reactor.Token
	gen    uint64
	stream *connections.TcpStream
	peer   string
	in     *buffer.Buffer
	out    *buffer.Buffer

	busy     bool // 有请求在工作协程中，一次只处理一个以保证响应有序
	eof      bool // 对端已关闭写端
	writable bool // 已关注可写
}

const (
	stateIdle int32 = iota
	stateServing
	stateReleased // Serve 之前就被 Close
)

type completion struct {
	token reactor.Token
	gen   uint64
	resp  []byte
}

func NewReactorServer(cfg *config.Config) (*ReactorServer, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	handler, err := NewHandler(cfg.Handler)
	if err != nil {
		return nil, err
	}

	rs := &ReactorServer{
		cfg:           cfg,
		handler:       handler,
		pool:          gopool.NewPool("handlers", int32(cfg.Workers), gopool.NewConfig()),
		conns:         make(map[reactor.Token]*connection),
		signalled:     atomic.NewBool(false),
		state:         atomic.NewInt32(stateIdle),
		closed:        atomic.NewBool(false),
		exited:        make(chan struct{}),
		metricsHelper: NewMetricsHelper(cfg.PushURL, cfg.PushInterval),
	}
	rs.stopReg, rs.stop = reactor.NewRegistration()
	rs.doneReg, rs.done = reactor.NewRegistration()

	if err = rs.init(); err != nil {
		if e := rs.release(); e != nil {
			err = errors.Wrap(err, e.Error())
		}
		serverLogger.Error(err.Error())
		return nil, err
	}
	return rs, nil
}

func (rs *ReactorServer) init() error {
	var err error
	rs.poller, err = reactor.NewPoller(&reactor.Config{
		QueueCapacity: rs.cfg.QueueCapacity,
		Registerer:    rs.metricsHelper.Registry,
	})
	if err != nil {
		return err
	}

	if rs.tokens, err = reactor.NewReactorTokenPool(rs.cfg.TokenCapacity); err != nil {
		return err
	}
	for _, tok := range []*reactor.Token{&rs.listenerToken, &rs.stopToken, &rs.doneToken} {
		if *tok, err = rs.tokens.Alloc(); err != nil {
			return err
		}
	}

	addr, err := connections.ParseAddr(rs.cfg.Addr())
	if err != nil {
		return err
	}
	if rs.listener, err = connections.Bind(addr, rs.cfg.Backlog); err != nil {
		return err
	}
	if rs.addr, err = rs.listener.LocalAddr(); err != nil {
		return err
	}

	if err = rs.poller.Register(rs.listener, rs.listenerToken, reactor.Readable(), reactor.Edge()); err != nil {
		return err
	}
	if err = rs.poller.Register(rs.stopReg, rs.stopToken, reactor.Readable(), reactor.Edge().Union(reactor.Oneshot())); err != nil {
		return err
	}
	return rs.poller.Register(rs.doneReg, rs.doneToken, reactor.Readable(), reactor.Edge())
}

// Addr 监听地址，配置端口为 0 时返回实际端口
func (rs *ReactorServer) Addr() *connections.Addr {
	return rs.addr
}

func (rs *ReactorServer) Metrics() *MetricsHelper {
	return rs.metricsHelper
}

// Serve 运行 reactor，直到 Close 或 poll 失败
func (rs *ReactorServer) Serve() error {
	if !rs.state.CAS(stateIdle, stateServing) {
		return errs.NewServerClosedErr()
	}
	defer close(rs.exited)

	serverLogger.Info("serving", zap.String(consts.LogFieldLocal, rs.addr.String()), zap.String("handler", rs.cfg.Handler))

	events := make([]reactor.Event, rs.cfg.EventBuffer)
	user := make([]reactor.Event, 0, rs.cfg.EventBuffer)
	for {
		n, err := rs.poller.Poll(events, reactor.NoTimeout)
		if err != nil {
			serverLogger.Error("poll failed, shutting down", zap.Error(err))
			if e := rs.shutdown(); e != nil {
				err = errors.Wrap(err, e.Error())
			}
			return err
		}

		stopping := false
		for _, ev := range events[:n] {
			switch {
			case ev.IsWakeup():
				if user, err = rs.poller.DrainUserEvents(user[:0]); err != nil {
					serverLogger.Error("drain user events failed", zap.Error(err))
					continue
				}
				for _, uev := range user {
					switch uev.Token() {
					case rs.stopToken:
						stopping = true
					case rs.doneToken:
						rs.onCompletions()
					}
				}
			case ev.Token() == rs.listenerToken:
				rs.accept()
			default:
				rs.onConnEvent(ev)
			}
		}

		if stopping {
			serverLogger.Info("stop requested")
			return rs.shutdown()
		}
	}
}

// Close 停止 Serve 并等待资源释放完毕，未开始 Serve 时直接释放
func (rs *ReactorServer) Close() error {
	if !rs.closed.CAS(false, true) {
		return nil
	}
	// Serve 尚未开始：抢占 idle 状态，之后 Serve 不会再启动
	if rs.state.CAS(stateIdle, stateReleased) {
		return rs.release()
	}
	// QueueClosed 表示 Serve 已经自行退出
	if err := rs.stop.SetReadiness(reactor.Readable()); err != nil && errs.GetCode(err) != errs.QueueClosedErrCode {
		return err
	}
	<-rs.exited
	return nil
}

func (rs *ReactorServer) accept() {
	for {
		stream, peer, err := rs.listener.Accept()
		if err != nil {
			if !connections.IsWouldBlock(err) {
				serverLogger.Error(err.Error())
			}
			return
		}
		rs.metricsHelper.ConnectionAcceptCounter.Inc()

		tok, err := rs.tokens.Alloc()
		if err != nil {
			rs.metricsHelper.ConnectionRejectCounter.Inc()
			serverLogger.Warn(err.Error(), zap.String(consts.LogFieldRemote, peer.String()))
			_ = stream.Close()
			continue
		}

		if err = rs.poller.Register(stream, tok, reactor.Readable(), reactor.Edge()); err != nil {
			if e := stream.Close(); e != nil {
				err = errors.Wrap(err, e.Error())
			}
			serverLogger.Error(err.Error(), zap.String(consts.LogFieldRemote, peer.String()))
			_ = rs.tokens.Free(tok)
			continue
		}

		rs.nextGen++
		rs.conns[tok] = &connection{
			token:  tok,
			gen:    rs.nextGen,
			stream: stream,
			peer:   peer.String(),
			in:     buffer.New(consts.DefaultBufferSize),
			out:    buffer.New(consts.DefaultBufferSize),
		}
		rs.metricsHelper.LiveConnections.Inc()
		serverLogger.Debug("accepted", zap.String(consts.LogFieldRemote, peer.String()), zap.Uint64(consts.LogFieldToken, uint64(tok)), zap.Int(consts.LogFieldFd, stream.Descriptor()))
	}
}

func (rs *ReactorServer) onConnEvent(ev reactor.Event) {
	c, ok := rs.conns[ev.Token()]
	if !ok {
		return
	}
	r := ev.Readiness()
	if r.IsError() {
		rs.closeConn(c, "socket error")
		return
	}

	if r.IsReadable() || r.IsHangUp() {
		// 边沿触发：读到 socket 没有数据为止
		for !c.eof {
			n, err := c.stream.ReadBuffer(c.in)
			if err != nil {
				if connections.IsWouldBlock(err) {
					break
				}
				rs.closeConn(c, err.Error())
				return
			}
			if n == 0 {
				c.eof = true
				break
			}
			rs.metricsHelper.BytesRead.Add(float64(n))
		}
		if c.in.Len() > consts.MaxRequestSize && c.in.Find('\n') < 0 {
			rs.closeConn(c, "request too large")
			return
		}
		rs.dispatch(c)
	}

	if r.IsWritable() && !rs.flush(c) {
		return
	}
	rs.maybeFinish(c)
}

// dispatch 把下一行完整请求交给工作协程
func (rs *ReactorServer) dispatch(c *connection) {
	if c.busy || c.in.Len() == 0 {
		return
	}
	idx := c.in.Find('\n')
	var req []byte
	switch {
	case idx >= 0:
		req = c.in.Peek(idx)
		c.in.Discard(idx + 1)
	case c.eof:
		// 结尾没有换行的请求
		req = c.in.Peek(c.in.Len())
		c.in.Reset()
	default:
		return
	}

	c.busy = true
	rs.metricsHelper.RequestCounter.Inc()
	tok, gen := c.token, c.gen
	rs.workers.Add(1)
	rs.pool.Go(func() {
		defer rs.workers.Done()
		var resp []byte
		err := utils.SafeCall(func() (err error) {
			resp, err = rs.handler(req)
			return err
		})
		if err != nil {
			resp = []byte("ERR " + err.Error())
		}
		rs.complete(completion{token: tok, gen: gen, resp: resp})
	})
}

// complete 运行在工作协程上
func (rs *ReactorServer) complete(cp completion) {
	utils.WrapLock(&rs.mailboxMu, func() {
		rs.mailbox = append(rs.mailbox, cp)
	})

	// 一次未处理的通知覆盖 reactor 取走 mailbox 之前追加的所有 completion
	if rs.signalled.CAS(false, true) {
		if err := rs.done.SetReadiness(reactor.Readable()); err != nil {
			serverLogger.Debug("completion dropped", zap.Error(err))
		}
	}
}

func (rs *ReactorServer) onCompletions() {
	rs.signalled.Store(false)
	var batch []completion
	utils.WrapLock(&rs.mailboxMu, func() {
		batch, rs.mailbox = rs.mailbox, nil
	})

	for _, cp := range batch {
		c, ok := rs.conns[cp.token]
		// 请求发出后 token 已释放，可能已被重新分配
		if !ok || c.gen != cp.gen {
			continue
		}
		c.busy = false
		c.out.Put(cp.resp)
		c.out.Put([]byte{'\n'})
		if !rs.flush(c) {
			continue
		}
		rs.dispatch(c)
		rs.maybeFinish(c)
	}
}

// flush 尽量写出 out，只在还有剩余时关注可写，c 被关闭时返回 false
func (rs *ReactorServer) flush(c *connection) bool {
	for c.out.Len() > 0 {
		n, err := c.stream.WriteBuffer(c.out)
		if err != nil {
			if connections.IsWouldBlock(err) {
				break
			}
			rs.closeConn(c, err.Error())
			return false
		}
		rs.metricsHelper.BytesWritten.Add(float64(n))
	}

	want := c.out.Len() > 0
	if want == c.writable {
		return true
	}
	interest := reactor.Readable()
	if want {
		interest = interest.Union(reactor.Writable())
	}
	if err := rs.poller.Reregister(c.stream, c.token, interest, reactor.Edge()); err != nil {
		rs.closeConn(c, err.Error())
		return false
	}
	c.writable = want
	return true
}

// maybeFinish 对端已结束且响应全部写出时关闭 c
func (rs *ReactorServer) maybeFinish(c *connection) {
	if c.eof && !c.busy && c.in.Len() == 0 && c.out.Len() == 0 {
		rs.closeConn(c, "peer closed")
	}
}

func (rs *ReactorServer) closeConn(c *connection, reason string) {
	if _, ok := rs.conns[c.token]; !ok {
		return
	}
	delete(rs.conns, c.token)

	if err := rs.poller.Deregister(c.stream); err != nil {
		serverLogger.Debug(err.Error(), zap.Uint64(consts.LogFieldToken, uint64(c.token)))
	}
	if err := c.stream.Close(); err != nil {
		serverLogger.Warn(err.Error(), zap.String(consts.LogFieldRemote, c.peer))
	}
	if err := rs.tokens.Free(c.token); err != nil {
		serverLogger.Warn(err.Error())
	}
	c.in.Release()
	c.out.Release()
	rs.metricsHelper.LiveConnections.Dec()
	serverLogger.Debug("connection closed", zap.String(consts.LogFieldRemote, c.peer), zap.String("reason", reason))
}

// shutdown 在 Serve 返回时于 reactor 协程执行
func (rs *ReactorServer) shutdown() error {
	rs.closed.Store(true)
	for _, c := range rs.conns {
		rs.closeConn(c, "server shutdown")
	}
	return rs.release()
}

// release 关闭 NewReactorServer 打开的所有资源
// 先关 poller 再等工作协程，阻塞在满队列上的协程才能返回
func (rs *ReactorServer) release() error {
	var result error
	wrap := func(err error) {
		if err == nil {
			return
		}
		if result == nil {
			result = err
			return
		}
		result = errors.Wrap(result, err.Error())
	}

	if rs.listener != nil {
		wrap(rs.listener.Close())
	}
	if rs.poller != nil {
		wrap(rs.poller.Close())
	}
	rs.workers.Wait()
	rs.metricsHelper.Stop()
	serverLogger.Info("server released")
	return result
}
