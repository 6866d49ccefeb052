//go:build linux

package server

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Trinoooo/eggie_net/config"
	"github.com/Trinoooo/eggie_net/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, handler string) *ReactorServer {
	t.Helper()
	cfg := config.Default()
	cfg.Port = 0
	cfg.Handler = handler
	cfg.Workers = 4

	rs, err := NewReactorServer(cfg)
	require.Nil(t, err)

	served := make(chan error, 1)
	go func() {
		served <- rs.Serve()
	}()
	t.Cleanup(func() {
		assert.Nil(t, rs.Close())
		select {
		case err := <-served:
			assert.Nil(t, err)
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after Close")
		}
	})
	return rs
}

func dial(t *testing.T, rs *ReactorServer) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", rs.Addr().String(), time.Second)
	require.Nil(t, err)
	require.Nil(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// TestReactorServerUpper 经过 poller、工作协程池、completion 回到 reactor 的完整往返
func TestReactorServerUpper(t *testing.T) {
	rs := startServer(t, "upper")
	conn := dial(t, rs)

	_, err := conn.Write([]byte("hello\nworld\n"))
	require.Nil(t, err)

	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	require.Nil(t, err)
	assert.Equal(t, "HELLO\n", line)
	line, err = r.ReadString('\n')
	require.Nil(t, err)
	assert.Equal(t, "WORLD\n", line)
}

func TestReactorServerManyClients(t *testing.T) {
	rs := startServer(t, "echo")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			conn := dial(t, rs)
			r := bufio.NewReader(conn)
			for j := 0; j < 20; j++ {
				msg := fmt.Sprintf("client %d message %d", id, j)
				if _, err := conn.Write([]byte(msg + "\n")); !assert.Nil(t, err) {
					return
				}
				line, err := r.ReadString('\n')
				if !assert.Nil(t, err) {
					return
				}
				assert.Equal(t, msg+"\n", line)
			}
		}(i)
	}
	wg.Wait()

	families, err := rs.Metrics().Registry.Gather()
	require.Nil(t, err)
	for _, mf := range families {
		if mf.GetName() == "eggie_net_connection_accept_total" {
			assert.Equal(t, 16.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
		if mf.GetName() == "eggie_net_request_total" {
			assert.Equal(t, 320.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
}

// TestReactorServerHalfClose 对端关闭写端后，末尾没有换行的请求也会被处理，随后服务端关闭连接
func TestReactorServerHalfClose(t *testing.T) {
	rs := startServer(t, "upper")
	conn := dial(t, rs)

	_, err := conn.Write([]byte("first\nlast"))
	require.Nil(t, err)
	require.Nil(t, conn.(*net.TCPConn).CloseWrite())

	got, err := io.ReadAll(conn)
	require.Nil(t, err)
	assert.Equal(t, "FIRST\nLAST\n", string(got))
}

func TestReactorServerRequestTooLarge(t *testing.T) {
	rs := startServer(t, "echo")
	conn := dial(t, rs)

	big := make([]byte, 80*1024)
	for i := range big {
		big[i] = 'a'
	}
	// the server hangs up without answering
	_, _ = conn.Write(big)
	got, _ := io.ReadAll(conn)
	assert.Empty(t, got)
}

func TestReactorServerCloseWithoutServe(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 0
	rs, err := NewReactorServer(cfg)
	require.Nil(t, err)

	assert.Nil(t, rs.Close())
	assert.Nil(t, rs.Close())
	assert.EqualValues(t, errs.ServerClosedErrCode, errs.GetCode(rs.Serve()))
}

// TestReactorServerServeCloseRace Serve 与 Close 同时开始，无论谁先拿到状态，
// Close 都要返回且监听 fd、poller 都已释放
func TestReactorServerServeCloseRace(t *testing.T) {
	const rounds = 300
	cfg := config.Default()
	cfg.Port = 0
	cfg.Workers = 2

	for i := 0; i < rounds; i++ {
		rs, err := NewReactorServer(cfg)
		require.Nil(t, err)

		start := make(chan struct{})
		served := make(chan error, 1)
		closed := make(chan error, 1)
		go func() {
			<-start
			served <- rs.Serve()
		}()
		go func() {
			<-start
			closed <- rs.Close()
		}()
		close(start)

		select {
		case err := <-closed:
			require.Nil(t, err, "round %d", i)
		case <-time.After(5 * time.Second):
			t.Fatalf("round %d: Close blocked", i)
		}
		select {
		case err := <-served:
			if err != nil {
				assert.EqualValues(t, errs.ServerClosedErrCode, errs.GetCode(err), "round %d", i)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("round %d: Serve did not return", i)
		}

		assert.Equal(t, -1, rs.listener.Descriptor(), "round %d", i)
		assert.EqualValues(t, errs.PollerClosedErrCode, errs.GetCode(rs.poller.Wakeup()), "round %d", i)
	}
}

func TestNewReactorServerFailed(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 0
	cfg.Handler = "reverse"
	_, err := NewReactorServer(cfg)
	assert.EqualValues(t, errs.InvalidParamErrCode, errs.GetCode(err))

	cfg = config.Default()
	cfg.Workers = 0
	_, err = NewReactorServer(cfg)
	assert.EqualValues(t, errs.InvalidParamErrCode, errs.GetCode(err))
}

func TestNewReactorServerAddrInUse(t *testing.T) {
	rs := startServer(t, "echo")
	cfg := config.Default()
	cfg.Port = int(rs.Addr().Port())
	_, err := NewReactorServer(cfg)
	assert.EqualValues(t, errs.BindErrCode, errs.GetCode(err))
}
