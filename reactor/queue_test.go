//go:build linux

package reactor

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/Trinoooo/eggie_net/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestNewReadinessQueueFailed(t *testing.T) {
	_, err := NewReadinessQueue(0, 3)
	assert.EqualValues(t, errs.InvalidParamErrCode, errs.GetCode(err))

	_, err = NewReadinessQueue(8, -1)
	assert.EqualValues(t, errs.InvalidParamErrCode, errs.GetCode(err))
}

func TestReadinessQueueFIFO(t *testing.T) {
	rq, err := NewReadinessQueue(16, newEventfd(t))
	require.Nil(t, err)

	for i := 1; i <= 5; i++ {
		assert.Nil(t, rq.Put(NewEvent(Readable(), Token(i))))
	}
	assert.Equal(t, 5, rq.Len())

	got := rq.Drain(nil)
	require.Len(t, got, 5)
	for i, ev := range got {
		assert.Equal(t, Token(i+1), ev.Token())
	}
	assert.Zero(t, rq.Len())
	assert.Empty(t, rq.Drain(nil))
}

// TestReadinessQueueCoalesce 多次入队只累加 eventfd 计数，一次读取即可全部消费
func TestReadinessQueueCoalesce(t *testing.T) {
	efd := newEventfd(t)
	rq, _ := NewReadinessQueue(16, efd)
	for i := 0; i < 3; i++ {
		assert.Nil(t, rq.Put(NewEvent(Writable(), 9)))
	}
	assert.Nil(t, rq.Wake())

	buf := make([]byte, 8)
	_, err := unix.Read(efd, buf)
	require.Nil(t, err)
	assert.EqualValues(t, 4, binary.NativeEndian.Uint64(buf))

	_, err = unix.Read(efd, buf)
	assert.ErrorIs(t, err, unix.EAGAIN)
}

func TestReadinessQueueEmplace(t *testing.T) {
	rq, _ := NewReadinessQueue(4, newEventfd(t))
	assert.Nil(t, rq.Emplace(Readable(), Edge().Union(Oneshot()), 11))

	got := rq.Drain(nil)
	require.Len(t, got, 1)
	assert.Equal(t, Token(11), got[0].Token())
	assert.Equal(t, Readable(), got[0].Readiness())
	assert.NotZero(t, got[0].Native().Events&unix.EPOLLONESHOT)
}

// TestReadinessQueueBackpressure 队列满时生产者阻塞，消费后恢复
func TestReadinessQueueBackpressure(t *testing.T) {
	rq, _ := NewReadinessQueue(2, newEventfd(t))
	assert.Nil(t, rq.Put(NewEvent(Readable(), 1)))
	assert.Nil(t, rq.Put(NewEvent(Readable(), 2)))

	done := make(chan error, 1)
	go func() {
		done <- rq.Put(NewEvent(Readable(), 3))
	}()

	select {
	case <-done:
		t.Fatal("put on a full queue returned")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Len(t, rq.Drain(nil), 2)
	select {
	case err := <-done:
		assert.Nil(t, err)
	case <-time.After(time.Second):
		t.Fatal("producer still blocked after drain")
	}
	got := rq.Drain(nil)
	require.Len(t, got, 1)
	assert.Equal(t, Token(3), got[0].Token())
}

func TestReadinessQueueCloseReleasesProducers(t *testing.T) {
	rq, _ := NewReadinessQueue(1, newEventfd(t))
	assert.Nil(t, rq.Put(NewEvent(Readable(), 1)))

	var wg sync.WaitGroup
	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- rq.Put(NewEvent(Readable(), 2))
		}()
	}

	time.Sleep(20 * time.Millisecond)
	rq.Close()
	wg.Wait()
	close(results)
	for err := range results {
		assert.EqualValues(t, errs.QueueClosedErrCode, errs.GetCode(err))
	}

	assert.EqualValues(t, errs.QueueClosedErrCode, errs.GetCode(rq.Wake()))
	// queued before close, still drainable
	assert.Len(t, rq.Drain(nil), 1)
}
