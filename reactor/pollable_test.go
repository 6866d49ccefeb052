//go:build linux

package reactor

import (
	"errors"
	"testing"
	"time"

	"github.com/Trinoooo/eggie_net/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// TestPolledFdLevel 水平触发：数据未读走之前每次 poll 都会上报
func TestPolledFdLevel(t *testing.T) {
	p := newTestPoller(t)
	r, w := newPipe(t)
	require.Nil(t, p.Register(r, 1, Readable(), Level()))

	writeByte(t, w)
	events := make([]Event, 8)
	for i := 0; i < 2; i++ {
		n, err := p.Poll(events, time.Second)
		assert.Nil(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, Token(1), events[0].Token())
		assert.True(t, events[0].Readiness().IsReadable())
	}
}

// TestPolledFdEdge 边缘触发：同一次写入只上报一次
func TestPolledFdEdge(t *testing.T) {
	p := newTestPoller(t)
	r, w := newPipe(t)
	require.Nil(t, p.Register(r, 2, Readable(), Edge()))

	writeByte(t, w)
	events := make([]Event, 8)
	n, err := p.Poll(events, time.Second)
	assert.Nil(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, Token(2), events[0].Token())

	n, err = p.Poll(events, 50*time.Millisecond)
	assert.Nil(t, err)
	assert.Zero(t, n)

	writeByte(t, w)
	n, err = p.Poll(events, time.Second)
	assert.Nil(t, err)
	assert.Equal(t, 1, n)
}

func TestPolledFdOneshot(t *testing.T) {
	p := newTestPoller(t)
	r, w := newPipe(t)
	require.Nil(t, p.Register(r, 3, Readable(), Level().Union(Oneshot())))

	writeByte(t, w)
	events := make([]Event, 8)
	n, err := p.Poll(events, time.Second)
	assert.Nil(t, err)
	assert.Equal(t, 1, n)

	// disarmed although the byte is still unread
	n, err = p.Poll(events, 50*time.Millisecond)
	assert.Nil(t, err)
	assert.Zero(t, n)

	require.Nil(t, p.Reregister(r, 4, Readable(), Level().Union(Oneshot())))
	n, err = p.Poll(events, time.Second)
	assert.Nil(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, Token(4), events[0].Token())
}

func TestPolledFdHangUp(t *testing.T) {
	p := newTestPoller(t)
	r, w := newPipe(t)
	require.Nil(t, p.Register(r, 5, Readable(), Level()))
	require.Nil(t, unix.Close(w))

	events := make([]Event, 8)
	n, err := p.Poll(events, time.Second)
	assert.Nil(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, events[0].Readiness().IsHangUp())
}

func TestPolledFdCtlErrors(t *testing.T) {
	p := newTestPoller(t)
	r, _ := newPipe(t)

	require.Nil(t, p.Register(r, 1, Readable(), Level()))
	err := p.Register(r, 1, Readable(), Level())
	assert.EqualValues(t, errs.DescriptorOpErrCode, errs.GetCode(err))
	assert.True(t, errors.Is(err, unix.EEXIST))

	assert.Nil(t, p.Deregister(r))
	err = p.Deregister(r)
	assert.EqualValues(t, errs.DescriptorOpErrCode, errs.GetCode(err))
	assert.True(t, errors.Is(err, unix.ENOENT))

	err = p.Reregister(r, 1, Writable(), Level())
	assert.True(t, errors.Is(err, unix.ENOENT))
}

func TestPolledFdClose(t *testing.T) {
	p := newTestPoller(t)
	r, _ := newPipe(t)

	assert.Nil(t, r.Close())
	assert.Nil(t, r.Close())
	assert.Equal(t, -1, r.Descriptor())

	err := p.Register(r, 1, Readable(), Level())
	assert.EqualValues(t, errs.DescriptorOpErrCode, errs.GetCode(err))
	assert.True(t, errors.Is(err, unix.EBADF))
}
