package buffer

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferPutRead(t *testing.T) {
	b := New(8)
	defer b.Release()

	b.Put([]byte("hello"))
	assert.Equal(t, 5, b.Len())
	assert.Equal(t, 8, b.Cap())
	assert.Equal(t, 3, b.Available())

	p := make([]byte, 3)
	n, err := b.Read(p)
	assert.Nil(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "hel", string(p))

	// wraps around the end of the ring
	b.PutString("world")
	assert.Equal(t, 7, b.Len())
	assert.Equal(t, 8, b.Cap())
	assert.Equal(t, "loworld", b.TakeString(100))

	n, err = b.Read(p)
	assert.Equal(t, io.EOF, err)
	assert.Zero(t, n)
}

func TestBufferGrowKeepsOrder(t *testing.T) {
	b := New(4)
	defer b.Release()

	b.PutString("abc")
	assert.Equal(t, 2, b.Discard(2))
	b.PutString("defgh")
	assert.GreaterOrEqual(t, b.Cap(), 6)
	assert.Equal(t, "cdefgh", string(b.Peek(b.Len())))

	long := strings.Repeat("x", 10000)
	b.PutString(long)
	assert.Equal(t, 6+len(long), b.Len())
	assert.Equal(t, "cdefgh", b.TakeString(6))
	assert.Equal(t, long, b.TakeString(b.Len()))
}

func TestBufferFind(t *testing.T) {
	b := New(8)
	defer b.Release()

	b.PutString("xxxxxx")
	b.Discard(5)
	b.PutString("ab\ncd")
	assert.Equal(t, 3, b.Find('\n'))
	assert.Equal(t, 0, b.Find('x'))
	assert.Equal(t, -1, b.Find('z'))

	assert.Equal(t, "xab\n", b.TakeString(b.Find('\n')+1))
	assert.Equal(t, -1, b.Find('\n'))
}

func TestBufferPeekDiscard(t *testing.T) {
	b := New(0)
	defer b.Release()

	b.PutString("peek")
	assert.Equal(t, "pe", string(b.Peek(2)))
	assert.Equal(t, 4, b.Len())
	assert.Equal(t, 4, b.Discard(10))
	assert.Zero(t, b.Discard(1))
	assert.Empty(t, b.Peek(3))

	b.PutString("again")
	b.Reset()
	assert.Zero(t, b.Len())
}
