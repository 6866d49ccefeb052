//go:build linux

package reactor

import (
	"math/rand"
	"testing"

	"github.com/Trinoooo/eggie_net/errs"
	"github.com/stretchr/testify/assert"
)

func TestNewTokenPoolFailed(t *testing.T) {
	_, err := NewTokenPool(0)
	assert.EqualValues(t, errs.InvalidParamErrCode, errs.GetCode(err))

	_, err = NewTokenPool(-1)
	assert.EqualValues(t, errs.InvalidParamErrCode, errs.GetCode(err))
}

// TestTokenPoolExhausted 容量 1000 的池第 1001 次分配失败，前 1000 个 token 恰好覆盖 [0, 1000)
func TestTokenPoolExhausted(t *testing.T) {
	tp, err := NewTokenPool(1000)
	assert.Nil(t, err)
	assert.Equal(t, 1000, tp.Cap())

	seen := make(map[Token]struct{}, 1000)
	for i := 0; i < 1024; i++ {
		tok, err := tp.Alloc()
		if i < 1000 {
			assert.Nil(t, err)
			assert.Less(t, uint64(tok), uint64(1000))
			seen[tok] = struct{}{}
			continue
		}
		assert.EqualValues(t, errs.TokenExhaustedErrCode, errs.GetCode(err), "alloc #%d", i)
	}
	assert.Len(t, seen, 1000)
}

func TestTokenPoolFreeThenAlloc(t *testing.T) {
	tp, _ := NewTokenPool(64)
	for i := 0; i < 64; i++ {
		_, err := tp.Alloc()
		assert.Nil(t, err)
	}
	_, err := tp.Alloc()
	assert.EqualValues(t, errs.TokenExhaustedErrCode, errs.GetCode(err))

	assert.Nil(t, tp.Free(37))
	assert.False(t, tp.IsAllocated(37))

	tok, err := tp.Alloc()
	assert.Nil(t, err)
	assert.EqualValues(t, 37, tok)
	assert.True(t, tp.IsAllocated(37))
}

func TestTokenPoolFreeOutOfRange(t *testing.T) {
	tp, _ := NewTokenPool(10)
	assert.EqualValues(t, errs.InvalidParamErrCode, errs.GetCode(tp.Free(10)))
	assert.False(t, tp.IsAllocated(10))
}

// TestTokenPoolNoLiveDuplicates 随机交替分配与释放，任意时刻存活 token 互不相同
func TestTokenPoolNoLiveDuplicates(t *testing.T) {
	const capacity = 300
	tp, _ := NewTokenPool(capacity)
	rnd := rand.New(rand.NewSource(42))

	live := make(map[Token]struct{})
	order := make([]Token, 0, capacity)
	for i := 0; i < 20000; i++ {
		if len(order) > 0 && (len(order) == capacity || rnd.Intn(3) == 0) {
			j := rnd.Intn(len(order))
			tok := order[j]
			order[j] = order[len(order)-1]
			order = order[:len(order)-1]
			delete(live, tok)
			assert.Nil(t, tp.Free(tok))
			continue
		}

		tok, err := tp.Alloc()
		if !assert.Nil(t, err) {
			return
		}
		_, dup := live[tok]
		if !assert.False(t, dup, "token %d issued twice", tok) {
			return
		}
		live[tok] = struct{}{}
		order = append(order, tok)
	}
}

func TestReactorTokenPoolSkipsWakeupToken(t *testing.T) {
	tp, err := NewReactorTokenPool(33)
	assert.Nil(t, err)
	assert.True(t, tp.IsAllocated(WakeupToken))

	for i := 0; i < 32; i++ {
		tok, err := tp.Alloc()
		assert.Nil(t, err)
		assert.NotEqual(t, WakeupToken, tok)
	}
	_, err = tp.Alloc()
	assert.EqualValues(t, errs.TokenExhaustedErrCode, errs.GetCode(err))

	assert.EqualValues(t, errs.InvalidParamErrCode, errs.GetCode(tp.Free(WakeupToken)))
	assert.True(t, tp.IsAllocated(WakeupToken))
}

// TestTokenPoolDoubleFreeHazard 重复释放不会被发现：同一个 token 会被再次发出
func TestTokenPoolDoubleFreeHazard(t *testing.T) {
	tp, _ := NewTokenPool(2)
	a, _ := tp.Alloc()
	assert.Nil(t, tp.Free(a))
	b, _ := tp.Alloc()
	assert.Equal(t, a, b)

	// a's holder frees again while b still holds the same token
	assert.Nil(t, tp.Free(a))
	c, err := tp.Alloc()
	assert.Nil(t, err)
	assert.Equal(t, b, c)
}
