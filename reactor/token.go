//go:build linux

package reactor

import (
	"math"
	"math/bits"

	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/errs"
	"go.uber.org/zap"
)

const bitsPerWord = 32

// TokenPool 用位图分配 [0, Cap()) 内的稠密 token，某位为 1 当且仅当该 token 已分配
//
// 非并发安全，跨协程共用时调用方自行串行化
//
// 不检测重复释放：若 token 已被重新分配，再释放一次会导致它被第二次发出，
// 而第一个持有者仍在使用
type TokenPool struct {
	capacity uint64
	idx      int // 上次分配成功的字
	mem      []uint32
	reserved bool
}

// NewTokenPool 分配范围 [0, capacity)
func NewTokenPool(capacity int) (*TokenPool, error) {
	if capacity <= 0 || uint64(capacity) > math.MaxUint32 {
		e := errs.NewInvalidParamErr()
		reactorLogger.Error(e.Error(), zap.String(consts.LogFieldParams, "capacity"), zap.Int(consts.LogFieldValue, capacity))
		return nil, e
	}

	words := (capacity + bitsPerWord - 1) / bitsPerWord
	tp := &TokenPool{
		capacity: uint64(capacity),
		mem:      make([]uint32, words),
	}
	// 末字多出来的位预先置 1，容量恰好为 capacity
	if tail := capacity % bitsPerWord; tail != 0 {
		tp.mem[words-1] = ^uint32(0) << tail
	}
	return tp, nil
}

// NewReactorTokenPool 分配出的 token 可直接注册到 Poller，WakeupToken 永久占用，不会发出
func NewReactorTokenPool(capacity int) (*TokenPool, error) {
	tp, err := NewTokenPool(capacity)
	if err != nil {
		return nil, err
	}
	tp.mem[0] |= 1 << uint64(WakeupToken)
	tp.reserved = true
	if !tp.IsAllocated(WakeupToken) {
		panic("reactor: wakeup token must stay reserved")
	}
	return tp, nil
}

// Alloc 从上次成功的字开始扫描，取第一个空闲位
func (tp *TokenPool) Alloc() (Token, error) {
	start := tp.idx
	for {
		if w := tp.mem[tp.idx]; w != math.MaxUint32 {
			off := bits.TrailingZeros32(^w)
			tp.mem[tp.idx] |= 1 << off
			return Token(uint64(tp.idx)*bitsPerWord + uint64(off)), nil
		}
		tp.idx = (tp.idx + 1) % len(tp.mem)
		if tp.idx == start {
			return 0, errs.NewTokenExhaustedErr()
		}
	}
}

// Free 归还 tok
func (tp *TokenPool) Free(tok Token) error {
	if uint64(tok) >= tp.capacity || (tp.reserved && tok == WakeupToken) {
		e := errs.NewInvalidParamErr()
		reactorLogger.Error(e.Error(), zap.String(consts.LogFieldParams, "token"), zap.Uint64(consts.LogFieldValue, uint64(tok)))
		return e
	}
	pos, off := uint64(tok)/bitsPerWord, uint64(tok)%bitsPerWord
	tp.mem[pos] &^= 1 << off
	return nil
}

func (tp *TokenPool) IsAllocated(tok Token) bool {
	if uint64(tok) >= tp.capacity {
		return false
	}
	pos, off := uint64(tok)/bitsPerWord, uint64(tok)%bitsPerWord
	return tp.mem[pos]&(1<<off) != 0
}

func (tp *TokenPool) Cap() int {
	return int(tp.capacity)
}
