//go:build linux

package server

import (
	"strings"
	"testing"

	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlers(t *testing.T) {
	resp, err := EchoHandler([]byte("Hi"))
	assert.Nil(t, err)
	assert.Equal(t, "Hi", string(resp))

	resp, err = UpperHandler([]byte("Hi"))
	assert.Nil(t, err)
	assert.Equal(t, "HI", string(resp))

	h, err := NewHandler("upper")
	require.Nil(t, err)
	resp, err = h([]byte("abc"))
	assert.Nil(t, err)
	assert.Equal(t, "ABC", string(resp))

	_, err = NewHandler("nope")
	assert.EqualValues(t, errs.InvalidParamErrCode, errs.GetCode(err))
}

func TestChainOrder(t *testing.T) {
	var trace []string
	mw := func(name string) MiddlewareFunc {
		return func(next HandleFunc) HandleFunc {
			return func(req []byte) ([]byte, error) {
				trace = append(trace, name)
				return next(req)
			}
		}
	}

	h := Chain(EchoHandler, mw("outer"), mw("inner"))
	_, err := h([]byte("x"))
	assert.Nil(t, err)
	assert.Equal(t, []string{"outer", "inner"}, trace)
}

func TestParamsValidateMw(t *testing.T) {
	h := ParamsValidateMw(EchoHandler)
	_, err := h([]byte(strings.Repeat("a", consts.MaxRequestSize+1)))
	assert.EqualValues(t, errs.InvalidParamErrCode, errs.GetCode(err))

	resp, err := h([]byte("ok"))
	assert.Nil(t, err)
	assert.Equal(t, "ok", string(resp))
}
