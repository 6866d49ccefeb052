//go:build linux

package server

import (
	"bytes"

	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/errs"
	"go.uber.org/zap"
)

// HandleFunc 把一行请求（不含换行）处理成一行响应，运行在工作协程上，不会在 reactor 上执行
type HandleFunc func(req []byte) ([]byte, error)

func EchoHandler(req []byte) ([]byte, error) {
	return req, nil
}

func UpperHandler(req []byte) ([]byte, error) {
	return bytes.ToUpper(req), nil
}

var handlers = map[string]HandleFunc{
	"echo":  EchoHandler,
	"upper": UpperHandler,
}

// NewHandler 按名字查找处理器，并套上默认中间件
func NewHandler(name string) (HandleFunc, error) {
	h, ok := handlers[name]
	if !ok {
		e := errs.NewInvalidParamErr()
		serverLogger.Error(e.Error(), zap.String(consts.LogFieldParams, "handler"), zap.String(consts.LogFieldValue, name))
		return nil, e
	}
	return Chain(h, LogMw, ParamsValidateMw), nil
}
