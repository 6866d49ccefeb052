//go:build linux

package server

import (
	"fmt"

	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/errs"
	"github.com/luci/go-render/render"
	"go.uber.org/zap"
)

type MiddlewareFunc func(handleFn HandleFunc) HandleFunc

// Chain 第一个中间件在最外层
func Chain(handleFn HandleFunc, mws ...MiddlewareFunc) HandleFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		handleFn = mws[i](handleFn)
	}
	return handleFn
}

func LogMw(handleFn HandleFunc) HandleFunc {
	return func(req []byte) ([]byte, error) {
		serverLogger.Debug(fmt.Sprintf("req: %s", render.Render(string(req))))
		resp, err := handleFn(req)
		serverLogger.Debug(fmt.Sprintf("resp: %s, errs: %v", render.Render(string(resp)), err))
		return resp, err
	}
}

func ParamsValidateMw(handleFn HandleFunc) HandleFunc {
	return func(req []byte) ([]byte, error) {
		if reqLength := len(req); reqLength > consts.MaxRequestSize {
			e := errs.NewInvalidParamErr()
			serverLogger.Error(e.Error(), zap.String(consts.LogFieldParams, "reqLength"), zap.Int(consts.LogFieldValue, reqLength))
			return nil, e
		}
		return handleFn(req)
	}
}
