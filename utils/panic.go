package utils

import (
	"fmt"

	"github.com/Trinoooo/eggie_net/errs"
)

// SafeCall 执行 fn，fn 发生 panic 时转成错误返回，避免工作协程崩溃后结果永远回不来
func SafeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.NewUnknownErr().WithOp("panic").WithErr(fmt.Errorf("%v", r))
		}
	}()
	return fn()
}
