package errs

import (
	"errors"
	"fmt"
)

type NetErr struct {
	msg  string
	code int64
	op   string
	err  error
}

// Error 输出格式：
// [错误码] 错误类型描述 ( (操作) )( => 包含错误详细描述 )
// 解释：(xxx) 表示可选内容
func (ne *NetErr) Error() string {
	details := fmt.Sprintf("[%d] %s", ne.code, ne.msg)
	if ne.op != "" {
		details += fmt.Sprintf(" (%s)", ne.op)
	}
	if ne.err != nil {
		details += fmt.Sprintf(" => %s", ne.err)
	}

	return details
}

func (ne *NetErr) Code() int64 {
	return ne.code
}

func (ne *NetErr) Op() string {
	return ne.op
}

func (ne *NetErr) Unwrap() error {
	return ne.err
}

func (ne *NetErr) WithErr(err error) *NetErr {
	ne.err = err
	return ne
}

func (ne *NetErr) WithOp(op string) *NetErr {
	ne.op = op
	return ne
}

func GetCode(err error) int64 {
	var ne *NetErr
	if errors.As(err, &ne) {
		return ne.code
	}
	return UnknownErrCode
}

const (
	UnknownErrCode        = 0
	InvalidParamErrCode   = 100001
	CreatePollerErrCode   = 100002
	PollFailedErrCode     = 100003
	TokenExhaustedErrCode = 100004
	DescriptorOpErrCode   = 100005
	PollerClosedErrCode   = 100006
	QueueClosedErrCode    = 100007
	WakeupErrCode         = 100008
	InvalidAddressErrCode = 100009
	ConnectErrCode        = 100010
	BindErrCode           = 100011
	ListenErrCode         = 100012
	AcceptErrCode         = 100013
	TcpOpErrCode          = 100014
	ReadSocketErrCode     = 100015
	WriteSocketErrCode    = 100016
	CloseFdErrCode        = 100017
	ReadConfigErrCode     = 200001
	ServerClosedErrCode   = 200002
	MkdirErrCode          = 200003
	FileStatErrCode       = 200004
)

func NewUnknownErr() *NetErr {
	return &NetErr{msg: "unknown error", code: UnknownErrCode}
}

func NewInvalidParamErr() *NetErr {
	return &NetErr{msg: "invalid params", code: InvalidParamErrCode}
}

func NewCreatePollerErr() *NetErr {
	return &NetErr{msg: "create poller failed", code: CreatePollerErrCode}
}

func NewPollFailedErr() *NetErr {
	return &NetErr{msg: "poll failed", code: PollFailedErrCode}
}

func NewTokenExhaustedErr() *NetErr {
	return &NetErr{msg: "token pool exhausted", code: TokenExhaustedErrCode}
}

func NewDescriptorOpErr(op string) *NetErr {
	return &NetErr{msg: "descriptor operation failed", code: DescriptorOpErrCode, op: op}
}

func NewPollerClosedErr() *NetErr {
	return &NetErr{msg: "poller already closed", code: PollerClosedErrCode}
}

func NewQueueClosedErr() *NetErr {
	return &NetErr{msg: "readiness queue already closed", code: QueueClosedErrCode}
}

func NewWakeupErr() *NetErr {
	return &NetErr{msg: "wakeup descriptor failed", code: WakeupErrCode}
}

func NewInvalidAddressErr() *NetErr {
	return &NetErr{msg: "invalid address", code: InvalidAddressErrCode}
}

func NewConnectErr() *NetErr {
	return &NetErr{msg: "connect failed", code: ConnectErrCode}
}

func NewBindErr() *NetErr {
	return &NetErr{msg: "bind failed", code: BindErrCode}
}

func NewListenErr() *NetErr {
	return &NetErr{msg: "create acceptor failed", code: ListenErrCode}
}

func NewAcceptErr() *NetErr {
	return &NetErr{msg: "accept failed", code: AcceptErrCode}
}

func NewTcpOpErr(op string) *NetErr {
	return &NetErr{msg: "tcp operation failed", code: TcpOpErrCode, op: op}
}

func NewReadSocketErr() *NetErr {
	return &NetErr{msg: "read socket failed", code: ReadSocketErrCode}
}

func NewWriteSocketErr() *NetErr {
	return &NetErr{msg: "write socket failed", code: WriteSocketErrCode}
}

func NewCloseFdErr() *NetErr {
	return &NetErr{msg: "close descriptor failed", code: CloseFdErrCode}
}

func NewReadConfigErr() *NetErr {
	return &NetErr{msg: "read config failed", code: ReadConfigErrCode}
}

func NewServerClosedErr() *NetErr {
	return &NetErr{msg: "server already closed", code: ServerClosedErrCode}
}

func NewMkdirErr() *NetErr {
	return &NetErr{msg: "mkdir failed", code: MkdirErrCode}
}

func NewFileStatErr() *NetErr {
	return &NetErr{msg: "file stat failed", code: FileStatErrCode}
}
