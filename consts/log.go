package consts

const (
	LogFieldParams    = "params"
	LogFieldValue     = "value"
	LogFieldComponent = "component"
	LogFieldToken     = "token"
	LogFieldFd        = "fd"
	LogFieldOp        = "op"
	LogFieldRemote    = "remote"
	LogFieldLocal     = "local"
	LogFieldCount     = "count"
)
