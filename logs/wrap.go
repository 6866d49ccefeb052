package logs

import (
	"github.com/Trinoooo/eggie_net/consts"
	"go.uber.org/zap"
)

// Component 组件日志，所有日志带上 component 字段
type Component struct {
	logger *zap.Logger
}

func NewComponent(name string, fields ...zap.Field) *Component {
	return &Component{
		logger: Logger.WithOptions(zap.AddCallerSkip(1)).With(append([]zap.Field{zap.String(consts.LogFieldComponent, name)}, fields...)...),
	}
}

func (c *Component) With(fields ...zap.Field) *Component {
	return &Component{logger: c.logger.With(fields...)}
}

func (c *Component) Debug(msg string, fields ...zap.Field) {
	c.logger.Debug(msg, fields...)
}

func (c *Component) Info(msg string, fields ...zap.Field) {
	c.logger.Info(msg, fields...)
}

func (c *Component) Warn(msg string, fields ...zap.Field) {
	c.logger.Warn(msg, fields...)
}

func (c *Component) Error(msg string, fields ...zap.Field) {
	c.logger.Error(msg, fields...)
}

func (c *Component) Fatal(msg string, fields ...zap.Field) {
	c.logger.Fatal(msg, fields...)
}

func (c *Component) Sync() error {
	return c.logger.Sync()
}
