//go:build linux

package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/Trinoooo/eggie_net/config"
	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/errs"
	"github.com/Trinoooo/eggie_net/logs"
	"github.com/Trinoooo/eggie_net/server"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	flagHost = &cli.StringFlag{
		Name:    "host",
		Aliases: []string{"h"},
		Value:   consts.DefaultHost,
		Usage:   "server host, an ipv4 or ipv6 literal.",
		EnvVars: []string{consts.Host},
	}
	flagPort = &cli.Int64Flag{
		Name:    "port",
		Aliases: []string{"p"},
		Value:   consts.DefaultPort,
		Usage:   "server port number, 0 < port <= 65535 are available.",
		Action: func(c *cli.Context, port int64) error {
			if port <= 0 || port > 65535 {
				e := errs.NewInvalidParamErr()
				logs.Logger.Error(e.Error(), zap.String(consts.LogFieldParams, "port"), zap.Int64(consts.LogFieldValue, port))
				return e
			}
			return nil
		},
		EnvVars: []string{consts.Port},
	}
	flagConfig = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "config directory or yaml file, ~/eggie_net/config by default.",
		EnvVars: []string{consts.Config},
	}
	flagQueueCapacity = &cli.IntFlag{
		Name:  "queue-capacity",
		Value: consts.DefaultQueueCapacity,
		Usage: "readiness queue capacity, producers block beyond it.",
		Action: func(c *cli.Context, capacity int) error {
			if capacity <= 0 {
				e := errs.NewInvalidParamErr()
				logs.Logger.Error(e.Error(), zap.String(consts.LogFieldParams, "queue-capacity"), zap.Int(consts.LogFieldValue, capacity))
				return e
			}
			return nil
		},
		EnvVars: []string{consts.QueueCap},
	}
	flagWorkers = &cli.IntFlag{
		Name:    "workers",
		Aliases: []string{"w"},
		Value:   consts.DefaultWorkers,
		Usage:   "handler worker pool capacity, must be > 0.",
		Action: func(c *cli.Context, workers int) error {
			if workers <= 0 {
				e := errs.NewInvalidParamErr()
				logs.Logger.Error(e.Error(), zap.String(consts.LogFieldParams, "workers"), zap.Int(consts.LogFieldValue, workers))
				return e
			}
			return nil
		},
		EnvVars: []string{consts.Workers},
	}
	flagHandler = &cli.StringFlag{
		Name:    "handler",
		Value:   consts.DefaultHandler,
		Usage:   "request handler, echo or upper.",
		EnvVars: []string{consts.Handler},
	}
)

type Wrapper struct {
	app *cli.App
}

func NewWrapper() *Wrapper {
	wrapper := &Wrapper{
		app: &cli.App{
			Name:    "eggie_net",
			Usage:   "a line based tcp server on a single epoll reactor",
			Version: "0.0.1.240601_alpha",
		},
	}
	wrapper.modifyDefaultHelp()
	wrapper.withFlags()
	wrapper.withAction()
	wrapper.withAuthor()
	return wrapper
}

func (wrapper *Wrapper) Run(args []string) error {
	return wrapper.app.Run(args)
}

func (wrapper *Wrapper) modifyDefaultHelp() {
	cli.HelpFlag = &cli.BoolFlag{
		Name: "help",
	}
	cli.AppHelpTemplate = consts.HelpTemplate
}

func (wrapper *Wrapper) withFlags() {
	wrapper.app.Flags = []cli.Flag{
		flagHost,
		flagPort,
		flagConfig,
		flagQueueCapacity,
		flagWorkers,
		flagHandler,
	}
}

func (wrapper *Wrapper) withAction() {
	wrapper.app.Action = func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}

		srv, err := server.NewReactorServer(cfg)
		if err != nil {
			return err
		}

		go func() {
			// bugfix: 使用缓冲通道避免执行信号处理程序（下面的for）之前有信号到达会被丢弃
			sig := make(chan os.Signal, 5)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			for range sig {
				logs.Logger.Info("shutdown...")
				if err := srv.Close(); err != nil {
					logs.Logger.Error("server shutdown failed", zap.Error(err))
				}
			}
		}()

		return srv.Serve()
	}
}

// loadConfig 配置文件/环境变量打底，命令行显式指定的参数覆盖
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.String(flagConfig.Name))
	if err != nil {
		return nil, err
	}

	if ctx.IsSet(flagHost.Name) {
		cfg.Host = ctx.String(flagHost.Name)
	}
	if ctx.IsSet(flagPort.Name) {
		cfg.Port = int(ctx.Int64(flagPort.Name))
	}
	if ctx.IsSet(flagQueueCapacity.Name) {
		cfg.QueueCapacity = ctx.Int(flagQueueCapacity.Name)
	}
	if ctx.IsSet(flagWorkers.Name) {
		cfg.Workers = ctx.Int(flagWorkers.Name)
	}
	if ctx.IsSet(flagHandler.Name) {
		cfg.Handler = ctx.String(flagHandler.Name)
	}
	return cfg, cfg.Validate()
}

func (wrapper *Wrapper) withAuthor() {
	wrapper.app.Authors = []*cli.Author{
		{
			Name:  "Trino",
			Email: "sujun.trinoooo@gmail.com",
		},
	}
}
