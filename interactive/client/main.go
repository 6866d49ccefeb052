//go:build linux

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/errs"
	"github.com/Trinoooo/eggie_net/interactive/client/handle"
	"github.com/Trinoooo/eggie_net/logs"
	"github.com/Trinoooo/eggie_net/utils"
	"github.com/chzyer/readline"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	wrapper := NewCliWrapper()
	if err := wrapper.Run(os.Args); err != nil {
		logs.Logger.Fatal("client exit", zap.Error(err))
	}
}

var (
	flagHost = &cli.StringFlag{
		Name:    "host",
		Aliases: []string{"h"},
		Value:   consts.DefaultHost,
		Usage:   "server host name.",
		EnvVars: []string{consts.Host},
	}
	flagPort = &cli.Int64Flag{
		Name:    "port",
		Aliases: []string{"p"},
		Value:   consts.DefaultPort,
		Usage:   "server port number, 0 < port <= 65535 are available.",
		Action: func(c *cli.Context, port int64) error {
			if port <= 0 || port > 65535 {
				return errs.NewInvalidParamErr().WithOp("port")
			}
			return nil
		},
		EnvVars: []string{consts.Port},
	}
	flagTimeout = &cli.DurationFlag{
		Name:    "timeout",
		Aliases: []string{"t"},
		Value:   consts.DefaultDialTimeout * time.Second,
		Usage:   "dial and response timeout.",
	}
)

type CliWrapper struct {
	app *cli.App
}

func NewCliWrapper() *CliWrapper {
	wrapper := &CliWrapper{
		app: &cli.App{
			Name:    "eggie_net_client",
			Usage:   "line client for - a tcp server on a single epoll reactor",
			Version: "0.0.1.240601_alpha",
		},
	}
	wrapper.modifyDefaultHelp()
	wrapper.withFlags()
	wrapper.withAction()
	wrapper.withAuthor()
	return wrapper
}

func (wrapper *CliWrapper) Run(args []string) error {
	return wrapper.app.Run(args)
}

func (wrapper *CliWrapper) modifyDefaultHelp() {
	cli.HelpFlag = &cli.BoolFlag{
		Name: "help",
	}
}

func (wrapper *CliWrapper) withFlags() {
	wrapper.app.Flags = []cli.Flag{
		flagHost,
		flagPort,
		flagTimeout,
	}
}

func (wrapper *CliWrapper) withAction() {
	wrapper.app.Action = func(ctx *cli.Context) error {
		client, err := handle.Dial(ctx.String(flagHost.Name), int(ctx.Int64(flagPort.Name)), ctx.Duration(flagTimeout.Name))
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logs.Logger.Warn("close client failed", zap.Error(err))
			}
		}()

		history := fmt.Sprintf("%s/client/cmd_history_%s", consts.TmpDir, time.Now().Format("20060102"))
		if err := utils.EnsureParentDir(history); err != nil {
			// 没有历史记录也能用
			logs.Logger.Warn("prepare history file failed", zap.Error(err))
			history = ""
		}

		input, err := readline.NewEx(&readline.Config{
			Prompt: "> ",
			AutoComplete: readline.NewPrefixCompleter(
				readline.PcItem("exit"),
			),
			HistoryFile: history,
		})
		if err != nil {
			return err
		}
		defer input.Close()
		input.CaptureExitSignal()

		for {
			str, err := input.Readline()
			if err != nil {
				if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
					return nil
				}
				fmt.Println(err)
				continue
			}
			if strings.EqualFold(str, "exit") {
				return nil
			}

			resp, err := client.HandleInput(str)
			if err != nil {
				// 连接层错误无法恢复，直接退出
				return err
			}
			fmt.Printf("# %s\n", resp)
		}
	}
}

func (wrapper *CliWrapper) withAuthor() {
	wrapper.app.Authors = []*cli.Author{
		{
			Name:  "Trino",
			Email: "sujun.trinoooo@gmail.com",
		},
	}
}
