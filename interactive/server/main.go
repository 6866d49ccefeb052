//go:build linux

package main

import (
	"os"

	"github.com/Trinoooo/eggie_net/logs"
	"github.com/Trinoooo/eggie_net/server/cli"
	"go.uber.org/zap"
)

func main() {
	defer func() {
		_ = logs.Logger.Sync()
	}()

	wrapper := cli.NewWrapper()
	if err := wrapper.Run(os.Args); err != nil {
		logs.Logger.Fatal("server exit", zap.Error(err))
	}
}
