//go:build linux

package server

import (
	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/logs"
)

var serverLogger = logs.NewComponent(consts.ComponentServer)
