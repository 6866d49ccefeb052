//go:build linux

package reactor

import (
	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/logs"
)

var reactorLogger = logs.NewComponent(consts.ComponentReactor)
