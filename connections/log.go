//go:build linux

package connections

import (
	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/logs"
)

var connLogger = logs.NewComponent(consts.ComponentConnections)
