//go:build linux

package connections

import (
	"net"
	"net/netip"
	"strconv"

	"github.com/Trinoooo/eggie_net/consts"
	"github.com/Trinoooo/eggie_net/errs"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Addr IPv4/IPv6 socket 地址，实现 net.Addr
type Addr struct {
	ap netip.AddrPort
}

// ParseAddr 支持 "ip:port" 与 "[ipv6]:port"
func ParseAddr(s string) (*Addr, error) {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		e := errs.NewInvalidAddressErr().WithErr(err)
		connLogger.Error(e.Error(), zap.String(consts.LogFieldParams, "addr"), zap.String(consts.LogFieldValue, s))
		return nil, e
	}
	return AddrFrom(ap.Addr(), ap.Port()), nil
}

func AddrFrom(ip netip.Addr, port uint16) *Addr {
	// v4 映射的 v6 地址按 v4 处理
	return &Addr{ap: netip.AddrPortFrom(ip.Unmap(), port)}
}

func addrFromSockaddr(sa unix.Sockaddr) (*Addr, error) {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return AddrFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port)), nil
	case *unix.SockaddrInet6:
		ip := netip.AddrFrom16(sa.Addr)
		if sa.ZoneId != 0 {
			ip = ip.WithZone(zoneName(sa.ZoneId))
		}
		return AddrFrom(ip, uint16(sa.Port)), nil
	default:
		return nil, errs.NewInvalidAddressErr()
	}
}

func (a *Addr) IsIPv4() bool {
	return a.ap.Addr().Is4()
}

func (a *Addr) IsIPv6() bool {
	return a.ap.Addr().Is6()
}

func (a *Addr) IP() netip.Addr {
	return a.ap.Addr()
}

func (a *Addr) Port() uint16 {
	return a.ap.Port()
}

// Sockaddr 转成 socket 系统调用使用的形式
func (a *Addr) Sockaddr() unix.Sockaddr {
	if a.IsIPv4() {
		return &unix.SockaddrInet4{Port: int(a.Port()), Addr: a.IP().As4()}
	}
	sa := &unix.SockaddrInet6{Port: int(a.Port()), Addr: a.IP().As16()}
	if zone := a.IP().Zone(); zone != "" {
		sa.ZoneId = zoneIndex(zone)
	}
	return sa
}

// Len 原生 sockaddr 的字节长度
func (a *Addr) Len() int {
	if a.IsIPv4() {
		return unix.SizeofSockaddrInet4
	}
	return unix.SizeofSockaddrInet6
}

func (a *Addr) family() int {
	if a.IsIPv4() {
		return unix.AF_INET
	}
	return unix.AF_INET6
}

func (a *Addr) Network() string {
	if a.IsIPv4() {
		return "tcp4"
	}
	return "tcp6"
}

func (a *Addr) String() string {
	return a.ap.String()
}

func zoneName(id uint32) string {
	if ifi, err := net.InterfaceByIndex(int(id)); err == nil {
		return ifi.Name
	}
	return strconv.FormatUint(uint64(id), 10)
}

func zoneIndex(zone string) uint32 {
	if n, err := strconv.ParseUint(zone, 10, 32); err == nil {
		return uint32(n)
	}
	if ifi, err := net.InterfaceByName(zone); err == nil {
		return uint32(ifi.Index)
	}
	return 0
}
