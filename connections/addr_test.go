//go:build linux

package connections

import (
	"testing"

	"github.com/Trinoooo/eggie_net/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestParseAddrV4(t *testing.T) {
	addr, err := ParseAddr("127.0.0.1:8014")
	require.Nil(t, err)
	assert.True(t, addr.IsIPv4())
	assert.False(t, addr.IsIPv6())
	assert.EqualValues(t, 8014, addr.Port())
	assert.Equal(t, "tcp4", addr.Network())
	assert.Equal(t, "127.0.0.1:8014", addr.String())
	assert.Equal(t, unix.SizeofSockaddrInet4, addr.Len())

	sa, ok := addr.Sockaddr().(*unix.SockaddrInet4)
	require.True(t, ok)
	assert.Equal(t, 8014, sa.Port)
	assert.Equal(t, [4]byte{127, 0, 0, 1}, sa.Addr)
}

func TestParseAddrV6(t *testing.T) {
	addr, err := ParseAddr("[::1]:9000")
	require.Nil(t, err)
	assert.True(t, addr.IsIPv6())
	assert.Equal(t, "tcp6", addr.Network())
	assert.Equal(t, "[::1]:9000", addr.String())
	assert.Equal(t, unix.SizeofSockaddrInet6, addr.Len())

	_, ok := addr.Sockaddr().(*unix.SockaddrInet6)
	assert.True(t, ok)

	// v4-mapped addresses collapse to v4
	mapped, err := ParseAddr("[::ffff:10.0.0.1]:80")
	require.Nil(t, err)
	assert.True(t, mapped.IsIPv4())
}

func TestParseAddrFailed(t *testing.T) {
	for _, s := range []string{"", "localhost:80", "127.0.0.1", "::1:80", "1.2.3.4:99999"} {
		_, err := ParseAddr(s)
		assert.EqualValues(t, errs.InvalidAddressErrCode, errs.GetCode(err), s)
	}
}

func TestAddrFromSockaddr(t *testing.T) {
	addr, err := addrFromSockaddr(&unix.SockaddrInet4{Port: 1234, Addr: [4]byte{10, 1, 2, 3}})
	require.Nil(t, err)
	assert.Equal(t, "10.1.2.3:1234", addr.String())

	_, err = addrFromSockaddr(&unix.SockaddrUnix{Name: "/tmp/x"})
	assert.EqualValues(t, errs.InvalidAddressErrCode, errs.GetCode(err))
}
