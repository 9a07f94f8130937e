package conncookie

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testAddr(ip string, port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(ip), Port: port}
}

func TestRoundTripWithinLifetime(t *testing.T) {
	iss := NewIssuer(Secret{1, 2, 3}, 120*time.Second)
	addr := testAddr("203.0.113.5", 6881)
	now := time.Unix(1_700_000_000, 0)

	c := iss.Issue(addr, now)
	require.True(t, iss.Verify(c, addr, now))
	require.True(t, iss.Verify(c, addr, now.Add(119*time.Second)))
}

func TestExpiresAtLifetime(t *testing.T) {
	iss := NewIssuer(Secret{1, 2, 3}, 120*time.Second)
	addr := testAddr("203.0.113.5", 6881)
	now := time.Unix(1_700_000_000, 0)

	c := iss.Issue(addr, now)
	require.False(t, iss.Verify(c, addr, now.Add(120*time.Second)))
}

func TestBindsToAddress(t *testing.T) {
	iss := NewIssuer(Secret{1, 2, 3}, 120*time.Second)
	a := testAddr("203.0.113.5", 6881)
	b := testAddr("203.0.113.6", 6881)
	now := time.Unix(1_700_000_000, 0)

	c := iss.Issue(a, now)
	require.False(t, iss.Verify(c, b, now))
}

func TestBindsToPort(t *testing.T) {
	iss := NewIssuer(Secret{1, 2, 3}, 120*time.Second)
	a := testAddr("203.0.113.5", 6881)
	b := testAddr("203.0.113.5", 6882)
	now := time.Unix(1_700_000_000, 0)

	c := iss.Issue(a, now)
	require.False(t, iss.Verify(c, b, now))
}

func TestDifferentSecretsDontVerify(t *testing.T) {
	issA := NewIssuer(Secret{1, 2, 3}, 120*time.Second)
	issB := NewIssuer(Secret{9, 9, 9}, 120*time.Second)
	addr := testAddr("203.0.113.5", 6881)
	now := time.Unix(1_700_000_000, 0)

	c := issA.Issue(addr, now)
	require.False(t, issB.Verify(c, addr, now))
}
