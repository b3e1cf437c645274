package cfscan

import (
	"net"
	"strconv"

	"github.com/txthinking/socks5"
)

// MixedDialer dials a target address through a proxy binary's local
// "mixed" inbound (HTTP CONNECT + SOCKS5 on the same port) using the
// SOCKS5 half, as an alternate path to the HTTP-CONNECT path used by
// net/http's Transport.Proxy in proxyprobe.go. Some proxy verification
// targets behave differently over SOCKS vs HTTP CONNECT, so the proxy
// stage uses this path when ProxyProbeOptions.UseMixedClient is set; it
// does not switch paths on its own when the HTTP path is rejected.
type MixedDialer struct {
	client *socks5.Client
}

// NewMixedDialer returns a dialer that talks SOCKS5 to a proxy binary's
// mixed inbound listening on 127.0.0.1:localPort.
func NewMixedDialer(localPort int) (*MixedDialer, error) {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(localPort))
	client, err := socks5.NewClient(addr, "", "", int(TCPDeadline.Seconds()), int(TCPDeadline.Seconds()))
	if err != nil {
		return nil, err
	}
	return &MixedDialer{client: client}, nil
}

// Dial connects to address through the mixed inbound's SOCKS5 listener.
func (d *MixedDialer) Dial(network, address string) (net.Conn, error) {
	return d.client.Dial(network, address)
}
