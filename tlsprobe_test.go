package cfscan

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitTestServerAddr(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	var port int
	_, err = fmt.Sscan(portStr, &port)
	require.NoError(t, err)
	return host, port
}

// selfSignedTLSConfig builds a throwaway server certificate so the raw
// TLS listener below doesn't depend on anything on disk.
func selfSignedTLSConfig(t *testing.T) *tls.Config {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
	return &tls.Config{Certificates: []tls.Certificate{cert}}
}

// rawTLSServer accepts a single TLS connection, discards whatever the
// client sends, and writes resp back verbatim, mimicking an edge that
// answers the probe's GET / with a raw HTTP response.
func rawTLSServer(t *testing.T, resp string) string {
	t.Helper()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", selfSignedTLSConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 512)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		conn.Read(buf)
		conn.Write([]byte(resp))
	}()

	return ln.Addr().String()
}

func TestTLSProbe_AcceptsCloudflareResponse(t *testing.T) {
	addr := rawTLSServer(t, "HTTP/1.1 403 Forbidden\r\nServer: cloudflare\r\nContent-Length: 0\r\n\r\n")
	host, port := splitTestServerAddr(t, addr)

	c, err := TLSProbe(context.Background(), host, port, "example.com")
	require.NoError(t, err)
	assert.Equal(t, host, c.IP)
	assert.NotZero(t, c.TLSVersion)
}

func TestTLSProbe_Accepts403WithoutServerHeader(t *testing.T) {
	addr := rawTLSServer(t, "HTTP/1.1 403 Forbidden\r\nContent-Length: 0\r\n\r\n")
	host, port := splitTestServerAddr(t, addr)

	_, err := TLSProbe(context.Background(), host, port, "example.com")
	require.NoError(t, err)
}

func TestTLSProbe_RejectsNonCloudflareResponse(t *testing.T) {
	addr := rawTLSServer(t, "HTTP/1.1 200 OK\r\nServer: nginx\r\nContent-Length: 0\r\n\r\n")
	host, port := splitTestServerAddr(t, addr)

	_, err := TLSProbe(context.Background(), host, port, "example.com")
	require.Error(t, err)
	var rejectErr *CandidateRejectError
	require.ErrorAs(t, err, &rejectErr)
	assert.Equal(t, "tls", rejectErr.Stage)
}

func TestTLSProbe_NoListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	host, port := splitTestServerAddr(t, addr)

	_, err = TLSProbe(context.Background(), host, port, "example.com")
	require.Error(t, err)
	var rejectErr *CandidateRejectError
	require.ErrorAs(t, err, &rejectErr)
	assert.Equal(t, "tls", rejectErr.Stage)
}
