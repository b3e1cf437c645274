package cfscan

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// TLSDialDeadline bounds the TCP dial, handshake, and HTTP request write
// for a single TLS probe (C4).
const TLSDialDeadline = 2 * time.Second

// TLSReadDeadline bounds reading the probe response back, separately from
// the dial/handshake/write phase.
const TLSReadDeadline = 2 * time.Second

// tlsProbeReadLimit caps how much of the response is read: the accept
// check only needs the status line and headers.
const tlsProbeReadLimit = 1024

// tlsProbeConfig builds the tls.Config used for edge probing: certificate
// verification is deliberately off, since Cloudflare edge IPs serve a
// certificate for the customer's own domain, not for the IP itself.
// Based on TLSClientConfig's shape (MinVersion + ServerName), with
// InsecureSkipVerify added on top for this domain's verification-free
// handshake requirement.
func tlsProbeConfig(sni string) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         sni,
		InsecureSkipVerify: true,
	}
}

// TLSProbe dials ip:port, performs a TLS handshake using sni as the SNI
// server name, and issues a plain "GET / HTTP/1.1" over the established
// connection to confirm the peer is actually fronting Cloudflare's edge:
// a handshake alone proves nothing, since any TLS listener completes one.
// The candidate is accepted only if the response contains "cloudflare"
// (case-insensitive, usually in the Server header) or Cloudflare's
// edge-block "403 Forbidden" page — both are observed in practice depending on the
// target's WAF configuration.
func TLSProbe(ctx context.Context, ip string, port int, sni string) (*Candidate, error) {
	dialCtx, dialCancel := context.WithTimeout(ctx, TLSDialDeadline)
	defer dialCancel()

	var d net.Dialer
	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	start := time.Now()
	Log.Debug("sending tls probe", "ip", ip, "sni", sni)

	rawConn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, &CandidateRejectError{Stage: "tls", IP: ip, Reason: err.Error()}
	}
	defer rawConn.Close()

	conn := tls.Client(rawConn, tlsProbeConfig(sni))
	defer conn.Close()
	if err := conn.HandshakeContext(dialCtx); err != nil {
		return nil, &CandidateRejectError{Stage: "tls", IP: ip, Reason: err.Error()}
	}
	latency := time.Since(start)
	state := conn.ConnectionState()
	Log.Debug("tls probe finished", "ip", ip, "latency", latency, "version", state.Version)

	if deadline, ok := dialCtx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}
	req := fmt.Sprintf("GET / HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", sni)
	if _, err := conn.Write([]byte(req)); err != nil {
		return nil, &CandidateRejectError{Stage: "tls", IP: ip, Reason: err.Error()}
	}

	conn.SetReadDeadline(time.Now().Add(TLSReadDeadline))
	buf := make([]byte, tlsProbeReadLimit)
	n, rerr := io.ReadFull(bufio.NewReader(conn), buf)
	if n == 0 && rerr != nil && rerr != io.ErrUnexpectedEOF {
		return nil, &CandidateRejectError{Stage: "tls", IP: ip, Reason: rerr.Error()}
	}

	if !looksLikeCloudflare(buf[:n]) {
		return nil, &CandidateRejectError{Stage: "tls", IP: ip, Reason: "response is not from a cloudflare edge"}
	}

	return &Candidate{
		IP:           ip,
		Port:         port,
		TLSLatencyMs: float64(latency.Microseconds()) / 1000,
		TLSVersion:   state.Version,
	}, nil
}

// looksLikeCloudflare applies the accept disjunction: either a
// case-insensitive "cloudflare" substring anywhere in the response (most
// commonly the Server header) or the literal Cloudflare edge-block
// "403 Forbidden" status line.
func looksLikeCloudflare(resp []byte) bool {
	raw := string(resp)
	return strings.Contains(strings.ToLower(raw), "cloudflare") || strings.Contains(raw, "403 Forbidden")
}
