package cfscan

import (
	"context"
	"net"
	"strconv"
	"time"
)

// TCPDeadline bounds a single TCP connect probe (C3).
const TCPDeadline = 1500 * time.Millisecond

// TCPProbe attempts a raw TCP connection to ip:port and reports the
// connect latency. It is the first, cheapest filter in the pipeline:
// candidates that don't even accept a TCP connection never reach the
// TLS stage. Modeled on FastestTCP's dial-and-time pattern, minus the
// racing-multiple-candidates part, since here each candidate is probed
// independently by its own worker.
func TCPProbe(ctx context.Context, ip string, port int) (*Candidate, error) {
	network := "tcp4"
	if len(ip) > 0 && ip[0] != '.' {
		if parsed := net.ParseIP(ip); parsed != nil && parsed.To4() == nil {
			network = "tcp6"
		}
	}

	ctx, cancel := context.WithTimeout(ctx, TCPDeadline)
	defer cancel()

	var d net.Dialer
	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	start := time.Now()
	Log.Debug("sending tcp probe", "ip", ip, "port", port)
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, &CandidateRejectError{Stage: "tcp", IP: ip, Reason: err.Error()}
	}
	defer conn.Close()
	latency := time.Since(start)
	Log.Debug("tcp probe finished", "ip", ip, "latency", latency)

	return &Candidate{IP: ip, Port: port, TCPLatencyMs: float64(latency.Microseconds()) / 1000}, nil
}
