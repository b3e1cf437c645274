package cfscan

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// SpeedDeadline bounds the HTTP download used to measure throughput (C5).
const SpeedDeadline = 5 * time.Second

// speedMinBytes is the minimum payload size accepted as a genuine
// measurement rather than a truncated or cached response.
const speedMinBytes = 100000 // N/2 of the 200000-byte test download, per spec.

// SpeedProbe issues an HTTPS GET for path against sni over ip:port and
// measures time-to-first-byte and sustained throughput in KB/s. The
// cloudflare/403 edge check already happened in the TLS stage (C4); this
// stage only measures whether enough payload came back to trust the
// throughput figure.
func SpeedProbe(ctx context.Context, ip string, port int, sni, path string) (*Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, SpeedDeadline)
	defer cancel()

	dialer := &net.Dialer{}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, net.JoinHostPort(ip, strconv.Itoa(port)))
		},
		TLSClientConfig: tlsProbeConfig(sni),
	}
	client := &http.Client{Transport: transport}

	url := fmt.Sprintf("https://%s%s", sni, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, newSetupError("speed probe request", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, &CandidateRejectError{Stage: "speed", IP: ip, Reason: err.Error()}
	}
	defer resp.Body.Close()

	var ttfb time.Duration
	var total int64
	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if total == 0 {
				ttfb = time.Since(start)
			}
			total += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			break
		}
	}
	elapsed := time.Since(start)

	if total < speedMinBytes {
		return nil, &CandidateRejectError{Stage: "speed", IP: ip, Reason: "response too small to measure throughput"}
	}

	kbps := float64(total) / 1024 / elapsed.Seconds()
	Log.Debug("speed probe finished", "ip", ip, "kbps", kbps, "ttfb", ttfb)

	return &Candidate{
		IP:        ip,
		Port:      port,
		SpeedKBps: kbps,
		TTFBMs:    float64(ttfb.Microseconds()) / 1000,
	}, nil
}
