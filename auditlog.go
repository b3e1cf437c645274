package cfscan

import (
	"fmt"

	syslog "github.com/RackSec/srslog"
)

// AuditLog forwards every verified entry to syslog, for deployments that
// want a durable record of what was found independent of the output
// files written by the sink. Optional: a nil *AuditLog is a no-op.
type AuditLog struct {
	writer *syslog.Writer
	opt    AuditLogOptions
}

// AuditLogOptions configures the syslog audit sink.
type AuditLogOptions struct {
	// "udp", "tcp", "unix". Empty dials the local syslog daemon.
	Network string
	// Remote address; not used when Network is empty.
	Address string
	// Priority value as per https://pkg.go.dev/log/syslog#Priority
	Priority int
	// Syslog tag.
	Tag string
}

// NewAuditLog dials the syslog daemon and returns a sink for verified
// entries. Errors are logged, not returned: a broken audit trail should
// never block scanning.
func NewAuditLog(opt AuditLogOptions) *AuditLog {
	writer, err := syslog.Dial(opt.Network, opt.Address, syslog.Priority(opt.Priority), opt.Tag)
	if err != nil {
		Log.Error("failed to initialize syslog audit log", "error", err)
	}
	return &AuditLog{writer: writer, opt: opt}
}

// LogVerified writes one line per verified entry to syslog.
func (a *AuditLog) LogVerified(e VerifiedEntry) {
	if a == nil || a.writer == nil {
		return
	}
	msg := fmt.Sprintf("ip=%s port=%d speed_kbps=%.1f tls_latency_ms=%.1f ttfb_ms=%.1f xray_latency_ms=%.1f score=%.1f",
		e.IP, e.Port, e.SpeedKBps, e.TLSLatencyMs, e.TTFBMs, e.XrayLatencyMs, e.Score)
	if _, err := a.writer.Write([]byte(msg)); err != nil {
		Log.Error("failed to send syslog audit record", "error", err, "ip", e.IP)
	}
}
