package cfscan

import (
	"fmt"

	"github.com/pkg/errors"
)

// CandidateRejectError marks a candidate address that failed a pipeline
// stage's accept criteria. It is never logged above Debug: rejects are
// expected, high-volume, and not actionable on their own.
type CandidateRejectError struct {
	Stage  string
	IP     string
	Reason string
}

func (e *CandidateRejectError) Error() string {
	return fmt.Sprintf("%s: rejected %s: %s", e.Stage, e.IP, e.Reason)
}

// ProxyProbeError wraps a failure from the proxy-verify stage (C6), which
// spans subprocess spawn, warmup, and the proxied HTTP round trip.
type ProxyProbeError struct {
	IP  string
	Op  string
	err error
}

func (e *ProxyProbeError) Error() string {
	return fmt.Sprintf("proxy probe %s: %s: %s", e.IP, e.Op, e.err)
}

func (e *ProxyProbeError) Unwrap() error { return e.err }

func newProxyProbeError(ip, op string, err error) error {
	return &ProxyProbeError{IP: ip, Op: op, err: errors.WithStack(err)}
}

// TemplateError is returned by the URI codec when a link or JSON template
// can't be parsed, or is missing a field required to specialize it to an
// IP candidate.
type TemplateError struct {
	Field string
	err   error
}

func (e *TemplateError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("template: %s: %s", e.Field, e.err)
	}
	return fmt.Sprintf("template: missing field %q", e.Field)
}

func (e *TemplateError) Unwrap() error { return e.err }

// SetupError is returned for failures that occur before the pipeline can
// start: an input file that exists but cannot be read, a malformed range
// line, an output directory or error log that cannot be created.
type SetupError struct {
	Op  string
	err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup: %s: %s", e.Op, e.err)
}

func (e *SetupError) Unwrap() error { return e.err }

func newSetupError(op string, err error) error {
	return &SetupError{Op: op, err: errors.Wrap(err, op)}
}
