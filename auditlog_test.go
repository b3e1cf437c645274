package cfscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuditLog_NilIsNoOp(t *testing.T) {
	var a *AuditLog
	assert.NotPanics(t, func() {
		a.LogVerified(VerifiedEntry{IP: "104.16.0.1"})
	})
}

func TestNewAuditLog_BadAddressDoesNotPanic(t *testing.T) {
	a := NewAuditLog(AuditLogOptions{Network: "udp", Address: "256.256.256.256:0", Tag: "cfscan"})
	assert.NotPanics(t, func() {
		a.LogVerified(VerifiedEntry{IP: "104.16.0.1"})
	})
}
