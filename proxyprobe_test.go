package cfscan

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeLocalPort_ReturnsNonZeroPorts(t *testing.T) {
	a, err := freeLocalPort()
	require.NoError(t, err)
	b, err := freeLocalPort()
	require.NoError(t, err)
	assert.NotZero(t, a)
	assert.NotZero(t, b)
}

func TestFilteredWriter_DropsMatchingLines(t *testing.T) {
	var buf bytes.Buffer
	w := &filteredWriter{w: &buf, filter: "deprecated"}

	w.Write([]byte("a line using a deprecated flag\n"))
	w.Write([]byte("normal log line\n"))

	assert.NotContains(t, buf.String(), "deprecated")
	assert.Contains(t, buf.String(), "normal log line")
}

func TestFilteredWriter_NoFilterPassesEverything(t *testing.T) {
	var buf bytes.Buffer
	w := &filteredWriter{w: &buf}
	w.Write([]byte("anything at all\n"))
	assert.Contains(t, buf.String(), "anything at all")
}

func TestContains(t *testing.T) {
	assert.True(t, contains([]byte("hello world"), "wor"))
	assert.False(t, contains([]byte("hello world"), "xyz"))
	assert.False(t, contains([]byte("hi"), ""))
}

func TestProxyProbe_SpawnFailureIsCleanedUp(t *testing.T) {
	tmpBefore, _ := filepath.Glob(filepath.Join(os.TempDir(), "cfscan-*.json"))

	_, err := ProxyProbe(context.Background(), testTemplate(), "192.0.2.1", 443, ProxyProbeOptions{
		BinaryPath: filepath.Join(t.TempDir(), "does-not-exist"),
	})
	require.Error(t, err)

	tmpAfter, _ := filepath.Glob(filepath.Join(os.TempDir(), "cfscan-*.json"))
	assert.LessOrEqual(t, len(tmpAfter), len(tmpBefore), "temp config must be removed even when the binary fails to spawn")
}

func TestVerifyThroughProxy_MixedClientRejectsWhenNothingListens(t *testing.T) {
	port, err := freeLocalPort()
	require.NoError(t, err)

	_, err = verifyThroughProxy(context.Background(), port, "http://cp.cloudflare.com/", true)
	assert.Error(t, err)
}

func TestProxyProbe_ContextCancelDuringWarmupIsReported(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := ProxyProbe(ctx, testTemplate(), "192.0.2.1", 443, ProxyProbeOptions{
		BinaryPath: "sleep",
	})
	require.Error(t, err)
	var pe *ProxyProbeError
	require.ErrorAs(t, err, &pe)
}
