package cfscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI_VLESS(t *testing.T) {
	uri := "vless://b831381d-6324-4d53-ad4f-8cda48b30811@104.16.0.1:443?type=ws&security=tls&sni=example.com&path=%2Fws#my-node"
	tpl, err := ParseURI(uri)
	require.NoError(t, err)

	assert.Equal(t, "vless", tpl.Protocol)
	assert.Equal(t, "b831381d-6324-4d53-ad4f-8cda48b30811", tpl.ID)
	assert.Equal(t, "104.16.0.1", tpl.Address)
	assert.Equal(t, 443, tpl.Port)
	assert.Equal(t, "ws", tpl.Network)
	assert.Equal(t, "tls", tpl.Security)
	assert.Equal(t, "example.com", tpl.SNI)
	assert.Equal(t, "/ws", tpl.WSPath)
	assert.Equal(t, "chrome", tpl.FP)
	assert.Equal(t, "http/1.1", tpl.ALPN)
	assert.Equal(t, "my-node", tpl.Remark)
}

func TestParseURI_Trojan(t *testing.T) {
	tpl, err := ParseURI("trojan://s3cr3t@198.51.100.7:443?security=tls&sni=cdn.example.com")
	require.NoError(t, err)
	assert.Equal(t, "trojan", tpl.Protocol)
	assert.Equal(t, "s3cr3t", tpl.Password)
	assert.Equal(t, "cdn.example.com", tpl.SNI)
	assert.Equal(t, "h2,http/1.1", tpl.ALPN) // tcp transport default
}

func TestParseURI_RejectsBadUUID(t *testing.T) {
	_, err := ParseURI("vless://not-a-uuid@104.16.0.1:443")
	require.Error(t, err)
	var templateErr *TemplateError
	assert.ErrorAs(t, err, &templateErr)
}

func TestURIRoundTrip(t *testing.T) {
	original := "vless://b831381d-6324-4d53-ad4f-8cda48b30811@example.com:443?type=tcp&security=tls&sni=example.com&fp=chrome&alpn=h2%2Chttp%2F1.1#node"
	tpl, err := ParseURI(original)
	require.NoError(t, err)

	serialized, err := SerializeURI(tpl)
	require.NoError(t, err)

	reparsed, err := ParseURI(serialized)
	require.NoError(t, err)

	assert.Equal(t, tpl, reparsed)
}

func TestURIRoundTrip_IPv6(t *testing.T) {
	tpl := &ProxyTemplate{
		Protocol: "trojan",
		Address:  "2606:4700::1",
		Port:     443,
		Password: "pw",
		Network:  "tcp",
		Security: "tls",
		SNI:      "example.com",
	}
	serialized, err := SerializeURI(tpl)
	require.NoError(t, err)
	assert.Contains(t, serialized, "[2606:4700::1]:443")

	reparsed, err := ParseURI(serialized)
	require.NoError(t, err)
	assert.Equal(t, "2606:4700::1", reparsed.Address)
}

func TestSpecialize(t *testing.T) {
	tpl := &ProxyTemplate{Protocol: "vless", Address: "1.1.1.1", Port: 443, ID: "x"}
	specialized := tpl.Specialize("104.16.1.2", 0)
	assert.Equal(t, "104.16.1.2", specialized.Address)
	assert.Equal(t, 443, specialized.Port) // port falls back to template's own
	assert.Equal(t, "1.1.1.1", tpl.Address) // original untouched
}

func TestBuildXrayConfig_VLESS(t *testing.T) {
	tpl := &ProxyTemplate{
		Protocol: "vless", ID: "b831381d-6324-4d53-ad4f-8cda48b30811",
		Address: "104.16.1.2", Port: 443,
		Network: "tcp", Security: "tls", SNI: "example.com", FP: "chrome",
	}
	data, err := buildXrayConfig(tpl, 10809)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"protocol": "vless"`)
	assert.Contains(t, string(data), `"serverName": "example.com"`)
}

func TestParseURI_GRPC(t *testing.T) {
	uri := "trojan://s3cr3t@[2606:4700::1]:443?type=grpc&security=tls&sni=ex.com&serviceName=svc&mode=multi"
	tpl, err := ParseURI(uri)
	require.NoError(t, err)

	assert.Equal(t, "grpc", tpl.Network)
	assert.Equal(t, "svc", tpl.GRPCServiceName)
	assert.True(t, tpl.GRPCMultiMode)
}

func TestParseURI_GRPCServiceNameDefaultsToPath(t *testing.T) {
	uri := "vless://b831381d-6324-4d53-ad4f-8cda48b30811@104.16.0.1:443?type=grpc&security=tls&path=%2Fmysvc"
	tpl, err := ParseURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "/mysvc", tpl.GRPCServiceName)
}

func TestParseURI_EncryptionDefaultsToNone(t *testing.T) {
	tpl, err := ParseURI("vless://b831381d-6324-4d53-ad4f-8cda48b30811@104.16.0.1:443")
	require.NoError(t, err)
	assert.Equal(t, "none", tpl.Encryption)
}

func TestParseURI_TCPHeaderCamouflage(t *testing.T) {
	uri := "vless://b831381d-6324-4d53-ad4f-8cda48b30811@104.16.0.1:443?type=tcp&headerType=http&path=%2Fa%2C%2Fb&host=cdn.example.com"
	tpl, err := ParseURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "http", tpl.HeaderType)
	assert.Equal(t, "/a,/b", tpl.TCPPath)
}

func TestGRPCURIRoundTrip(t *testing.T) {
	original := "trojan://s3cr3t@[2606:4700::1]:443?type=grpc&security=tls&sni=ex.com&serviceName=svc&mode=multi"
	tpl, err := ParseURI(original)
	require.NoError(t, err)

	serialized, err := SerializeURI(tpl)
	require.NoError(t, err)

	reparsed, err := ParseURI(serialized)
	require.NoError(t, err)
	assert.Equal(t, tpl, reparsed)
}

func TestBuildXrayConfig_GRPC(t *testing.T) {
	tpl := &ProxyTemplate{
		Protocol: "trojan", Password: "pw",
		Address: "104.16.1.2", Port: 443,
		Network: "grpc", Security: "tls", SNI: "example.com",
		GRPCServiceName: "svc", GRPCMultiMode: true,
	}
	data, err := buildXrayConfig(tpl, 10809)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"serviceName": "svc"`)
	assert.Contains(t, string(data), `"multiMode": true`)
}

func TestBuildXrayConfig_TCPHeaderCamouflage(t *testing.T) {
	tpl := &ProxyTemplate{
		Protocol: "vless", ID: "b831381d-6324-4d53-ad4f-8cda48b30811",
		Address: "104.16.1.2", Port: 443,
		Network: "tcp", Security: "none", HeaderType: "http", TCPPath: "/a,/b", Host: "cdn.example.com",
	}
	data, err := buildXrayConfig(tpl, 10809)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type": "http"`)
	assert.Contains(t, string(data), `"cdn.example.com"`)
}

func TestParseJSONConfig_GRPCRoundTrip(t *testing.T) {
	tpl := &ProxyTemplate{
		Protocol: "trojan", Password: "s3cr3t",
		Address: "104.16.1.2", Port: 443,
		Network: "grpc", Security: "tls", SNI: "example.com",
		GRPCServiceName: "svc", GRPCMultiMode: true,
	}
	data, err := SerializeJSONConfig(tpl)
	require.NoError(t, err)

	reparsed, err := ParseJSONConfig(data)
	require.NoError(t, err)
	assert.Equal(t, tpl.GRPCServiceName, reparsed.GRPCServiceName)
	assert.Equal(t, tpl.GRPCMultiMode, reparsed.GRPCMultiMode)
}

func TestParseJSONConfig_RoundTrip(t *testing.T) {
	tpl := &ProxyTemplate{
		Protocol: "trojan", Password: "s3cr3t",
		Address: "104.16.1.2", Port: 443,
		Network: "ws", Security: "tls", SNI: "example.com", WSPath: "/ws",
	}
	data, err := SerializeJSONConfig(tpl)
	require.NoError(t, err)

	reparsed, err := ParseJSONConfig(data)
	require.NoError(t, err)
	assert.Equal(t, tpl.Protocol, reparsed.Protocol)
	assert.Equal(t, tpl.Password, reparsed.Password)
	assert.Equal(t, tpl.Address, reparsed.Address)
	assert.Equal(t, tpl.WSPath, reparsed.WSPath)
}
