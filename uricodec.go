package cfscan

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ParseURI parses a vless:// or trojan:// link into a ProxyTemplate.
// Defaults follow the original parse_uri_to_json: sni falls back to host
// then to the server address, host falls back to sni, alpn defaults to
// "http/1.1" for ws transport and "h2,http/1.1" otherwise, and fp
// defaults to "chrome".
func ParseURI(raw string) (*ProxyTemplate, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &TemplateError{Field: "uri", err: err}
	}

	t := &ProxyTemplate{}
	switch u.Scheme {
	case "vless":
		t.Protocol = "vless"
		if _, err := uuid.Parse(u.User.Username()); err != nil {
			return nil, &TemplateError{Field: "id", err: err}
		}
		t.ID = u.User.Username()
	case "trojan":
		t.Protocol = "trojan"
		pw, _ := u.User.Password()
		if pw == "" {
			pw = u.User.Username()
		}
		t.Password = pw
	default:
		return nil, &TemplateError{Field: "scheme", err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}

	host, portStr, err := splitHostPort(u.Host)
	if err != nil {
		return nil, &TemplateError{Field: "host", err: err}
	}
	t.Address = host
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, &TemplateError{Field: "port", err: err}
	}
	t.Port = port
	t.Remark = u.Fragment

	q := u.Query()
	t.Network = q.Get("type")
	if t.Network == "" {
		t.Network = "tcp"
	}
	t.Security = q.Get("security")
	if t.Security == "" {
		t.Security = "none"
	}

	t.SNI = q.Get("sni")
	t.Host = q.Get("host")
	if t.SNI == "" {
		t.SNI = t.Host
	}
	if t.SNI == "" {
		t.SNI = t.Address
	}
	if t.Host == "" {
		t.Host = t.SNI
	}

	t.FP = q.Get("fp")
	if t.FP == "" {
		t.FP = "chrome"
	}
	t.ALPN = q.Get("alpn")
	if t.ALPN == "" {
		if t.Network == "ws" {
			t.ALPN = "http/1.1"
		} else {
			t.ALPN = "h2,http/1.1"
		}
	}

	t.Encryption = q.Get("encryption")
	if t.Encryption == "" {
		t.Encryption = "none"
	}

	t.WSPath = q.Get("path")
	t.XHTTPPath = q.Get("path")
	t.XHTTPMode = q.Get("mode")

	t.HeaderType = q.Get("headerType")
	t.TCPPath = q.Get("path")

	t.GRPCServiceName = q.Get("serviceName")
	if t.GRPCServiceName == "" {
		t.GRPCServiceName = q.Get("path")
	}
	t.GRPCMultiMode = q.Get("mode") == "multi"

	return t, nil
}

// SerializeURI renders a ProxyTemplate back into a vless:// or trojan://
// link, rewriting the network location to addr:port with IPv6 addresses
// bracketed per RFC 3986.
func SerializeURI(t *ProxyTemplate) (string, error) {
	if t.Address == "" || t.Port == 0 {
		return "", &TemplateError{Field: "address"}
	}

	q := url.Values{}
	q.Set("type", t.Network)
	q.Set("security", t.Security)
	if t.SNI != "" {
		q.Set("sni", t.SNI)
	}
	if t.Host != "" {
		q.Set("host", t.Host)
	}
	if t.FP != "" {
		q.Set("fp", t.FP)
	}
	if t.ALPN != "" {
		q.Set("alpn", t.ALPN)
	}
	if t.Protocol == "vless" && t.Encryption != "" {
		q.Set("encryption", t.Encryption)
	}
	switch t.Network {
	case "ws":
		if t.WSPath != "" {
			q.Set("path", t.WSPath)
		}
	case "xhttp":
		if t.XHTTPPath != "" {
			q.Set("path", t.XHTTPPath)
		}
		if t.XHTTPMode != "" {
			q.Set("mode", t.XHTTPMode)
		}
	case "grpc":
		if t.GRPCServiceName != "" {
			q.Set("serviceName", t.GRPCServiceName)
		}
		if t.GRPCMultiMode {
			q.Set("mode", "multi")
		}
	case "tcp":
		if t.HeaderType == "http" {
			q.Set("headerType", "http")
			if t.TCPPath != "" {
				q.Set("path", t.TCPPath)
			}
		}
	}

	host := t.Address
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	var user string
	switch t.Protocol {
	case "vless":
		user = t.ID
	case "trojan":
		user = t.Password
	default:
		return "", &TemplateError{Field: "protocol"}
	}

	u := url.URL{
		Scheme:   t.Protocol,
		User:     url.User(user),
		Host:     fmt.Sprintf("%s:%d", host, t.Port),
		RawQuery: q.Encode(),
		Fragment: t.Remark,
	}
	return u.String(), nil
}

// splitHostPort splits "host:port" or "[v6]:port" without requiring a
// net.Dialer-shaped error message.
func splitHostPort(hostport string) (string, string, error) {
	i := strings.LastIndex(hostport, ":")
	if i < 0 {
		return "", "", fmt.Errorf("missing port in %q", hostport)
	}
	host := hostport[:i]
	host = strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")
	return host, hostport[i+1:], nil
}

// buildXrayConfig renders the JSON configuration xray-core needs to
// proxy traffic for t through its local mixed inbound on localPort.
func buildXrayConfig(t *ProxyTemplate, localPort int) ([]byte, error) {
	stream := xrayStreamSettings{
		Network:  t.Network,
		Security: t.Security,
	}
	if t.Security == "tls" {
		var alpn []string
		if t.ALPN != "" {
			alpn = strings.Split(t.ALPN, ",")
		}
		stream.TLS = &xrayTLSSettings{
			ServerName:    t.SNI,
			Fingerprint:   t.FP,
			ALPN:          alpn,
			AllowInsecure: true,
		}
	}
	switch t.Network {
	case "ws":
		stream.WS = &xrayWSSettings{Path: t.WSPath, Headers: map[string]string{"Host": t.Host}}
	case "xhttp":
		stream.XHTTP = &xrayXHTTPSettings{Path: t.XHTTPPath, Mode: t.XHTTPMode}
	case "grpc":
		stream.GRPC = &xrayGRPCSettings{ServiceName: t.GRPCServiceName, MultiMode: t.GRPCMultiMode}
	case "tcp":
		tcpSettings := &xrayTCPSettings{}
		if t.HeaderType == "http" {
			paths := []string{"/"}
			if t.TCPPath != "" {
				paths = strings.Split(t.TCPPath, ",")
			}
			tcpSettings.Header = &xrayTCPHeader{
				Type:    "http",
				Request: &xrayTCPHeaderRequest{Path: paths, Headers: map[string][]string{"Host": {t.Host}}},
			}
		}
		stream.TCP = tcpSettings
	}

	encryption := t.Encryption
	if encryption == "" {
		encryption = "none"
	}

	out := xrayOutbound{Protocol: t.Protocol, Stream: stream}
	switch t.Protocol {
	case "vless":
		out.Settings.Vnext = []xrayVnext{{
			Address: t.Address,
			Port:    t.Port,
			Users:   []xrayUser{{ID: t.ID, Encryption: encryption}},
		}}
	case "trojan":
		out.Settings.Servers = []xrayTrojanServer{{
			Address:  t.Address,
			Port:     t.Port,
			Password: t.Password,
		}}
	default:
		return nil, &TemplateError{Field: "protocol"}
	}

	cfg := xrayConfig{
		Log: xrayLog{LogLevel: "warning"},
		Inbounds: []xrayInbound{{
			Port:     localPort,
			Listen:   "127.0.0.1",
			Protocol: "mixed",
		}},
		Outbounds: []xrayOutbound{out},
	}
	return json.MarshalIndent(cfg, "", "  ")
}

// ParseJSONConfig reads an xray-style JSON configuration (config.json)
// and extracts its first outbound as a ProxyTemplate — the reverse of
// buildXrayConfig, used when config.json is the authoritative form and
// config.txt's URI needs to be derived from it.
func ParseJSONConfig(data []byte) (*ProxyTemplate, error) {
	var cfg xrayConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &TemplateError{Field: "config.json", err: err}
	}
	if len(cfg.Outbounds) == 0 {
		return nil, &TemplateError{Field: "outbounds"}
	}
	out := cfg.Outbounds[0]

	t := &ProxyTemplate{
		Protocol: out.Protocol,
		Network:  out.Stream.Network,
		Security: out.Stream.Security,
	}
	switch out.Protocol {
	case "vless":
		if len(out.Settings.Vnext) == 0 || len(out.Settings.Vnext[0].Users) == 0 {
			return nil, &TemplateError{Field: "vnext"}
		}
		t.Address = out.Settings.Vnext[0].Address
		t.Port = out.Settings.Vnext[0].Port
		t.ID = out.Settings.Vnext[0].Users[0].ID
		t.Encryption = out.Settings.Vnext[0].Users[0].Encryption
		if t.Encryption == "" {
			t.Encryption = "none"
		}
	case "trojan":
		if len(out.Settings.Servers) == 0 {
			return nil, &TemplateError{Field: "servers"}
		}
		t.Address = out.Settings.Servers[0].Address
		t.Port = out.Settings.Servers[0].Port
		t.Password = out.Settings.Servers[0].Password
	default:
		return nil, &TemplateError{Field: "protocol"}
	}

	if out.Stream.TLS != nil {
		t.SNI = out.Stream.TLS.ServerName
		t.FP = out.Stream.TLS.Fingerprint
		t.ALPN = strings.Join(out.Stream.TLS.ALPN, ",")
	}
	switch t.Network {
	case "ws":
		if out.Stream.WS != nil {
			t.WSPath = out.Stream.WS.Path
			t.Host = out.Stream.WS.Headers["Host"]
		}
	case "xhttp":
		if out.Stream.XHTTP != nil {
			t.XHTTPPath = out.Stream.XHTTP.Path
			t.XHTTPMode = out.Stream.XHTTP.Mode
		}
	case "grpc":
		if out.Stream.GRPC != nil {
			t.GRPCServiceName = out.Stream.GRPC.ServiceName
			t.GRPCMultiMode = out.Stream.GRPC.MultiMode
		}
	case "tcp":
		if out.Stream.TCP != nil && out.Stream.TCP.Header != nil {
			t.HeaderType = out.Stream.TCP.Header.Type
			if req := out.Stream.TCP.Header.Request; req != nil {
				t.TCPPath = strings.Join(req.Path, ",")
				if hosts := req.Headers["Host"]; len(hosts) > 0 {
					t.Host = hosts[0]
				}
			}
		}
	}
	if t.Host == "" {
		t.Host = t.SNI
	}
	if t.SNI == "" {
		t.SNI = t.Address
	}
	return t, nil
}

// SerializeJSONConfig renders a ProxyTemplate as a standalone config.json
// document (its mixed inbound's port left at 0), the counterpart to
// ParseJSONConfig.
func SerializeJSONConfig(t *ProxyTemplate) ([]byte, error) {
	return buildXrayConfig(t, 0)
}
