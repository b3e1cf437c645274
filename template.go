package cfscan

// ProxyTemplate is the structured form of a vless:// or trojan:// link,
// shaped after the xray/v2ray outbound JSON config. Field layout follows
// the tagged-union convention used by the pack's xray config models:
// a Network/Security discriminator selects which *Settings pointer is
// populated, the rest stay nil and are omitted from JSON.
type ProxyTemplate struct {
	Protocol string // "vless" or "trojan"
	Address  string
	Port     int

	// VLESS credential; empty for trojan.
	ID string
	// Trojan credential; empty for vless.
	Password string

	Remark string

	Network  string // "tcp", "ws", "xhttp", "grpc"
	Security string // "none", "tls", "reality"

	// Encryption is the VLESS user's encryption setting; always "none"
	// in practice, but carried through so the codec round-trips it
	// instead of silently hardcoding it.
	Encryption string

	SNI  string
	Host string
	FP   string
	ALPN string

	WSPath    string
	XHTTPPath string
	XHTTPMode string

	// HeaderType is tcp transport's camouflage mode ("" or "http"); only
	// meaningful when Network == "tcp".
	HeaderType string
	// TCPPath is the comma-joined set of HTTP request paths xray cycles
	// through for tcp's "http" header camouflage.
	TCPPath string

	GRPCServiceName string
	// GRPCMultiMode maps to grpc's "multi" mode query parameter, which
	// enables multiplexed gRPC streams over one connection.
	GRPCMultiMode bool
}

// Clone returns a deep copy safe to specialize per-candidate.
func (t *ProxyTemplate) Clone() *ProxyTemplate {
	c := *t
	return &c
}

// Specialize returns a copy of the template rewritten for the given
// edge IP, leaving the SNI, host, and credential untouched. Port falls
// back to the template's own port when 0 is given.
func (t *ProxyTemplate) Specialize(ip string, port int) *ProxyTemplate {
	c := t.Clone()
	c.Address = ip
	if port != 0 {
		c.Port = port
	}
	return c
}

// xrayConfig is the subset of xray-core's JSON configuration the proxy
// stage needs to drive a single outbound through the local mixed inbound.
// Field names and nesting mirror xray's own config schema.
type xrayConfig struct {
	Log       xrayLog        `json:"log"`
	Inbounds  []xrayInbound  `json:"inbounds"`
	Outbounds []xrayOutbound `json:"outbounds"`
}

type xrayLog struct {
	LogLevel string `json:"loglevel"`
}

type xrayInbound struct {
	Port     int             `json:"port"`
	Listen   string          `json:"listen"`
	Protocol string          `json:"protocol"`
	Settings xrayInSettings  `json:"settings"`
}

type xrayInSettings struct {
	Auth string `json:"auth,omitempty"`
}

type xrayOutbound struct {
	Protocol string             `json:"protocol"`
	Settings xrayOutSettings    `json:"settings"`
	Stream   xrayStreamSettings `json:"streamSettings"`
}

// xrayOutSettings covers both vless and trojan outbound settings; unused
// fields are omitted by their zero value.
type xrayOutSettings struct {
	Vnext []xrayVnext `json:"vnext,omitempty"`
	Servers []xrayTrojanServer `json:"servers,omitempty"`
}

type xrayVnext struct {
	Address string      `json:"address"`
	Port    int         `json:"port"`
	Users   []xrayUser  `json:"users"`
}

type xrayUser struct {
	ID         string `json:"id"`
	Encryption string `json:"encryption"`
	Flow       string `json:"flow,omitempty"`
}

type xrayTrojanServer struct {
	Address  string `json:"address"`
	Port     int    `json:"port"`
	Password string `json:"password"`
}

type xrayStreamSettings struct {
	Network  string              `json:"network"`
	Security string              `json:"security"`
	TLS      *xrayTLSSettings    `json:"tlsSettings,omitempty"`
	WS       *xrayWSSettings     `json:"wsSettings,omitempty"`
	XHTTP    *xrayXHTTPSettings  `json:"xhttpSettings,omitempty"`
	GRPC     *xrayGRPCSettings   `json:"grpcSettings,omitempty"`
	TCP      *xrayTCPSettings    `json:"tcpSettings,omitempty"`
}

type xrayTLSSettings struct {
	ServerName string   `json:"serverName,omitempty"`
	Fingerprint string  `json:"fingerprint,omitempty"`
	ALPN       []string `json:"alpn,omitempty"`
	AllowInsecure bool  `json:"allowInsecure,omitempty"`
}

type xrayWSSettings struct {
	Path    string            `json:"path,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type xrayXHTTPSettings struct {
	Path string `json:"path,omitempty"`
	Mode string `json:"mode,omitempty"`
}

type xrayGRPCSettings struct {
	ServiceName string `json:"serviceName,omitempty"`
	MultiMode   bool   `json:"multiMode,omitempty"`
}

// xrayTCPSettings represents tcp transport's optional HTTP header
// camouflage (header.type="http"), which disguises the connection as a
// plain HTTP request/response exchange.
type xrayTCPSettings struct {
	Header *xrayTCPHeader `json:"header,omitempty"`
}

type xrayTCPHeader struct {
	Type    string                `json:"type"`
	Request *xrayTCPHeaderRequest `json:"request,omitempty"`
}

type xrayTCPHeaderRequest struct {
	Path    []string            `json:"path,omitempty"`
	Headers map[string][]string `json:"headers,omitempty"`
}
