package main

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
)

// settings holds the optional scanner.toml overrides for anything not
// covered by the four domain input files (network ranges, domains, and
// the proxy template itself). Absence of the file is not an error;
// command-line flags and their defaults apply unchanged.
type settings struct {
	Power       float64 `toml:"power"`
	Target      int     `toml:"target"`
	Debug       bool    `toml:"debug"`
	LogLevel    uint32  `toml:"log_level"`
	ProxyBin    string  `toml:"proxy_bin"`
	OutDir      string  `toml:"out_dir"`
	VerifyURL   string  `toml:"verify_url"`
	MixedClient bool    `toml:"mixed_client"`
	SyslogAddr  string  `toml:"syslog_addr"`
}

// loadSettings decodes scanner.toml from dir if present. Modeled on
// cmd/routedns/config.go's loadConfig: a missing file is not an error,
// decode failures are.
func loadSettings(dir string) (*settings, error) {
	path := filepath.Join(dir, "scanner.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &settings{}, nil
	}

	var s settings
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// applyDefaults overlays any non-zero scanner.toml value onto opt,
// unless the flag was already set on the command line to something other
// than its default. Flags take precedence, so this only fills in values
// still at their flag default.
func (s *settings) applyDefaults(opt *options) {
	if s.Power != 0 && opt.power == 1.0 {
		opt.power = s.Power
	}
	if s.Target != 0 && opt.target == 0 {
		opt.target = s.Target
	}
	if s.Debug {
		opt.debug = true
	}
	if s.LogLevel != 0 && opt.logLevel == uint32(logrus.InfoLevel) {
		opt.logLevel = s.LogLevel
	}
	if s.ProxyBin != "" && opt.proxyBin == "xray" {
		opt.proxyBin = s.ProxyBin
	}
	if s.OutDir != "" && opt.outDir == "output_configs" {
		opt.outDir = s.OutDir
	}
	if s.VerifyURL != "" && opt.verifyURL == "http://cp.cloudflare.com/" {
		opt.verifyURL = s.VerifyURL
	}
	if s.MixedClient {
		opt.mixedClient = true
	}
	if s.SyslogAddr != "" && opt.syslogAddr == "" {
		opt.syslogAddr = s.SyslogAddr
	}
}
