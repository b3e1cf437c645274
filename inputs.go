package cfscan

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// defaultDomains is used when cloudflare-domains.txt is absent.
var defaultDomains = []string{"speed.cloudflare.com", "zula.ir"}

// LoadNetworkGroups reads ipv4.txt and ipv6.txt, one CIDR range per
// line, and groups them by the leading octet/hextet the same way the
// original's _load_networks does. Either file may be absent; if both
// are, the built-in default range is used so the scanner always has
// something to sample from.
func LoadNetworkGroups(dir string) (NetworkGroups, error) {
	groups := NetworkGroups{}
	found := false

	for _, name := range []string{"ipv4.txt", "ipv6.txt"} {
		n, err := addRangesFromFile(groups, filepath.Join(dir, name))
		if err != nil {
			return nil, newSetupError("load "+name, err)
		}
		found = found || n > 0
	}

	if !found {
		return defaultNetworkGroups(), nil
	}
	return groups, nil
}

func addRangesFromFile(groups NetworkGroups, path string) (int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := groups.AddCIDR(groupKey(line), line); err != nil {
			return n, newSetupError("parse range "+line, err)
		}
		n++
	}
	return n, scanner.Err()
}

func groupKey(cidr string) string {
	sep := "."
	if strings.Contains(cidr, ":") {
		sep = ":"
	}
	if i := strings.Index(cidr, sep); i > 0 {
		return cidr[:i]
	}
	return cidr
}

// LoadDomains reads cloudflare-domains.txt, one SNI hostname per line,
// falling back to defaultDomains when the file is absent.
func LoadDomains(dir string) ([]string, error) {
	path := filepath.Join(dir, "cloudflare-domains.txt")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return append([]string(nil), defaultDomains...), nil
	}
	if err != nil {
		return nil, newSetupError("load cloudflare-domains.txt", err)
	}
	defer f.Close()

	var domains []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(domains) == 0 {
		return append([]string(nil), defaultDomains...), nil
	}
	return domains, nil
}

// LoadProxyTemplate loads the proxy template from whichever of
// config.json / config.txt is present, preferring config.json. If only
// one exists, the other is written back in its derived form so both
// representations stay available for inspection — matching on_mount's
// "derive whichever is missing" behavior.
//
// Per the TemplateError/SetupError classes, a missing or malformed proxy
// template is never fatal: it returns (nil, nil) with a visible warning,
// and the caller runs in C5-terminal mode with the proxy stage (C6)
// disabled instead of aborting.
func LoadProxyTemplate(dir string) (*ProxyTemplate, error) {
	jsonPath := filepath.Join(dir, "config.json")
	txtPath := filepath.Join(dir, "config.txt")

	jsonData, jsonErr := os.ReadFile(jsonPath)
	txtData, txtErr := os.ReadFile(txtPath)

	switch {
	case jsonErr == nil:
		t, err := ParseJSONConfig(jsonData)
		if err != nil {
			Log.Warn("proxy stage disabled: malformed config.json", "error", err)
			return nil, nil
		}
		if txtErr != nil && os.IsNotExist(txtErr) {
			if uri, err := SerializeURI(t); err == nil {
				_ = os.WriteFile(txtPath, []byte(uri+"\n"), 0o644)
			}
		}
		return t, nil

	case txtErr == nil:
		line := strings.TrimSpace(firstNonEmptyLine(txtData))
		t, err := ParseURI(line)
		if err != nil {
			Log.Warn("proxy stage disabled: malformed config.txt", "error", err)
			return nil, nil
		}
		if jsonErr != nil && os.IsNotExist(jsonErr) {
			if data, err := SerializeJSONConfig(t); err == nil {
				_ = os.WriteFile(jsonPath, data, 0o644)
			}
		}
		return t, nil

	default:
		Log.Info("no config.json or config.txt found: proxy stage disabled, running in direct-only mode")
		return nil, nil
	}
}

func firstNonEmptyLine(data []byte) string {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return line
		}
	}
	return ""
}
