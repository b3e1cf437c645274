package cfscan

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

// Sink is the result aggregator (C8): it collects verified entries under
// a single mutex, ranks them by score, and writes the output files named
// in the input/output contract — per-IP xray configs, a flat vless/
// trojan link list, and a ranked CSV. Entries are unique by IP: a
// candidate re-verified with a better score replaces its earlier entry
// rather than appending a duplicate row.
type Sink struct {
	mu       sync.Mutex
	entries  []VerifiedEntry
	byIP     map[string]int
	template *ProxyTemplate

	outDir string
	audit  *AuditLog
	errLog *os.File
}

// NewSink prepares the output directory and recreates scanner_error.log,
// matching the original's truncate-on-start behavior so stale errors
// from a previous run never linger.
func NewSink(outDir string, template *ProxyTemplate, audit *AuditLog) (*Sink, error) {
	if err := os.MkdirAll(filepath.Join(outDir, "output_configs"), 0o755); err != nil {
		return nil, newSetupError("create output directory", err)
	}
	errPath := filepath.Join(outDir, "scanner_error.log")
	os.Remove(errPath)
	f, err := os.OpenFile(errPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, newSetupError("open error log", err)
	}
	return &Sink{outDir: outDir, template: template, audit: audit, errLog: f, byIP: map[string]int{}}, nil
}

// Add records a verified entry, re-ranks, writes its config/link files,
// and rewrites the ranked CSV. If an entry for this IP already exists, the
// new one replaces it only when its score is strictly better; otherwise
// Add is a no-op and returns false. Returns true once the entry was
// accepted.
func (s *Sink) Add(e VerifiedEntry) bool {
	s.mu.Lock()
	if i, ok := s.byIP[e.IP]; ok {
		if e.Score <= s.entries[i].Score {
			s.mu.Unlock()
			return false
		}
		s.entries[i] = e
	} else {
		s.byIP[e.IP] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	ranked := s.rankedLocked()
	s.mu.Unlock()

	if err := s.writeConfig(e); err != nil {
		Log.Error("failed to write output config", "error", err, "ip", e.IP)
		s.logError(err)
	}
	if err := s.appendLink(e); err != nil {
		Log.Error("failed to append vless link", "error", err, "ip", e.IP)
		s.logError(err)
	}
	if err := s.saveCSV(ranked, filepath.Join(s.outDir, "clean_ips.csv")); err != nil {
		Log.Error("failed to save csv", "error", err)
		s.logError(err)
	}
	if s.audit != nil {
		s.audit.LogVerified(e)
	}
	return true
}

// Count returns the number of verified entries recorded so far.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Entries returns a ranked snapshot of every verified entry.
func (s *Sink) Entries() []VerifiedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rankedLocked()
}

// SaveCSV writes the current ranked entries to an arbitrary path,
// exposed for a manual "save now" action independent of the per-entry
// autosave, mirroring the original's _manual_save_csv.
func (s *Sink) SaveCSV(path string) error {
	return s.saveCSV(s.Entries(), path)
}

// Logger returns the error-log file handle so the orchestrator can wire
// its own warnings into the same per-run log.
func (s *Sink) Logger() *os.File {
	return s.errLog
}

// rankedLocked returns a sorted, ranked copy of s.entries without
// disturbing the insertion-order slice the byIP dedup index points into.
// Caller must hold s.mu.
func (s *Sink) rankedLocked() []VerifiedEntry {
	ranked := append([]VerifiedEntry(nil), s.entries...)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

func (s *Sink) writeConfig(e VerifiedEntry) error {
	if s.template == nil {
		return nil
	}
	t := s.template.Specialize(e.IP, e.Port)
	data, err := buildXrayConfig(t, 0)
	if err != nil {
		return err
	}
	path := filepath.Join(s.outDir, "output_configs", fmt.Sprintf("config_%s.json", sanitizeIPForFilename(e.IP)))
	return os.WriteFile(path, data, 0o644)
}

func (s *Sink) appendLink(e VerifiedEntry) error {
	if s.template == nil {
		return nil
	}
	t := s.template.Specialize(e.IP, e.Port)
	uri, err := SerializeURI(t)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(s.outDir, "output_configs", "vless_links.txt"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(uri + "\n")
	return err
}

func (s *Sink) saveCSV(entries []VerifiedEntry, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"Rank", "IP", "Speed-KBps", "TLS-Latency-ms", "TTFB-ms", "Xray-Latency-ms", "Score"}); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{
			strconv.Itoa(e.Rank),
			e.IP,
			strconv.FormatFloat(e.SpeedKBps, 'f', 1, 64),
			strconv.FormatFloat(e.TLSLatencyMs, 'f', 1, 64),
			strconv.FormatFloat(e.TTFBMs, 'f', 1, 64),
			strconv.FormatFloat(e.XrayLatencyMs, 'f', 1, 64),
			strconv.FormatFloat(e.Score, 'f', 1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) logError(err error) {
	if s.errLog == nil {
		return
	}
	fmt.Fprintf(s.errLog, "%s\n", err.Error())
}

// Close releases the error-log file handle.
func (s *Sink) Close() error {
	if s.errLog == nil {
		return nil
	}
	return s.errLog.Close()
}

func sanitizeIPForFilename(ip string) string {
	out := make([]rune, 0, len(ip))
	for _, r := range ip {
		if r == ':' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
