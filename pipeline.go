package cfscan

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// State is the pipeline's run state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// queuePutTimeout bounds how long a stage blocks trying to hand a
// candidate to the next stage's queue. A full downstream queue means that
// stage is overloaded; rather than block the upstream worker (and
// eventually the whole pipeline) indefinitely, the candidate is dropped.
// This is intentional load shedding, not a bug: a scan that never drops
// anything under load isn't bounded at all.
const queuePutTimeout = 1 * time.Second

// defaultProbePort is used for the TCP/TLS/Speed stages when no proxy
// template is loaded — those stages always probe the standard HTTPS
// port regardless of whether a proxy is configured.
const defaultProbePort = 443

// Pipeline wires the sampler, URI codec, and probers into the four-stage
// bounded-queue scanning pipeline:
//
//	Producer → rawQ → TCP stage → tcpQ → TLS stage → tlsQ → Speed stage → xrayQ → Proxy stage → Sink
//
// Each stage runs its own worker pool; back pressure comes from the
// channels between stages blocking producers once a downstream pool
// falls behind, bounded by queuePutTimeout so a stalled stage sheds load
// instead of stalling every stage behind it. Pause/resume uses a gate
// modeled on a closed-channel "ready" signal (stewartpark-private-llm's
// cli-proxy.go openGate/closeGate), and shutdown is a single context
// cancellation shared by every worker.
type Pipeline struct {
	sampler  *GroupSampler
	template *ProxyTemplate
	domains  []string
	proxyOpt ProxyProbeOptions
	sink     *Sink

	// proxyEnabled is false when neither config.json nor config.txt was
	// available to load (or parsing one hit a TemplateError): the proxy
	// stage (C6) is skipped entirely and the pipeline terminates after
	// the speed stage (C5), emitting direct, proxy-less verified entries.
	proxyEnabled bool

	// Debug gates verbose per-candidate logging independent of the
	// slog level, mirroring the original's separate debug toggle.
	Debug bool

	state atomic.Int64
	gate  *gate

	target atomic.Int64

	rawQ  chan *Candidate
	tcpQ  chan *Candidate
	tlsQ  chan *Candidate
	xrayQ chan *Candidate

	activeTCP   atomic.Int64
	activeTLS   atomic.Int64
	activeSpeed atomic.Int64
	activeXray  atomic.Int64

	workers workerCounts

	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
}

type workerCounts struct {
	tcp, tls, speed, xray int
}

// PipelineOptions configures a new Pipeline.
type PipelineOptions struct {
	Sampler  *GroupSampler
	Template *ProxyTemplate
	Domains  []string
	ProxyOpt ProxyProbeOptions
	Sink     *Sink

	// Power is a 0..1 knob scaling worker-pool and queue sizes against
	// the host's available socket capacity. 1.0 uses the full capacity
	// computed by socketCapacity.
	Power float64
	// Target is the number of verified entries that triggers an
	// automatic stop. 0 means unbounded (scan until stopped).
	Target int
	Debug  bool
}

// NewPipeline builds a Pipeline ready to Start. Worker-pool sizes follow
// the original's ratio split of the host's socket capacity: 70% TCP,
// 20% TLS, 10% Speed, with Xray fixed at 15 regardless of power (proxy
// binaries are the scarcest, heaviest-weight resource) — unless no proxy
// template was loaded, in which case the proxy stage is disabled and no
// xray workers are spawned at all.
func NewPipeline(opt PipelineOptions) *Pipeline {
	active := socketCapacity(opt.Power)
	proxyEnabled := opt.Template != nil
	xray := 0
	if proxyEnabled {
		xray = 15
	}
	wc := workerCounts{
		tcp:   maxInt(5, int(0.70*float64(active))),
		tls:   maxInt(2, int(0.20*float64(active))),
		speed: maxInt(1, int(0.10*float64(active))),
		xray:  xray,
	}

	p := &Pipeline{
		sampler:      opt.Sampler,
		template:     opt.Template,
		domains:      opt.Domains,
		proxyOpt:     opt.ProxyOpt,
		sink:         opt.Sink,
		proxyEnabled: proxyEnabled,
		Debug:        opt.Debug,
		gate:         newGate(true),
		workers:      wc,
		rawQ:         make(chan *Candidate, 2*wc.tcp),
		tcpQ:         make(chan *Candidate, 2*wc.tls),
		tlsQ:         make(chan *Candidate, 2*wc.speed),
		xrayQ:        make(chan *Candidate, 3*maxInt(wc.xray, 1)),
	}
	p.target.Store(int64(opt.Target))
	p.state.Store(int64(StateIdle))
	return p
}

// socketCapacity estimates a safe number of concurrent sockets for this
// host, scaled by power. Matches get_system_socket_capacity's
// cores-based estimate (cores*300, capped at 3000).
func socketCapacity(power float64) int {
	if power <= 0 {
		power = 1
	}
	if power > 1 {
		power = 1
	}
	cap := runtime.NumCPU() * 300
	if cap > 3000 {
		cap = 3000
	}
	c := int(float64(cap) * power)
	if c < 8 {
		c = 8
	}
	return c
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Start launches the producer and every stage's worker pool. It returns
// immediately; use Wait to block until the scan stops.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.state.Store(int64(StateRunning))

	p.wg.Add(1)
	go p.produce(ctx)

	var tcpWG, tlsWG, speedWG sync.WaitGroup

	tcpWG.Add(p.workers.tcp)
	for i := 0; i < p.workers.tcp; i++ {
		p.wg.Add(1)
		go p.runTCP(ctx, &tcpWG)
	}
	go func() { tcpWG.Wait(); close(p.tcpQ) }()

	tlsWG.Add(p.workers.tls)
	for i := 0; i < p.workers.tls; i++ {
		p.wg.Add(1)
		go p.runTLS(ctx, &tlsWG)
	}
	go func() { tlsWG.Wait(); close(p.tlsQ) }()

	speedWG.Add(p.workers.speed)
	for i := 0; i < p.workers.speed; i++ {
		p.wg.Add(1)
		go p.runSpeed(ctx, &speedWG)
	}
	go func() { speedWG.Wait(); close(p.xrayQ) }()

	if p.proxyEnabled {
		for i := 0; i < p.workers.xray; i++ {
			p.wg.Add(1)
			go p.runProxy(ctx)
		}
	}
}

// Wait blocks until every worker has exited, which happens once Stop is
// called or the context passed to Start is cancelled.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Pause blocks every stage at its next gate check without losing
// in-flight work.
func (p *Pipeline) Pause() {
	if State(p.state.Load()) != StateRunning {
		return
	}
	p.state.Store(int64(StatePaused))
	p.gate.Close()
}

// Resume releases a paused pipeline.
func (p *Pipeline) Resume() {
	if State(p.state.Load()) != StatePaused {
		return
	}
	p.state.Store(int64(StateRunning))
	p.gate.Open()
}

// Stop cancels every worker and unblocks anything waiting on the gate.
// Safe to call more than once and from any goroutine, including from
// inside a worker when the target count is reached.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.state.Store(int64(StateStopping))
		p.gate.Open() // don't let a paused scan deadlock on shutdown
		if p.cancel != nil {
			p.cancel()
		}
	})
}

// State reports the current run state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// SetTarget changes the auto-stop threshold mid-scan. If the sink
// already holds at least n verified entries, the pipeline stops
// immediately — mirrors the original's "lowered below current count"
// edge case.
func (p *Pipeline) SetTarget(n int) {
	p.target.Store(int64(n))
	if n > 0 && p.sink != nil && p.sink.Count() >= n {
		p.Stop()
	}
}

// Progress reports queue depth and in-flight worker counts for each
// stage, for an external UI to poll.
type Progress struct {
	RawQueue, TCPQueue, TLSQueue, XrayQueue       int
	ActiveTCP, ActiveTLS, ActiveSpeed, ActiveXray int64
}

func (p *Pipeline) Progress() Progress {
	return Progress{
		RawQueue:    len(p.rawQ),
		TCPQueue:    len(p.tcpQ),
		TLSQueue:    len(p.tlsQ),
		XrayQueue:   len(p.xrayQ),
		ActiveTCP:   p.activeTCP.Load(),
		ActiveTLS:   p.activeTLS.Load(),
		ActiveSpeed: p.activeSpeed.Load(),
		ActiveXray:  p.activeXray.Load(),
	}
}

// putWithTimeout hands c to q, giving up and dropping it (counted under
// cfscan.<queue>.dropped) if the receiving stage doesn't make room
// within queuePutTimeout. Returns false on drop or context cancellation.
func (p *Pipeline) putWithTimeout(ctx context.Context, q chan *Candidate, c *Candidate, queue string) bool {
	timer := time.NewTimer(queuePutTimeout)
	defer timer.Stop()
	select {
	case q <- c:
		return true
	case <-timer.C:
		getVarInt(queue, "dropped").Add(1)
		return false
	case <-ctx.Done():
		return false
	}
}

func (p *Pipeline) produce(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.rawQ)

	port := defaultProbePort
	if p.template != nil {
		port = p.template.Port
	}

	for {
		if err := p.gate.Wait(ctx); err != nil {
			return
		}
		ip, err := p.sampler.NextIP()
		if err != nil {
			Log.Error("sampler exhausted", "error", err)
			p.Stop()
			return
		}
		c := &Candidate{IP: ip.String(), Port: port, sampledAt: time.Now()}
		p.putWithTimeout(ctx, p.rawQ, c, "raw")
	}
}

func (p *Pipeline) runTCP(ctx context.Context, stageWG *sync.WaitGroup) {
	defer p.wg.Done()
	defer stageWG.Done()
	for c := range p.rawQ {
		if p.gate.Wait(ctx) != nil {
			return
		}
		p.activeTCP.Add(1)
		res, err := TCPProbe(ctx, c.IP, c.Port)
		p.activeTCP.Add(-1)
		if err != nil {
			p.logReject("tcp", err)
			continue
		}
		getVarInt("tcp", "accepted").Add(1)
		p.putWithTimeout(ctx, p.tcpQ, res, "tcp")
	}
}

func (p *Pipeline) runTLS(ctx context.Context, stageWG *sync.WaitGroup) {
	defer p.wg.Done()
	defer stageWG.Done()
	sni := p.pickSNI()
	for c := range p.tcpQ {
		if p.gate.Wait(ctx) != nil {
			return
		}
		p.activeTLS.Add(1)
		res, err := TLSProbe(ctx, c.IP, c.Port, sni)
		p.activeTLS.Add(-1)
		if err != nil {
			p.logReject("tls", err)
			continue
		}
		getVarInt("tls", "accepted").Add(1)
		if p.sampler != nil {
			if subnet := hotSubnetForIP(res.IP); subnet != nil {
				p.sampler.RecordHit(subnet)
			}
		}
		p.putWithTimeout(ctx, p.tlsQ, res, "tls")
	}
}

func (p *Pipeline) runSpeed(ctx context.Context, stageWG *sync.WaitGroup) {
	defer p.wg.Done()
	defer stageWG.Done()
	sni := p.pickSNI()
	for c := range p.tlsQ {
		if p.gate.Wait(ctx) != nil {
			return
		}
		p.activeSpeed.Add(1)
		res, err := SpeedProbe(ctx, c.IP, c.Port, sni, "/__down?bytes=200000")
		p.activeSpeed.Add(-1)
		if err != nil {
			p.logReject("speed", err)
			continue
		}
		getVarInt("speed", "accepted").Add(1)
		res.TLSLatencyMs = c.TLSLatencyMs
		res.TLSVersion = c.TLSVersion

		if !p.proxyEnabled {
			// No proxy stage to hand off to: this candidate is already
			// fully verified. Score against TLS latency since there's
			// no proxy round trip to score against.
			p.commit(VerifiedEntry{
				IP:            res.IP,
				Port:          res.Port,
				TLSLatencyMs:  res.TLSLatencyMs,
				SpeedKBps:     res.SpeedKBps,
				TTFBMs:        res.TTFBMs,
				XrayLatencyMs: 0,
				Score:         score(res.SpeedKBps, res.TLSLatencyMs),
			})
			continue
		}
		p.putWithTimeout(ctx, p.xrayQ, res, "xray")
	}
}

func (p *Pipeline) runProxy(ctx context.Context) {
	defer p.wg.Done()
	for c := range p.xrayQ {
		if p.gate.Wait(ctx) != nil {
			return
		}
		p.activeXray.Add(1)
		res, err := ProxyProbe(ctx, p.template, c.IP, c.Port, p.proxyOpt)
		p.activeXray.Add(-1)
		if err != nil {
			p.logReject("proxy", err)
			continue
		}
		getVarInt("proxy", "accepted").Add(1)
		p.commit(VerifiedEntry{
			IP:            c.IP,
			Port:          c.Port,
			TLSLatencyMs:  c.TLSLatencyMs,
			SpeedKBps:     c.SpeedKBps,
			TTFBMs:        c.TTFBMs,
			XrayLatencyMs: res.XrayLatencyMs,
			Score:         score(c.SpeedKBps, res.XrayLatencyMs),
		})
	}
}

// commit records a fully verified entry and stops the scan once the
// target count is reached, shared by the proxy stage's normal path and
// the speed stage's direct path when the proxy stage is disabled.
func (p *Pipeline) commit(entry VerifiedEntry) {
	if !p.sink.Add(entry) {
		return
	}
	target := p.target.Load()
	if target > 0 && int64(p.sink.Count()) >= target {
		Log.Info("target reached, stopping", "count", p.sink.Count())
		p.Stop()
	}
}

func (p *Pipeline) pickSNI() string {
	if len(p.domains) == 0 {
		return "speed.cloudflare.com"
	}
	return p.domains[time.Now().UnixNano()%int64(len(p.domains))]
}

// logReject records a stage rejection in the cfscan.<stage>.rejected
// counters and, when Debug is set, logs it at debug level. Rejects are
// expected and high-volume, so they're always counted but only ever
// logged above Debug if they're not a CandidateRejectError.
func (p *Pipeline) logReject(stage string, err error) {
	getVarInt(stage, "rejected").Add(1)
	if ce, ok := err.(*CandidateRejectError); ok {
		getVarMap(stage, "reject_reason").Add(ce.Reason, 1)
		if p.Debug {
			Log.Debug("candidate rejected", "stage", ce.Stage, "ip", ce.IP, "reason", ce.Reason)
		}
		return
	}
	Log.Warn("stage error", "stage", stage, "error", err)
}
