package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/folbricht/cfscan"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	power       float64
	target      int
	debug       bool
	logLevel    uint32
	proxyBin    string
	outDir      string
	verifyURL   string
	mixedClient bool
	syslogAddr  string
}

func main() {
	opt := options{logLevel: uint32(logrus.InfoLevel)}

	cmd := &cobra.Command{
		Use:   "cfscan [directory]",
		Short: "Scan Cloudflare edge IPs for working VLESS/Trojan endpoints",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return run(dir, opt)
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.Float64Var(&opt.power, "power", 1.0, "worker-pool scaling knob, 0..1")
	flags.IntVar(&opt.target, "target", 0, "stop after this many verified endpoints (0 = unbounded)")
	flags.BoolVar(&opt.debug, "debug", false, "log every candidate reject, not just stage errors")
	flags.Uint32VarP(&opt.logLevel, "log-level", "l", opt.logLevel, "log level, 0-2=error, 3=warn, 4=info, 5-6=debug")
	flags.StringVar(&opt.proxyBin, "proxy-bin", "xray", "path to the xray (or compatible) binary")
	flags.StringVar(&opt.outDir, "out", "output_configs", "output directory for configs, links, and csv")
	flags.StringVar(&opt.verifyURL, "verify-url", "http://cp.cloudflare.com/", "URL requested through the proxy to confirm it works")
	flags.BoolVar(&opt.mixedClient, "mixed-client", false, "verify through the proxy's SOCKS5 mixed-inbound half instead of HTTP CONNECT")
	flags.StringVar(&opt.syslogAddr, "syslog-addr", "", "remote syslog address for a verified-entry audit trail (empty disables it)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(dir string, opt options) error {
	cfscan.SetLevel(logrus.Level(opt.logLevel))

	groups, err := cfscan.LoadNetworkGroups(dir)
	if err != nil {
		return err
	}
	domains, err := cfscan.LoadDomains(dir)
	if err != nil {
		return err
	}
	template, err := cfscan.LoadProxyTemplate(dir)
	if err != nil {
		return err
	}

	settings, err := loadSettings(dir)
	if err != nil {
		return err
	}
	settings.applyDefaults(&opt)

	var audit *cfscan.AuditLog
	if opt.syslogAddr != "" {
		audit = cfscan.NewAuditLog(cfscan.AuditLogOptions{
			Network: "udp",
			Address: opt.syslogAddr,
			Tag:     "cfscan",
		})
	}

	sink, err := cfscan.NewSink(filepath.Join(dir, opt.outDir), template, audit)
	if err != nil {
		return err
	}
	defer sink.Close()

	pipeline := cfscan.NewPipeline(cfscan.PipelineOptions{
		Sampler:  cfscan.NewGroupSampler(groups, nil),
		Template: template,
		Domains:  domains,
		Sink:     sink,
		Power:    opt.power,
		Target:   opt.target,
		Debug:    opt.debug,
		ProxyOpt: cfscan.ProxyProbeOptions{
			BinaryPath:     opt.proxyBin,
			VerifyURL:      opt.verifyURL,
			UseMixedClient: opt.mixedClient,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cfscan.Log.Info("shutting down")
		pipeline.Stop()
	}()

	pipeline.Start(ctx)
	pipeline.Wait()

	fmt.Printf("%d verified endpoints written to %s\n", sink.Count(), filepath.Join(dir, opt.outDir))
	return nil
}
