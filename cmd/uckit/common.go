package main

import (
	"context"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/voiceops/uckit/inventory"
	"github.com/voiceops/uckit/orchestrate"
	"github.com/voiceops/uckit/probe"
	"github.com/voiceops/uckit/report"
	"github.com/voiceops/uckit/ucdriver"
)

// connectHelp ends the help of every tool that logs in to IOS devices.
const connectHelp = `

IOS devices are tried over SSH first and over Telnet when SSH cannot be
reached. A login rejected over SSH is not retried over Telnet unless the
config file sets connect.fallback_on_auth_failure: true.`

func iosConnector() *ucdriver.Connector[*ucdriver.IOSDeviceConnection] {
	c := ucdriver.NewIOSConnector(cfg.Connect.SSHPort, cfg.Connect.TelnetPort, cfg.Connect.DialTimeout)
	c.FallbackOnAuthFailure = cfg.Connect.FallbackOnAuthFailure
	return c
}

func vosConnector() *ucdriver.Connector[*ucdriver.VOSDeviceConnection] {
	return ucdriver.NewVOSConnector(cfg.Connect.SSHPort, cfg.Connect.DialTimeout)
}

func prober() probe.Prober {
	if cfg.Probe.Method == "tcp" {
		return &probe.TCPProber{Port: cfg.Probe.TCPPort, Timeout: cfg.Probe.Timeout}
	}
	p := probe.NewPingProber(cfg.Probe.Count, cfg.Probe.Timeout)
	p.MinReplies = cfg.Probe.MinReplies
	return p
}

// batch is one run of a tool over a device list.
type batch struct {
	tool     string
	list     *inventory.List
	dir      string
	prefix   string
	header   []string
	format   func(orchestrate.Result) []string
	handlers map[string]orchestrate.Handler
	fallback orchestrate.Handler
}

func (b batch) run(ctx context.Context) ([]orchestrate.Result, error) {
	rows, err := report.OpenCSV(filepath.Join(b.dir, report.TimestampedName(b.prefix, ".csv", time.Now())), b.header)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sink := &orchestrate.ReportSink{Rows: rows, Format: b.format, RunID: runID, Tool: b.tool}
	if cfg.History.Path != "" {
		history, err := report.OpenHistory(cfg.History.Path)
		if err != nil {
			log.Warnf("Run history disabled: %v", err)
		} else {
			defer history.Close()
			sink.History = history
		}
	}

	o := &orchestrate.Orchestrator{
		Prober:   prober(),
		Handlers: b.handlers,
		Default:  b.fallback,
		Sink:     sink,
	}
	results, err := o.Run(ctx, b.list)
	summarize(results)
	return results, err
}

func summarize(results []orchestrate.Result) {
	counts := map[orchestrate.Status]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	log.WithFields(log.Fields{
		"success":            counts[orchestrate.Success],
		"unreachable":        counts[orchestrate.Unreachable],
		"connector_error":    counts[orchestrate.ConnectorError],
		"verification_error": counts[orchestrate.VerificationError],
		"unexpected_error":   counts[orchestrate.UnexpectedError],
	}).Infof("Processed %d devices", len(results))
}
