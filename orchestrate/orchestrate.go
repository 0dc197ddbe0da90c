// Package orchestrate walks a device list one device at a time: probe,
// dispatch to the handler for the device type, record exactly one result.
package orchestrate

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/voiceops/uckit/inventory"
	"github.com/voiceops/uckit/probe"
	"github.com/voiceops/uckit/ucdriver"
)

// Status is the outcome class of one device.
type Status string

const (
	Success           Status = "success"
	Unreachable       Status = "unreachable"
	ConnectorError    Status = "connector-error"
	VerificationError Status = "verification-error"
	UnexpectedError   Status = "unexpected-error"
)

// Result is the typed per-device outcome. Fields holds tool-specific report
// columns, e.g. the discovered hostname and serial.
type Result struct {
	Entry    inventory.Entry
	Status   Status
	Detail   string
	Fields   []string
	Started  time.Time
	Duration time.Duration
}

func (r Result) OK() bool { return r.Status == Success }

// ClassifyError maps a session error to a status.
func ClassifyError(err error) Status {
	switch {
	case err == nil:
		return Success
	case ucdriver.IsTransportError(err), ucdriver.IsAuthError(err):
		return ConnectorError
	}
	return UnexpectedError
}

// Handler processes one reachable device. It owns the session it opens and
// must close it on every path.
type Handler interface {
	Handle(ctx context.Context, e inventory.Entry) Result
}

type HandlerFunc func(ctx context.Context, e inventory.Entry) Result

func (f HandlerFunc) Handle(ctx context.Context, e inventory.Entry) Result {
	return f(ctx, e)
}

// Sink receives every result as soon as it is known.
type Sink interface {
	Write(ctx context.Context, r Result) error
}

// Orchestrator runs a device list strictly sequentially.
type Orchestrator struct {
	Prober probe.Prober
	// Handlers is keyed by device-type tag; Default serves everything else.
	Handlers map[string]Handler
	Default  Handler
	Sink     Sink
	Console  io.Writer
}

func (o *Orchestrator) console() io.Writer {
	if o.Console != nil {
		return o.Console
	}
	return os.Stdout
}

func (o *Orchestrator) progress(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(o.console(), msg)
	log.Info(msg)
}

// Run processes every entry of list and returns one result per data row,
// rejected rows included. It stops early only when ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, list *inventory.List) ([]Result, error) {
	total := list.Len()
	results := make([]Result, 0, total)

	emit := func(r Result) {
		results = append(results, r)
		if o.Sink != nil {
			if err := o.Sink.Write(ctx, r); err != nil {
				log.Errorf("Failed to record result for %s: %v", r.Entry.Address, err)
			}
		}
	}

	// Entries and Rejected are each in line order; merge them so the report
	// follows the device list.
	done, ri := 0, 0
	reject := func() {
		rej := list.Rejected[ri]
		ri++
		done++
		o.progress("PROGRESS: %d/%d", done, total)
		log.Warnf("Skipping device list line %d: %s", rej.Line, rej.Reason)
		emit(Result{
			Entry:  inventory.Entry{Line: rej.Line, Address: firstField(rej.Raw)},
			Status: UnexpectedError,
			Detail: "malformed entry: " + rej.Reason,
		})
	}
	for _, e := range list.Entries {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		for ri < len(list.Rejected) && list.Rejected[ri].Line < e.Line {
			reject()
		}
		done++
		o.progress("PROGRESS: %d/%d", done, total)
		emit(o.one(ctx, e))
	}
	for ri < len(list.Rejected) {
		reject()
	}
	o.progress("PROGRESS: COMPLETE")
	return results, nil
}

func firstField(row []string) string {
	if len(row) == 0 {
		return ""
	}
	return strings.TrimSpace(row[0])
}

func (o *Orchestrator) one(ctx context.Context, e inventory.Entry) Result {
	logger := log.WithFields(log.Fields{"host": e.Address, "device_type": e.DeviceType})
	started := time.Now()
	finish := func(r Result) Result {
		r.Entry = e
		r.Started = started
		r.Duration = time.Since(started)
		return r
	}

	if o.Prober != nil {
		ok, err := o.Prober.Reachable(ctx, e.Address)
		if err != nil {
			logger.Warnf("Reachability probe failed: %v", err)
		}
		if !ok {
			fmt.Fprintf(o.console(), "No reply from %s.\n", e.Address)
			logger.Info("Unreachable, skipping")
			return finish(Result{Status: Unreachable, Detail: "No ping reply"})
		}
		logger.Infof("%s is reachable.", e.Address)
	}

	h := o.Handlers[e.DeviceType]
	if h == nil {
		h = o.Default
	}
	if h == nil {
		logger.Errorf("No handler for device type %q", e.DeviceType)
		return finish(Result{Status: UnexpectedError, Detail: fmt.Sprintf("unknown device type %q", e.DeviceType)})
	}

	r := o.safeHandle(ctx, h, e, logger)
	if r.Status == "" {
		r.Status = Success
	}
	switch r.Status {
	case Success:
		logger.Info("Completed successfully")
	default:
		logger.Warnf("Completed with %s: %s", r.Status, r.Detail)
	}
	return finish(r)
}

func (o *Orchestrator) safeHandle(ctx context.Context, h Handler, e inventory.Entry, logger *log.Entry) (r Result) {
	defer func() {
		if p := recover(); p != nil {
			logger.Errorf("Handler panicked: %v\n%s", p, debug.Stack())
			r = Result{Status: UnexpectedError, Detail: fmt.Sprintf("panic: %v", p)}
		}
	}()
	return h.Handle(ctx, e)
}
