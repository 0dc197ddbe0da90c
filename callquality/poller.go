// Package callquality logs per-leg voice quality counters of every active
// call on a voice gateway, poll after poll, until stopped.
package callquality

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/voiceops/uckit/scrape"
	"github.com/voiceops/uckit/ucdriver"
)

// DefaultLogFile is where polls are appended unless configured otherwise.
const DefaultLogFile = "CallQualityLog.csv"

// TimestampLayout formats the row written before each poll's legs.
const TimestampLayout = "01_02_15:04:05"

// Header returns the column names of the call-quality log.
func Header() []string {
	h := make([]string, len(scrape.CallQualityFields))
	for i, f := range scrape.CallQualityFields {
		h[i] = f.Name
	}
	return h
}

// ShowCommand lists active calls, filtered down to the counters we log.
func ShowCommand() string {
	return "show call active voice | include " + scrape.CallQualityFilter
}

// Commander runs one exec command; *ucdriver.IOSDeviceConnection is one.
type Commander interface {
	SendCommand(cmd string) (string, error)
}

// RowWriter is implemented by report.CSVSink.
type RowWriter interface {
	WriteRow(row []string) error
}

type Poller struct {
	Device   Commander
	Rows     RowWriter
	Schedule Schedule
	// Now defaults to time.Now.
	Now func() time.Time
}

func (p *Poller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// PollOnce writes a timestamp row and one row per active call leg. It
// returns the number of legs written.
func (p *Poller) PollOnce() (int, error) {
	out, err := p.Device.SendCommand(ShowCommand())
	if err != nil {
		return 0, fmt.Errorf("failed to list active calls: %w", err)
	}
	legs := scrape.CallLegs(out)
	if err := p.Rows.WriteRow([]string{p.now().Format(TimestampLayout)}); err != nil {
		return 0, err
	}
	for _, leg := range legs {
		if err := p.Rows.WriteRow(leg.Values); err != nil {
			return 0, err
		}
	}
	log.Debugf("Logged %d call legs", len(legs))
	return len(legs), nil
}

// Run polls on Schedule until ctx is done or the session is lost. A poll
// that times out is logged and the next one proceeds as scheduled.
func (p *Poller) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		n, err := p.PollOnce()
		switch {
		case err == nil:
			log.Infof("Polled %d call legs", n)
		case ucdriver.IsTransportError(err):
			return err
		default:
			log.Errorf("Poll failed: %v", err)
		}

		now := p.now()
		next := p.Schedule.Next(now)
		if next.IsZero() {
			log.Info("Polling schedule has no further runs")
			return nil
		}
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("Call-quality polling stopped")
			return nil
		case <-timer.C:
		}
	}
	log.Info("Call-quality polling stopped")
	return nil
}
