package orchestrate

import (
	"context"
	"errors"

	"github.com/voiceops/uckit/report"
)

// RowWriter is implemented by report.CSVSink.
type RowWriter interface {
	WriteRow(row []string) error
}

// HistoryRecorder is implemented by report.History.
type HistoryRecorder interface {
	Record(ctx context.Context, e report.Entry) error
}

// ReportSink writes each result as one report row and, when History is set,
// one history entry.
type ReportSink struct {
	Rows    RowWriter
	Format  func(Result) []string
	History HistoryRecorder
	RunID   string
	Tool    string
}

func (s *ReportSink) Write(ctx context.Context, r Result) error {
	var errs []error
	if s.Rows != nil {
		format := s.Format
		if format == nil {
			format = SummaryRow
		}
		errs = append(errs, s.Rows.WriteRow(format(r)))
	}
	if s.History != nil {
		errs = append(errs, s.History.Record(ctx, report.Entry{
			RunID:      s.RunID,
			Tool:       s.Tool,
			Host:       r.Entry.Address,
			DeviceType: r.Entry.DeviceType,
			Status:     string(r.Status),
			Detail:     r.Detail,
			At:         r.Started,
		}))
	}
	return errors.Join(errs...)
}

// SummaryHeader is the header of SummaryRow reports.
var SummaryHeader = []string{"ip", "devicetype", "status", "detail", "duration"}

// SummaryRow is the default row layout: address, type, status, detail, duration.
func SummaryRow(r Result) []string {
	return append([]string{
		r.Entry.Address,
		r.Entry.DeviceType,
		string(r.Status),
		r.Detail,
		r.Duration.Round(1e6).String(),
	}, r.Fields...)
}
