package callquality

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
)

type Schedule interface {
	// Exclusive
	Next(after time.Time) time.Time
}

// Interval polls every fixed period.
type Interval time.Duration

func (i Interval) Next(after time.Time) time.Time {
	return after.Add(time.Duration(i))
}

type CronSchedule struct {
	spec string
	expr *cronexpr.Expression
}

func NewCronSchedule(cron string) (*CronSchedule, error) {
	if expr, err := cronexpr.Parse(cron); err != nil {
		return nil, err
	} else {
		return &CronSchedule{spec: cron, expr: expr}, nil
	}
}

func (c *CronSchedule) Next(after time.Time) time.Time {
	return c.expr.Next(after)
}

func (c *CronSchedule) String() string { return c.spec }

// ParseSchedule accepts a bare number of seconds ("30"), a Go duration
// ("1m30s") or a cron expression ("*/5 * * * *").
func ParseSchedule(spec string) (Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("empty polling schedule")
	}
	if secs, err := strconv.Atoi(spec); err == nil {
		if secs <= 0 {
			return nil, fmt.Errorf("polling interval must be positive, got %d", secs)
		}
		return Interval(time.Duration(secs) * time.Second), nil
	}
	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("polling interval must be positive, got %s", d)
		}
		return Interval(d), nil
	}
	cron, err := NewCronSchedule(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid polling schedule %q: %w", spec, err)
	}
	return cron, nil
}
