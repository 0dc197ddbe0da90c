package onboard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/voiceops/uckit/ucdriver"
)

const masked = "*****"

var errSkipBlock = errors.New("block skipped")

// Runner executes sequences against an open session.
type Runner struct {
	// Timeout applies to steps that do not set their own.
	Timeout time.Duration
	Logger  *log.Entry
}

func (r *Runner) logger() *log.Entry {
	if r.Logger != nil {
		return r.Logger
	}
	return log.NewEntry(log.StandardLogger())
}

// Run executes seq step by step. Transport failures and steps whose policy
// is Fail abort the run; every verification is recorded and never aborts.
func (r *Runner) Run(s ucdriver.Session, seq Sequence, vars Vars) Outcome {
	run := &run{Runner: r, session: s, vars: vars, out: Outcome{Family: seq.Family}}
	if run.vars == nil {
		run.vars = Vars{}
	}
	err := run.steps(seq.Steps)
	if err != nil && !errors.Is(err, errSkipBlock) {
		run.out.Err = err
	}
	return run.out
}

type run struct {
	*Runner
	session ucdriver.Session
	vars    Vars
	out     Outcome
}

func (r *run) steps(steps []Step) error {
	for _, st := range steps {
		var err error
		switch st := st.(type) {
		case Send:
			err = r.send(st)
		case Capture:
			err = r.capture(st)
		case Verify:
			err = r.verify(st)
		case When:
			err = r.when(st)
		default:
			err = fmt.Errorf("unknown step %T", st)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *run) timeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return r.Timeout
}

func (r *run) record(c Check) {
	if c.Passed {
		r.logger().Infof("Successfully set %s.", c.Name)
	} else {
		r.logger().Warnf("Failed to set %s. %s", c.Name, c.Detail)
	}
	r.out.Checks = append(r.out.Checks, c)
}

// absent applies policy to a step whose expected output did not show up.
func (r *run) absent(policy OnAbsent, name string, err error) error {
	if ucdriver.IsTransportError(err) || ucdriver.IsAuthError(err) {
		return err
	}
	switch policy {
	case Continue:
		r.record(Check{Name: name, Detail: err.Error()})
		return nil
	case SkipBlock:
		r.record(Check{Name: name, Detail: err.Error()})
		return errSkipBlock
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (r *run) send(st Send) error {
	cmd, err := r.vars.Expand(st.Command)
	if err != nil {
		return err
	}
	shown := cmd
	if st.Sensitive {
		shown = masked
	}
	expect := st.Expect
	if expect.IsZero() {
		expect = r.session.PromptPattern()
	}
	r.logger().Debugf("send %q, expect %q", shown, expect.String())
	if _, err := r.session.Exec(cmd, expect, r.timeout(st.Timeout)); err != nil {
		return r.absent(st.OnAbsent, fmt.Sprintf("send %q", shown), err)
	}
	return nil
}

func (r *run) capture(st Capture) error {
	cmd, err := r.vars.Expand(st.Command)
	if err != nil {
		return err
	}
	expr, err := r.vars.ExpandQuoted(st.Pattern)
	if err != nil {
		return err
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("capture %s: %w", st.Var, err)
	}
	out, err := r.session.Exec(cmd, r.session.PromptPattern(), r.timeout(st.Timeout))
	if err != nil {
		return r.absent(st.OnAbsent, "capture "+st.Var, err)
	}
	m := re.FindStringSubmatch(out)
	if len(m) < 2 || m[1] == "" {
		return r.absent(st.OnAbsent, "capture "+st.Var, fmt.Errorf("no match for %q in output of %q", expr, cmd))
	}
	r.vars[st.Var] = strings.TrimSpace(m[1])
	r.logger().Debugf("captured %s=%s", st.Var, r.vars[st.Var])
	return nil
}

func (r *run) verify(st Verify) error {
	cmd, err := r.vars.Expand(st.Command)
	if err != nil {
		return err
	}
	out, err := r.session.Exec(cmd, r.session.PromptPattern(), r.timeout(st.Timeout))
	if err != nil && (ucdriver.IsTransportError(err) || ucdriver.IsAuthError(err)) {
		return err
	}
	for _, exp := range st.Checks {
		name, nerr := r.vars.Expand(exp.Name)
		if nerr != nil {
			return nerr
		}
		c := Check{Name: name, Passed: err == nil}
		if err != nil {
			c.Detail = err.Error()
			r.record(c)
			continue
		}
		for _, w := range exp.Want {
			want, werr := r.vars.Expand(w)
			if werr != nil {
				return werr
			}
			if !strings.Contains(out, want) {
				c.Passed = false
				if st.Sensitive {
					want = masked
				}
				c.Detail = fmt.Sprintf("%q not found in output of %q", want, cmd)
				break
			}
		}
		r.record(c)
	}
	return nil
}

func (r *run) when(st When) error {
	var out string
	if st.Command != "" {
		cmd, err := r.vars.Expand(st.Command)
		if err != nil {
			return err
		}
		out, err = r.session.Exec(cmd, r.session.PromptPattern(), r.Timeout)
		if err != nil {
			return r.absent(Fail, st.Name, err)
		}
	}
	if st.Cond != nil && !st.Cond(out, r.vars) {
		r.logger().Debugf("skipping %s", st.Name)
		return nil
	}
	if err := r.steps(st.Steps); err != nil && !errors.Is(err, errSkipBlock) {
		return err
	}
	return nil
}
