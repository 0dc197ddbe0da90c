// Package onboard applies baseline settings to voice-network devices as
// fixed sequences of send/expect steps, verifying each setting afterwards.
package onboard

import (
	"fmt"
	"regexp"
	"time"

	"github.com/voiceops/uckit/ucdriver"
)

// OnAbsent says what happens when a step's expected output never shows up.
type OnAbsent int

const (
	// Fail aborts the device with a session error.
	Fail OnAbsent = iota
	// Continue records a failed check and goes on with the next step.
	Continue
	// SkipBlock records a failed check and abandons the enclosing When block.
	// Outside a block it ends the sequence.
	SkipBlock
)

func (o OnAbsent) String() string {
	switch o {
	case Fail:
		return "fail"
	case Continue:
		return "continue"
	case SkipBlock:
		return "skip-block"
	}
	return fmt.Sprintf("OnAbsent(%d)", int(o))
}

// Step is one of Send, Capture, Verify or When.
type Step interface {
	isStep()
}

// Send writes Command and waits for Expect, the session prompt by default.
// Sensitive commands are masked in logs and checks.
type Send struct {
	Command   string
	Expect    ucdriver.Pattern
	Timeout   time.Duration
	OnAbsent  OnAbsent
	Sensitive bool
}

// Capture runs Command and stores the first group of Pattern in Var.
// Variables referenced in Pattern are regex-quoted before compiling.
type Capture struct {
	Command  string
	Pattern  string
	Var      string
	Timeout  time.Duration
	OnAbsent OnAbsent
}

// Expectation passes when every Want string appears in the output.
type Expectation struct {
	Name string
	Want []string
}

// Verify runs Command once and evaluates each expectation against its output.
// A failed expectation never stops the sequence.
type Verify struct {
	Command   string
	Checks    []Expectation
	Timeout   time.Duration
	Sensitive bool
}

// When runs Steps only if Cond holds. If Command is set it is run first and
// its output handed to Cond.
type When struct {
	Name    string
	Command string
	Cond    func(out string, vars Vars) bool
	Steps   []Step
}

func (Send) isStep()    {}
func (Capture) isStep() {}
func (Verify) isStep()  {}
func (When) isStep()    {}

// Sequence is the ordered script for one device family.
type Sequence struct {
	Family string
	Steps  []Step
}

// Vars holds the values substituted for ${name} in commands and patterns.
type Vars map[string]string

var varRef = regexp.MustCompile(`\$\{(\w+)\}`)

// Expand replaces every ${name}. Referencing an unset variable is an error.
func (v Vars) Expand(s string) (string, error) {
	return v.expand(s, func(x string) string { return x })
}

// ExpandQuoted is Expand with values quoted for use inside a regular expression.
func (v Vars) ExpandQuoted(s string) (string, error) {
	return v.expand(s, regexp.QuoteMeta)
}

func (v Vars) expand(s string, quote func(string) string) (string, error) {
	var missing string
	out := varRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := varRef.FindStringSubmatch(ref)[1]
		val, ok := v[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return ref
		}
		return quote(val)
	})
	if missing != "" {
		return out, fmt.Errorf("undefined variable %q", missing)
	}
	return out, nil
}

// Check is the result of one verification.
type Check struct {
	Name   string
	Passed bool
	Detail string
}

// Outcome is everything that happened to one device. Err is set only when
// the sequence was aborted; failed checks alone leave it nil.
type Outcome struct {
	Family string
	Checks []Check
	Err    error
}

// Failed returns the checks that did not pass.
func (o Outcome) Failed() []Check {
	var failed []Check
	for _, c := range o.Checks {
		if !c.Passed {
			failed = append(failed, c)
		}
	}
	return failed
}

func (o Outcome) OK() bool {
	return o.Err == nil && len(o.Failed()) == 0
}
