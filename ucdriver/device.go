package ucdriver

import (
	"errors"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultTimeout bounds every wait for a prompt unless the caller passes its own.
const DefaultTimeout = 60 * time.Second

// Session is an open interactive device session. Send and capture happen in
// one Exec call so callers never scrape output from an earlier command.
type Session interface {
	Exec(cmd string, expect Pattern, timeout time.Duration) (string, error)
	PromptPattern() Pattern
	LastOutput() string
	Address() string
	Disconnect()
}

type readResult struct {
	text string
	err  error
}

// DeviceConnection represents a device driver with connection and command capabilities.
type DeviceConnection struct {
	Connection Transport
	Return     string
	Timeout    time.Duration

	chunks  chan readResult
	stop    chan struct{}
	pending string
	last    string
	readErr error
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b[()][AB012]`)

// cleanOutput strips terminal escape sequences and carriage returns.
func cleanOutput(s string) string {
	s = ansiEscape.ReplaceAllString(s, "")
	return strings.ReplaceAll(s, "\r", "")
}

func (d *DeviceConnection) Connect() error {
	if d.Connection == nil {
		return ErrNotConnected
	}
	if err := d.Connection.Connect(); err != nil {
		log.Errorf("Failed to connect to %s over %s: %v", d.Connection.Address(), d.Connection.Protocol(), err)
		return err
	}
	d.startReader()
	log.Infof("Connected to %s over %s", d.Connection.Address(), d.Connection.Protocol())
	return nil
}

// startReader hands the read side of the transport to one goroutine for the
// lifetime of the connection.
func (d *DeviceConnection) startReader() {
	d.chunks = make(chan readResult, 256)
	d.stop = make(chan struct{})
	go func(conn Transport, chunks chan<- readResult, stop <-chan struct{}) {
		defer close(chunks)
		for {
			text, err := conn.Read()
			if text != "" || err != nil {
				select {
				case chunks <- readResult{text: text, err: err}:
				case <-stop:
					return
				}
			}
			if err != nil {
				return
			}
		}
	}(d.Connection, d.chunks, d.stop)
}

func (d *DeviceConnection) Address() string {
	if d.Connection == nil {
		return ""
	}
	return d.Connection.Address()
}

func (d *DeviceConnection) Disconnect() {
	if d.Connection == nil {
		log.Warn("Disconnect called on a nil connection")
		return
	}
	if d.stop != nil {
		close(d.stop)
		d.stop = nil
	}
	if err := d.Connection.Disconnect(); err != nil {
		log.Warnf("Disconnect from %s: %v", d.Connection.Address(), err)
		return
	}
	log.Infof("Disconnected from %s", d.Connection.Address())
}

// LastOutput returns the output captured by the most recent Exec or Expect.
func (d *DeviceConnection) LastOutput() string {
	return d.last
}

func (d *DeviceConnection) timeoutOr(timeout time.Duration) time.Duration {
	if timeout > 0 {
		return timeout
	}
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultTimeout
}

// drain discards output nobody asked for, so the next capture starts clean.
func (d *DeviceConnection) drain() {
	if d.pending != "" {
		log.Debugf("Discarding stale output: %q", d.pending)
		d.pending = ""
	}
	for {
		select {
		case r, ok := <-d.chunks:
			if !ok {
				return
			}
			if r.text != "" {
				log.Debugf("Discarding stale output: %q", r.text)
			}
			if r.err != nil {
				d.readErr = r.err
				return
			}
		default:
			return
		}
	}
}

// ReadUntil blocks until expect matches the output read so far, the
// timeout expires or the connection drops. Output after the match is kept
// for the next read.
func (d *DeviceConnection) ReadUntil(expect Pattern, timeout time.Duration) (string, error) {
	if d.chunks == nil {
		return "", ErrNotConnected
	}
	if expect.IsZero() {
		return "", errors.New("no pattern to wait for")
	}
	timeout = d.timeoutOr(timeout)

	buf := d.pending
	d.pending = ""

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if end := expect.end(buf); end >= 0 {
			d.pending = buf[end:]
			return buf[:end], nil
		}
		if d.readErr != nil {
			return buf, &TransportError{Addr: d.Address(), Protocol: d.Connection.Protocol(), Err: d.readErr}
		}
		select {
		case r, ok := <-d.chunks:
			if !ok {
				if d.readErr == nil {
					d.readErr = errors.New("connection closed")
				}
				continue
			}
			buf += cleanOutput(r.text)
			if r.err != nil {
				d.readErr = r.err
			}
		case <-timer.C:
			log.Errorf("Timeout waiting for %q from %s", expect.String(), d.Address())
			log.Debugf("Output so far: %q", buf)
			return buf, &TimeoutError{Pattern: expect.String(), Timeout: timeout, Output: buf}
		}
	}
}

// Expect waits for a pattern without sending anything, e.g. a login banner.
func (d *DeviceConnection) Expect(expect Pattern, timeout time.Duration) (string, error) {
	out, err := d.ReadUntil(expect, timeout)
	d.last = out
	return out, err
}

// Exec sends cmd followed by the line terminator and returns everything the
// device printed up to and including the expected pattern, minus the echoed
// command line.
func (d *DeviceConnection) Exec(cmd string, expect Pattern, timeout time.Duration) (string, error) {
	if d.Connection == nil || d.chunks == nil {
		log.Error(ErrNotConnected)
		return "", ErrNotConnected
	}
	d.drain()
	if d.readErr != nil {
		return "", &TransportError{Addr: d.Address(), Protocol: d.Connection.Protocol(), Err: d.readErr}
	}

	if _, err := d.Connection.Write(cmd + d.Return); err != nil {
		return "", &TransportError{Addr: d.Address(), Protocol: d.Connection.Protocol(), Err: err}
	}

	out, err := d.ReadUntil(expect, timeout)
	out = stripEcho(out, cmd)
	d.last = out
	return out, err
}

// SendCommandsSetPattern runs cmds in order, stopping at the first failure.
func (d *DeviceConnection) SendCommandsSetPattern(cmds []string, expect Pattern, timeout time.Duration) (string, error) {
	var results strings.Builder
	for _, cmd := range cmds {
		out, err := d.Exec(cmd, expect, timeout)
		results.WriteString(out)
		if err != nil {
			log.Errorf("Error sending command '%s': %v", cmd, err)
			return results.String(), err
		}
	}
	return results.String(), nil
}

// FindDevicePrompt waits for output matching regex and returns the last
// match, which is the most recently printed prompt.
func (d *DeviceConnection) FindDevicePrompt(regex string, timeout time.Duration) (string, error) {
	r, err := regexp.Compile(regex)
	if err != nil {
		log.Errorf("Failed to compile regex '%s': %v", regex, err)
		return "", err
	}
	out, err := d.ReadUntil(Pattern{re: r}, timeout)
	if err != nil {
		log.Errorf("Failed to find prompt, pattern: '%s', output: '%s'", regex, out)
		return "", err
	}
	matches := r.FindAllString(out, -1)
	if len(matches) == 0 {
		return "", errors.New("prompt not found in output")
	}
	return strings.TrimSpace(matches[len(matches)-1]), nil
}

// stripEcho removes the echoed command from the start of captured output.
// Secrets are typed without echo, in which case nothing is removed.
func stripEcho(out, cmd string) string {
	trimmed := strings.TrimLeft(out, "\n ")
	if cmd == "" || !strings.HasPrefix(trimmed, cmd) {
		return out
	}
	nl := strings.IndexByte(trimmed, '\n')
	if nl < 0 {
		return trimmed[len(cmd):]
	}
	return trimmed[nl+1:]
}
