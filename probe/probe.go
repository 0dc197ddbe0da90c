// Package probe answers whether a device is worth connecting to.
package probe

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// Prober checks reachability of one host.
type Prober interface {
	Reachable(ctx context.Context, host string) (bool, error)
}

// RunFunc runs an external command and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// PingProber sends ICMP echoes with the operating system's ping and
// treats at least MinReplies replies as reachable.
type PingProber struct {
	Count      int
	MinReplies int
	Timeout    time.Duration
	// GOOS selects the ping flavour; defaults to runtime.GOOS.
	GOOS string
	Run  RunFunc
}

func NewPingProber(count int, timeout time.Duration) *PingProber {
	return &PingProber{Count: count, MinReplies: 1, Timeout: timeout}
}

var (
	windowsReceived = regexp.MustCompile(`Received = (\d+)`)
	unixReceived    = regexp.MustCompile(`(\d+) (?:packets )?received`)
)

// Replies parses the number of echo replies from ping's summary line.
func Replies(output string) (int, bool) {
	for _, re := range []*regexp.Regexp{windowsReceived, unixReceived} {
		if m := re.FindStringSubmatch(output); m != nil {
			n, err := strconv.Atoi(m[1])
			return n, err == nil
		}
	}
	return 0, false
}

func (p *PingProber) args(host string) []string {
	count := strconv.Itoa(p.count())
	goos := p.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	switch goos {
	case "windows":
		return []string{"-n", count, "-w", strconv.Itoa(int(p.timeout().Milliseconds())), host}
	case "darwin":
		return []string{"-c", count, "-W", strconv.Itoa(int(p.timeout().Milliseconds())), host}
	}
	return []string{"-c", count, "-W", strconv.Itoa(int(p.timeout().Seconds())), host}
}

func (p *PingProber) count() int {
	if p.Count > 0 {
		return p.Count
	}
	return 4
}

func (p *PingProber) timeout() time.Duration {
	if p.Timeout >= time.Second {
		return p.Timeout
	}
	return 2 * time.Second
}

func (p *PingProber) Reachable(ctx context.Context, host string) (bool, error) {
	run := p.Run
	if run == nil {
		run = runCommand
	}
	// ping exits non-zero when nothing answers, so the output decides.
	out, err := run(ctx, "ping", p.args(host)...)
	replies, ok := Replies(string(out))
	if !ok {
		if err != nil {
			return false, fmt.Errorf("ping %s: %w", host, err)
		}
		return false, fmt.Errorf("ping %s: no summary in output", host)
	}
	need := p.MinReplies
	if need <= 0 {
		need = 1
	}
	log.Debugf("ping %s: %d/%d replies", host, replies, p.count())
	return replies >= need, nil
}

// TCPProber treats a host as reachable when it accepts a TCP connection on
// Port. Useful where ICMP is filtered.
type TCPProber struct {
	Port    int
	Timeout time.Duration
}

func (p *TCPProber) Reachable(ctx context.Context, host string) (bool, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(p.Port)))
	if err != nil {
		log.Debugf("tcp probe %s:%d: %v", host, p.Port, err)
		return false, nil
	}
	conn.Close()
	return true, nil
}
