// Package ucdrivertest provides a scripted device console that satisfies
// ucdriver.Transport, so driver code can be exercised without hardware.
package ucdrivertest

import (
	"errors"
	"io"
	"strings"
	"sync"
)

// Console answers every line written to it with Handler's output. The line
// is echoed back first unless Silent reports it should not be.
type Console struct {
	Proto      string
	Addr       string
	Greeting   string
	Handler    func(line string) string
	Silent     func(line string) bool
	ConnectErr error

	mu     sync.Mutex
	lines  []string
	out    chan string
	closed chan struct{}
	once   sync.Once
}

func NewConsole(greeting string, handler func(line string) string) *Console {
	return &Console{
		Proto:    "ssh",
		Addr:     "192.0.2.10:22",
		Greeting: greeting,
		Handler:  handler,
	}
}

func (c *Console) Protocol() string { return c.Proto }
func (c *Console) Address() string  { return c.Addr }

func (c *Console) Connect() error {
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	c.out = make(chan string, 1024)
	c.closed = make(chan struct{})
	if c.Greeting != "" {
		c.out <- c.Greeting
	}
	return nil
}

func (c *Console) Read() (string, error) {
	select {
	case s := <-c.out:
		return s, nil
	case <-c.closed:
		return "", io.EOF
	}
}

func (c *Console) Write(cmd string) (int, error) {
	select {
	case <-c.closed:
		return 0, errors.New("console closed")
	default:
	}
	line := strings.TrimRight(cmd, "\r\n")
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()

	var b strings.Builder
	if c.Silent == nil || !c.Silent(line) {
		b.WriteString(line)
	}
	b.WriteString("\r\n")
	if c.Handler != nil {
		b.WriteString(c.Handler(line))
	}
	c.out <- b.String()
	return len(cmd), nil
}

func (c *Console) Disconnect() error {
	c.once.Do(func() {
		if c.closed != nil {
			close(c.closed)
		}
	})
	return nil
}

// Drop simulates the device closing the connection.
func (c *Console) Drop() {
	c.Disconnect()
}

// Lines returns every line written so far.
func (c *Console) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}
