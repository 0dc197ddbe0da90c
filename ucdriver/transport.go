package ucdriver

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ziutek/telnet"
	"golang.org/x/crypto/ssh"
)

const (
	ProtocolSSH    = "ssh"
	ProtocolTelnet = "telnet"
)

// Transport is the raw text channel under a device session.
type Transport interface {
	Connect() error
	Read() (string, error)
	Write(cmd string) (int, error)
	Disconnect() error
	Protocol() string
	Address() string
}

// SSHConnModel represents an SSH connection to a device.
type SSHConnModel struct {
	Addr     string
	Username string
	Password string
	Client   *ssh.Client
	Reader   io.Reader
	Writer   io.WriteCloser
	Timeout  time.Duration

	session *ssh.Session
}

// Supported ciphers for SSH connections. Older IOS images and the UC
// appliances only offer CBC modes.
var ciphers = []string{
	"aes256-ctr", "aes128-ctr", "aes192-ctr", "aes128-gcm@openssh.com",
	"aes256-cbc", "aes192-cbc", "aes128-cbc", "3des-cbc",
}

var keyExchanges = []string{
	"curve25519-sha256", "curve25519-sha256@libssh.org",
	"ecdh-sha2-nistp256", "ecdh-sha2-nistp384",
	"diffie-hellman-group14-sha256", "diffie-hellman-group14-sha1",
	"diffie-hellman-group1-sha1",
}

func NewSSHConnModel(hostname, username, password string, port int) *SSHConnModel {
	return &SSHConnModel{
		Addr:     net.JoinHostPort(hostname, strconv.Itoa(port)),
		Username: username,
		Password: password,
		Timeout:  10 * time.Second,
	}
}

func (c *SSHConnModel) Protocol() string { return ProtocolSSH }
func (c *SSHConnModel) Address() string  { return c.Addr }

// Connect establishes an SSH connection to the device and opens an
// interactive shell on a pty.
func (c *SSHConnModel) Connect() error {
	interactive := getInteractiveCallBack(c.Password)
	sshConfig := &ssh.ClientConfig{
		User:            c.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(c.Password), ssh.KeyboardInteractive(interactive)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.Timeout,
	}
	sshConfig.Ciphers = append(sshConfig.Ciphers, ciphers...)
	sshConfig.KeyExchanges = append(sshConfig.KeyExchanges, keyExchanges...)

	conn, err := ssh.Dial("tcp", c.Addr, sshConfig)
	if err != nil {
		return classifySSHError(c.Addr, err)
	}
	c.Client = conn

	session, err := c.Client.NewSession()
	if err != nil {
		c.Client.Close()
		return &TransportError{Addr: c.Addr, Protocol: ProtocolSSH, Err: fmt.Errorf("failed to start a new session: %w", err)}
	}
	c.session = session

	reader, err := session.StdoutPipe()
	if err != nil {
		c.Client.Close()
		return &TransportError{Addr: c.Addr, Protocol: ProtocolSSH, Err: err}
	}
	writer, err := session.StdinPipe()
	if err != nil {
		c.Client.Close()
		return &TransportError{Addr: c.Addr, Protocol: ProtocolSSH, Err: err}
	}
	c.Reader = reader
	c.Writer = writer

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}

	if err := session.RequestPty("vt100", 0, 200, modes); err != nil {
		c.Client.Close()
		return &TransportError{Addr: c.Addr, Protocol: ProtocolSSH, Err: fmt.Errorf("failed to request pty: %w", err)}
	}
	if err := session.Shell(); err != nil {
		c.Client.Close()
		return &TransportError{Addr: c.Addr, Protocol: ProtocolSSH, Err: fmt.Errorf("failed to invoke shell: %w", err)}
	}
	return nil
}

// Disconnect closes the SSH connection.
func (c *SSHConnModel) Disconnect() error {
	if c.Client == nil {
		return nil
	}
	if c.session != nil {
		c.session.Close()
	}
	if err := c.Client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Warnf("device close failed for %s: %v", c.Addr, err)
		return err
	}
	return nil
}

// Read reads the next chunk of output from the SSH shell.
func (c *SSHConnModel) Read() (string, error) {
	buff := make([]byte, 32768)
	n, err := c.Reader.Read(buff)
	return string(buff[:n]), err
}

// Write writes a command to the SSH shell.
func (c *SSHConnModel) Write(cmd string) (int, error) {
	return c.Writer.Write([]byte(cmd))
}

// getInteractiveCallBack returns a callback function for SSH keyboard-interactive authentication.
func getInteractiveCallBack(password string) ssh.KeyboardInteractiveChallenge {
	return func(user, instruction string, questions []string, echos []bool) (answers []string, err error) {
		answers = make([]string, len(questions))
		for n := range questions {
			answers[n] = password
		}
		return answers, nil
	}
}

// classifySSHError separates rejected credentials from everything else that
// can go wrong while dialing and handshaking.
func classifySSHError(addr string, err error) error {
	if strings.Contains(err.Error(), "unable to authenticate") {
		return &AuthError{Addr: addr, Protocol: ProtocolSSH, Err: err}
	}
	return &TransportError{Addr: addr, Protocol: ProtocolSSH, Err: err}
}

// TelnetConnModel represents a Telnet connection to a device. Login happens
// in-band and is handled by the device layer.
type TelnetConnModel struct {
	Addr     string
	Username string
	Password string
	Conn     *telnet.Conn
	Timeout  time.Duration
}

func NewTelnetConnModel(hostname, username, password string, port int) *TelnetConnModel {
	return &TelnetConnModel{
		Addr:     net.JoinHostPort(hostname, strconv.Itoa(port)),
		Username: username,
		Password: password,
		Timeout:  10 * time.Second,
	}
}

func (c *TelnetConnModel) Protocol() string { return ProtocolTelnet }
func (c *TelnetConnModel) Address() string  { return c.Addr }

func (c *TelnetConnModel) Connect() error {
	conn, err := telnet.DialTimeout("tcp", c.Addr, c.Timeout)
	if err != nil {
		return &TransportError{Addr: c.Addr, Protocol: ProtocolTelnet, Err: err}
	}
	conn.SetUnixWriteMode(true)
	c.Conn = conn
	return nil
}

func (c *TelnetConnModel) Disconnect() error {
	if c.Conn == nil {
		return nil
	}
	if err := c.Conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Warnf("device close failed for %s: %v", c.Addr, err)
		return err
	}
	return nil
}

func (c *TelnetConnModel) Read() (string, error) {
	buff := make([]byte, 4096)
	n, err := c.Conn.Read(buff)
	return string(buff[:n]), err
}

func (c *TelnetConnModel) Write(cmd string) (int, error) {
	return c.Conn.Write([]byte(cmd))
}

// InitTransport initializes a transport connection based on the protocol.
func InitTransport(host, username, password, protocol string, port int) (Transport, error) {
	switch protocol {
	case ProtocolSSH:
		return NewSSHConnModel(host, username, password, port), nil
	case ProtocolTelnet:
		return NewTelnetConnModel(host, username, password, port), nil
	default:
		return nil, errors.New("unsupported protocol: " + protocol)
	}
}
