package ucdriver

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// IOSDeviceConnection drives a Cisco IOS / IOS-XE router or switch, such as
// a voice gateway or a Catalyst, over SSH or Telnet.
type IOSDeviceConnection struct {
	DeviceConnection
	DeviceType string
	Prompt     string
	Hostname   string
	Username   string
	Password   string
	Secret     string
}

const (
	iosPromptRegex   = `(?m)^[\w\-.:/]+(\([\w\-. ]+\))?[>#]\s*$`
	telnetLoginRegex = `(?i)(username|login|password):\s*$`
	loginFailedRegex = `(?i)(% login invalid|% authentication failed|% bad passwords|access denied)`
)

// ConfigPrompt matches any IOS configuration-mode prompt, e.g. "gw(config-std-nacl)#".
var ConfigPrompt = Regex(`\(config[^)]*\)#\s*$`)

func NewIOSDeviceConnection(connection Transport, username, password, secret string) *IOSDeviceConnection {
	deviceType := "cisco_ios"
	if connection.Protocol() == ProtocolTelnet {
		deviceType = "cisco_ios_telnet"
	}
	return &IOSDeviceConnection{
		DeviceConnection: DeviceConnection{
			Connection: connection,
			Return:     "\n",
			Timeout:    DefaultTimeout,
		},
		DeviceType: deviceType,
		Username:   username,
		Password:   password,
		Secret:     secret,
	}
}

// InitIOSDevice initializes a new IOS device connection
func InitIOSDevice(host, username, password, secret, protocol string, port int) (*IOSDeviceConnection, error) {
	connection, err := InitTransport(host, username, password, protocol, port)
	if err != nil {
		return nil, err
	}
	return NewIOSDeviceConnection(connection, username, password, secret), nil
}

func (ios *IOSDeviceConnection) Connect() error {
	if err := ios.DeviceConnection.Connect(); err != nil {
		return err
	}
	if ios.Connection.Protocol() == ProtocolTelnet {
		if err := ios.login(); err != nil {
			ios.DeviceConnection.Disconnect()
			return err
		}
	}
	if err := ios.refreshPrompt(); err != nil {
		ios.DeviceConnection.Disconnect()
		return ios.asTransportError(err)
	}
	log.Infof("ios.Prompt is: %s", ios.Prompt)
	if err := ios.sessionPreparation(); err != nil {
		ios.DeviceConnection.Disconnect()
		return ios.asTransportError(err)
	}
	return nil
}

// asTransportError treats a session that never becomes usable like one that
// never opened.
func (ios *IOSDeviceConnection) asTransportError(err error) error {
	if IsAuthError(err) || IsTransportError(err) {
		return err
	}
	return &TransportError{Addr: ios.Address(), Protocol: ios.Connection.Protocol(), Err: err}
}

// login answers the in-band Telnet username and password prompts.
func (ios *IOSDeviceConnection) login() error {
	addr := ios.Connection.Address()
	out, err := ios.Expect(Regex(telnetLoginRegex), 0)
	if err != nil {
		return &TransportError{Addr: addr, Protocol: ProtocolTelnet, Err: fmt.Errorf("no login prompt: %w", err)}
	}
	if !strings.Contains(strings.ToLower(lastLine(out)), "password") {
		if _, err := ios.Exec(ios.Username, Regex(`(?i)password:\s*$`), 0); err != nil {
			return &TransportError{Addr: addr, Protocol: ProtocolTelnet, Err: fmt.Errorf("no password prompt: %w", err)}
		}
	}
	out, err = ios.Exec(ios.Password, Regex(loginFailedRegex+`|[>#]\s*$|(?i)(username|login):\s*$`), 0)
	if err != nil {
		return &TransportError{Addr: addr, Protocol: ProtocolTelnet, Err: err}
	}
	if regexp.MustCompile(loginFailedRegex).MatchString(out) || regexp.MustCompile(`(?i)(username|login):\s*$`).MatchString(out) {
		return &AuthError{Addr: addr, Protocol: ProtocolTelnet, Err: errors.New("login rejected")}
	}
	return nil
}

// refreshPrompt asks the device for a fresh prompt and records it.
func (ios *IOSDeviceConnection) refreshPrompt() error {
	ios.drain()
	if _, err := ios.Connection.Write(ios.Return); err != nil {
		return &TransportError{Addr: ios.Address(), Protocol: ios.Connection.Protocol(), Err: err}
	}
	prompt, err := ios.FindDevicePrompt(iosPromptRegex, 0)
	if err != nil {
		return err
	}
	ios.Prompt = prompt
	ios.Hostname = strings.TrimRight(prompt, ">#")
	if i := strings.Index(ios.Hostname, "("); i > 0 {
		ios.Hostname = ios.Hostname[:i]
	}
	return nil
}

func (ios *IOSDeviceConnection) sessionPreparation() error {
	if _, err := ios.SendCommand("terminal length 0"); err != nil {
		return fmt.Errorf("failed to disable pagination: %w", err)
	}
	if _, err := ios.SendCommand("terminal width 511"); err != nil {
		return fmt.Errorf("failed to set terminal width: %w", err)
	}
	return nil
}

// PromptPattern matches this device's exec or configuration prompt.
func (ios *IOSDeviceConnection) PromptPattern() Pattern {
	if ios.Hostname == "" {
		return Regex(iosPromptRegex)
	}
	return Regex(`(?m)^` + regexp.QuoteMeta(ios.Hostname) + `(\([\w\-. ]+\))?[>#]\s*$`)
}

func (ios *IOSDeviceConnection) SendCommand(cmd string) (string, error) {
	return ios.Exec(cmd, ios.PromptPattern(), 0)
}

func (ios *IOSDeviceConnection) SendCommandTimeout(cmd string, timeout time.Duration) (string, error) {
	return ios.Exec(cmd, ios.PromptPattern(), timeout)
}

// CheckEnableMode reports whether the session is in privileged exec mode.
func (ios *IOSDeviceConnection) CheckEnableMode() bool {
	return strings.HasSuffix(ios.Prompt, "#")
}

// enableTries is how many secrets IOS accepts before printing "% Bad secrets".
const enableTries = 3

var (
	passwordPrompt = regexp.MustCompile(`(?i)password:\s*$`)
	enableDenied   = regexp.MustCompile(`%\s*(Access denied|Bad secrets)`)
	enableExpect   = Regex(`(?i)password:\s*$|[>#]\s*$`)
)

// Enable elevates the session with the privileged-mode secret. A rejected
// secret is an AuthError and leaves the session at the user exec prompt.
func (ios *IOSDeviceConnection) Enable() error {
	if ios.CheckEnableMode() {
		return nil
	}
	out, err := ios.Exec("enable", enableExpect, 0)
	if err != nil {
		return err
	}
	rejected := false
	if passwordPrompt.MatchString(out) {
		out, err = ios.Exec(ios.Secret, enableExpect, 0)
		// IOS asks again after a wrong secret; empty answers use up the
		// remaining tries and bring back the exec prompt.
		for tries := 1; err == nil && passwordPrompt.MatchString(out); tries++ {
			rejected = true
			if tries >= enableTries {
				if _, err := ios.Connection.Write("\x03"); err != nil {
					return &TransportError{Addr: ios.Address(), Protocol: ios.Connection.Protocol(), Err: err}
				}
				break
			}
			out, err = ios.Exec("", enableExpect, 0)
		}
		if err != nil {
			return err
		}
		if enableDenied.MatchString(out) {
			rejected = true
		}
	}
	if err := ios.refreshPrompt(); err != nil {
		return err
	}
	if rejected || !ios.CheckEnableMode() {
		return &AuthError{Addr: ios.Address(), Protocol: ios.Connection.Protocol(), Err: errors.New("enable secret rejected")}
	}
	return nil
}

// SendConfigSet enters configuration mode, applies cmds and returns to exec mode.
func (ios *IOSDeviceConnection) SendConfigSet(cmds []string) (string, error) {
	results, err := ios.Exec("configure terminal", ConfigPrompt, 0)
	if err != nil {
		return results, err
	}
	out, err := ios.SendCommandsSetPattern(cmds, ConfigPrompt, 0)
	results += out
	if err != nil {
		return results, err
	}
	out, err = ios.SendCommand("end")
	return results + out, err
}

func (ios *IOSDeviceConnection) SaveConfig() (string, error) {
	return ios.SendCommandTimeout("write memory", 2*DefaultTimeout)
}

func (ios *IOSDeviceConnection) Disconnect() {
	if ios.chunks != nil && ios.readErr == nil {
		ios.Connection.Write("exit" + ios.Return)
	}
	ios.DeviceConnection.Disconnect()
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
