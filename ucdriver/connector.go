package ucdriver

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Target is everything needed to open a session to one device.
type Target struct {
	Host     string
	Username string
	Password string
	Secret   string
}

// OpenFunc builds a device for protocol and connects it.
type OpenFunc[S Session] func(t Target, protocol string, port int, timeout time.Duration) (S, error)

// Connector opens sessions with a primary transport and falls back once to a
// secondary transport when the primary fails below the authentication layer.
type Connector[S Session] struct {
	Primary   string
	Secondary string
	Ports     map[string]int
	// DialTimeout bounds the TCP connect and SSH handshake.
	DialTimeout time.Duration
	// FallbackOnAuthFailure also tries the secondary transport when the
	// primary rejected the credentials.
	FallbackOnAuthFailure bool
	Open                  OpenFunc[S]
}

var defaultPorts = map[string]int{ProtocolSSH: 22, ProtocolTelnet: 23}

func (c *Connector[S]) port(protocol string) int {
	if p, ok := c.Ports[protocol]; ok && p > 0 {
		return p
	}
	return defaultPorts[protocol]
}

// Connect returns an open session or the error of the last attempt.
func (c *Connector[S]) Connect(ctx context.Context, t Target) (S, error) {
	var zero S
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	logger := log.WithFields(log.Fields{"host": t.Host, "protocol": c.Primary})
	logger.Infof("Trying to connect to %s over %s", t.Host, c.Primary)
	session, err := c.Open(t, c.Primary, c.port(c.Primary), c.DialTimeout)
	if err == nil {
		return session, nil
	}
	logger.Warnf("Connect to %s over %s failed: %v", t.Host, c.Primary, err)

	if c.Secondary == "" {
		return zero, err
	}
	if IsAuthError(err) && !c.FallbackOnAuthFailure {
		return zero, err
	}
	if !IsAuthError(err) && !IsTransportError(err) {
		return zero, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}

	log.WithFields(log.Fields{"host": t.Host, "protocol": c.Secondary}).
		Infof("Trying to connect to %s over %s", t.Host, c.Secondary)
	session, err = c.Open(t, c.Secondary, c.port(c.Secondary), c.DialTimeout)
	if err != nil {
		log.Errorf("Connect to %s over %s failed: %v", t.Host, c.Secondary, err)
		return zero, err
	}
	return session, nil
}

// OpenIOS is the OpenFunc for Cisco IOS devices.
func OpenIOS(t Target, protocol string, port int, timeout time.Duration) (*IOSDeviceConnection, error) {
	transport, err := InitTransport(t.Host, t.Username, t.Password, protocol, port)
	if err != nil {
		return nil, err
	}
	setDialTimeout(transport, timeout)
	device := NewIOSDeviceConnection(transport, t.Username, t.Password, t.Secret)
	if err := device.Connect(); err != nil {
		return nil, err
	}
	return device, nil
}

// OpenVOS is the OpenFunc for UC appliance admin consoles.
func OpenVOS(t Target, protocol string, port int, timeout time.Duration) (*VOSDeviceConnection, error) {
	transport, err := InitTransport(t.Host, t.Username, t.Password, protocol, port)
	if err != nil {
		return nil, err
	}
	setDialTimeout(transport, timeout)
	device := NewVOSDeviceConnection(transport)
	if err := device.Connect(); err != nil {
		return nil, err
	}
	return device, nil
}

// NewIOSConnector tries SSH first and Telnet second, like the gateways and
// switches in the field expect.
func NewIOSConnector(sshPort, telnetPort int, dialTimeout time.Duration) *Connector[*IOSDeviceConnection] {
	return &Connector[*IOSDeviceConnection]{
		Primary:     ProtocolSSH,
		Secondary:   ProtocolTelnet,
		Ports:       map[string]int{ProtocolSSH: sshPort, ProtocolTelnet: telnetPort},
		DialTimeout: dialTimeout,
		Open:        OpenIOS,
	}
}

// NewVOSConnector only uses SSH; the appliances have no Telnet console.
func NewVOSConnector(sshPort int, dialTimeout time.Duration) *Connector[*VOSDeviceConnection] {
	return &Connector[*VOSDeviceConnection]{
		Primary:     ProtocolSSH,
		Ports:       map[string]int{ProtocolSSH: sshPort},
		DialTimeout: dialTimeout,
		Open:        OpenVOS,
	}
}

func setDialTimeout(transport Transport, timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	switch t := transport.(type) {
	case *SSHConnModel:
		t.Timeout = timeout
	case *TelnetConnModel:
		t.Timeout = timeout
	}
}
